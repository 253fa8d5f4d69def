package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogoX451/callrelay/internal/events"
	"github.com/diogoX451/callrelay/internal/events/eventstest"
	"github.com/diogoX451/callrelay/pkg/types"
)

type chanBroadcaster chan events.Event

func (c chanBroadcaster) Broadcast(ev events.Event) { c <- ev }

func next(t *testing.T, out chanBroadcaster) events.Event {
	t.Helper()
	select {
	case ev := <-out:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return events.Event{}
	}
}

func assertQuiet(t *testing.T, out chanBroadcaster) {
	t.Helper()
	select {
	case ev := <-out:
		t.Fatalf("unexpected event %s: %s", ev.Type, ev.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func startRelay(t *testing.T, subjects []string) (*Relay, chanBroadcaster, context.Context) {
	t.Helper()
	out := make(chanBroadcaster, 16)
	r := New(subjects, out)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		r.Wait()
	})
	go r.Run(ctx)
	return r, out, ctx
}

func TestRelayDelivers(t *testing.T) {
	subjects := types.DefaultEventSubjects()
	r, out, ctx := startRelay(t, subjects)

	conn := eventstest.NewConn()
	require.NoError(t, r.SubscribeAll(ctx, conn))
	for _, s := range subjects {
		require.Equal(t, 1, conn.Subscriptions(s), s)
	}

	t.Run("event carries its subject as type", func(t *testing.T) {
		require.NoError(t, conn.Publish(types.SubjectChannelHangup, []byte(`{"unique_id":"u1","hangup_cause":"NORMAL_CLEARING"}`)))

		ev := next(t, out)
		assert.Equal(t, types.SubjectChannelHangup, ev.Type)
		assert.JSONEq(t, `{"unique_id":"u1","hangup_cause":"NORMAL_CLEARING"}`, string(ev.Data))
	})

	t.Run("malformed payload is dropped without stopping the subject", func(t *testing.T) {
		require.NoError(t, conn.Publish(types.SubjectChannelPark, []byte("{not json")))
		require.NoError(t, conn.Publish(types.SubjectChannelPark, []byte(`{"unique_id":"u2"}`)))

		ev := next(t, out)
		assert.Equal(t, types.SubjectChannelPark, ev.Type)
		assert.JSONEq(t, `{"unique_id":"u2"}`, string(ev.Data))
		assertQuiet(t, out)
	})

	t.Run("unrelated subject is ignored", func(t *testing.T) {
		require.NoError(t, conn.Publish("freeswitch.events.channel.bridge", []byte(`{}`)))
		assertQuiet(t, out)
	})
}

func TestRelayConsumersStopWithHandle(t *testing.T) {
	r, _, ctx := startRelay(t, []string{types.SubjectChannelPark})

	conn := eventstest.NewConn()
	require.NoError(t, r.SubscribeAll(ctx, conn))
	require.NoError(t, conn.Close())

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer still running after handle closed")
	}
}

func TestRelaySubscribeOnClosedHandle(t *testing.T) {
	r, _, ctx := startRelay(t, []string{types.SubjectChannelPark, types.SubjectChannelAnswer})

	conn := eventstest.NewConn()
	require.NoError(t, conn.Close())

	err := r.SubscribeAll(ctx, conn)
	assert.ErrorIs(t, err, events.ErrSubscriptionClosed)
}

func TestRelayReconnect(t *testing.T) {
	subject := types.SubjectChannelAnswer
	r, out, ctx := startRelay(t, []string{subject})

	dialer := eventstest.NewDialer()
	bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(10*time.Millisecond))
	bus.OnConnected(r.Install)
	bus.Start(ctx)
	t.Cleanup(func() { _ = bus.Close() })

	first := <-dialer.Dialed()
	require.Eventually(t, func() bool { return first.Subscriptions(subject) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, first.Publish(subject, []byte(`{"n":1}`)))
	assert.JSONEq(t, `{"n":1}`, string(next(t, out).Data))

	t.Run("transport blip keeps the same subscriptions", func(t *testing.T) {
		dialer.Blip()
		require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, dialer.Dials())
		assert.Equal(t, 1, first.Subscriptions(subject))
	})

	t.Run("new handle gets exactly one subscription per subject", func(t *testing.T) {
		dialer.Drop()

		var second *eventstest.Conn
		select {
		case second = <-dialer.Dialed():
		case <-time.After(time.Second):
			t.Fatal("no redial after drop")
		}
		require.Eventually(t, func() bool { return second.Subscriptions(subject) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, first.Subscriptions(subject))

		require.NoError(t, second.Publish(subject, []byte(`{"n":2}`)))
		assert.JSONEq(t, `{"n":2}`, string(next(t, out).Data))
		assertQuiet(t, out)
	})
}
