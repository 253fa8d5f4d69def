package events_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogoX451/callrelay/internal/events"
	"github.com/diogoX451/callrelay/internal/events/eventstest"
)

const fastRetry = 10 * time.Millisecond

func waitDial(t *testing.T, d *eventstest.Dialer) *eventstest.Conn {
	t.Helper()
	select {
	case conn := <-d.Dialed():
		return conn
	case <-time.After(time.Second):
		t.Fatal("no dial")
		return nil
	}
}

func TestConnectionRetriesUntilConnected(t *testing.T) {
	dialer := eventstest.NewDialer()
	dialer.FailNext(3)

	bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(fastRetry))
	assert.Equal(t, events.Disconnected, bus.State())
	_, ok := bus.Current()
	assert.False(t, ok)

	bus.Start(context.Background())
	defer bus.Close()

	conn := waitDial(t, dialer)
	require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, dialer.Dials())

	current, ok := bus.Current()
	require.True(t, ok)
	assert.Same(t, conn, current)
}

func TestConnectionOnConnectedOncePerHandle(t *testing.T) {
	dialer := eventstest.NewDialer()
	bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(fastRetry))

	var calls atomic.Int32
	var mu sync.Mutex
	var handleCtx []context.Context
	bus.OnConnected(func(ctx context.Context, conn events.Conn) {
		calls.Add(1)
		mu.Lock()
		handleCtx = append(handleCtx, ctx)
		mu.Unlock()
	})

	bus.Start(context.Background())
	defer bus.Close()

	first := waitDial(t, dialer)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	t.Run("blip flips state without a new handle", func(t *testing.T) {
		dialer.Blip()
		require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 1, dialer.Dials())
		assert.False(t, first.Closed())
	})

	t.Run("drop redials and fires again", func(t *testing.T) {
		dialer.Drop()
		second := waitDial(t, dialer)
		require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

		assert.NotSame(t, first, second)
		assert.True(t, first.Closed())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, handleCtx, 2)
		assert.Error(t, handleCtx[0].Err(), "old handle context must be cancelled")
		assert.NoError(t, handleCtx[1].Err())
	})
}

func TestConnectionLateOnConnected(t *testing.T) {
	dialer := eventstest.NewDialer()
	bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(fastRetry))
	bus.Start(context.Background())
	defer bus.Close()

	waitDial(t, dialer)
	require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)

	var got events.Conn
	bus.OnConnected(func(_ context.Context, conn events.Conn) { got = conn })
	current, _ := bus.Current()
	assert.Same(t, current, got)
}

func TestConnectionStateObserver(t *testing.T) {
	dialer := eventstest.NewDialer()
	dialer.FailNext(1)

	var mu sync.Mutex
	var states []events.State
	bus := events.NewConnection(dialer.Dial,
		events.WithReconnectWait(fastRetry),
		events.WithStateObserver(func(s events.State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}),
	)
	bus.Start(context.Background())

	waitDial(t, dialer)
	require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.State{
		events.Connecting,
		events.Disconnected,
		events.Connecting,
		events.Connected,
		events.Disconnected,
	}, states)
	assert.Equal(t, events.Disconnected, bus.State())
}

func TestConnectionClose(t *testing.T) {
	t.Run("without start", func(t *testing.T) {
		bus := events.NewConnection(eventstest.NewDialer().Dial)
		assert.NoError(t, bus.Close())
		assert.NoError(t, bus.Close())
	})

	t.Run("closes live handle", func(t *testing.T) {
		dialer := eventstest.NewDialer()
		bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(fastRetry))
		bus.Start(context.Background())

		conn := waitDial(t, dialer)
		require.Eventually(t, bus.IsConnected, time.Second, 5*time.Millisecond)

		require.NoError(t, bus.Close())
		assert.True(t, conn.Closed())
		assert.False(t, bus.IsConnected())
		_, ok := bus.Current()
		assert.False(t, ok)
	})

	t.Run("stops retrying", func(t *testing.T) {
		dialer := eventstest.NewDialer()
		dialer.FailNext(1000)
		bus := events.NewConnection(dialer.Dial, events.WithReconnectWait(fastRetry))
		bus.Start(context.Background())

		require.Eventually(t, func() bool { return dialer.Dials() >= 2 }, time.Second, 5*time.Millisecond)
		require.NoError(t, bus.Close())

		dials := dialer.Dials()
		time.Sleep(5 * fastRetry)
		assert.Equal(t, dials, dialer.Dials())
	})
}

func TestLinkEventString(t *testing.T) {
	assert.Equal(t, "down", events.LinkDown.String())
	assert.Equal(t, "up", events.LinkUp.String())
	assert.Equal(t, "closed", events.LinkClosed.String())
	assert.Equal(t, "connected", events.Connected.String())
	assert.Equal(t, "unknown", events.State(42).String())
}
