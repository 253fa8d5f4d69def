package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Prom) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestProm(t *testing.T) {
	p := NewProm()

	p.SetBusConnected(true)
	p.SetSinks(3)
	p.EventReceived("freeswitch.events.channel.park")
	p.EventReceived("freeswitch.events.channel.park")
	p.EventDropped("freeswitch.events.channel.park")
	p.SinkWriteFailed()
	p.CommandCompleted("show", "success", 20*time.Millisecond)
	p.CommandCompleted("uuid_kill", "timeout", 5*time.Second)

	out := scrape(t, p)
	assert.Contains(t, out, "callrelay_bus_connected 1")
	assert.Contains(t, out, "callrelay_stream_sinks 3")
	assert.Contains(t, out, `callrelay_events_received_total{subject="freeswitch.events.channel.park"} 2`)
	assert.Contains(t, out, `callrelay_events_dropped_total{subject="freeswitch.events.channel.park"} 1`)
	assert.Contains(t, out, "callrelay_sink_write_failures_total 1")
	assert.Contains(t, out, `callrelay_commands_total{command="show",outcome="success"} 1`)
	assert.Contains(t, out, `callrelay_commands_total{command="uuid_kill",outcome="timeout"} 1`)
	assert.Contains(t, out, `callrelay_command_duration_seconds_count{command="show"} 1`)
	assert.Contains(t, out, "go_goroutines")

	p.SetBusConnected(false)
	assert.Contains(t, scrape(t, p), "callrelay_bus_connected 0")
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	assert.NotPanics(t, func() {
		r.SetBusConnected(true)
		r.CommandCompleted("show", "success", time.Millisecond)
	})
}
