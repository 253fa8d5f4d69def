package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callrelay"

type Prom struct {
	reg *prometheus.Registry

	BusConnected      prometheus.Gauge
	Sinks             prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	SinkWriteFailures prometheus.Counter
	Commands          *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
}

var _ Recorder = (*Prom)(nil)

func NewProm() *Prom {
	reg := prometheus.NewRegistry()
	p := &Prom{
		reg: reg,
		BusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bus_connected", Help: "1 when the bus handle is connected",
		}),
		Sinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stream_sinks", Help: "Streaming clients currently registered",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_received_total", Help: "Bus events received per subject",
		}, []string{"subject"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total", Help: "Bus events dropped because the payload did not decode",
		}, []string{"subject"}),
		SinkWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sink_write_failures_total", Help: "Sinks removed after a failed write",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total", Help: "Commands sent to the bus by outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "command_duration_seconds", Help: "Command round-trip latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"command"}),
	}
	reg.MustRegister(
		p.BusConnected, p.Sinks, p.EventsReceived, p.EventsDropped,
		p.SinkWriteFailures, p.Commands, p.CommandDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) Handler() http.Handler { return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{}) }

func (p *Prom) SetBusConnected(connected bool) {
	if connected {
		p.BusConnected.Set(1)
		return
	}
	p.BusConnected.Set(0)
}

func (p *Prom) SetSinks(n int) { p.Sinks.Set(float64(n)) }

func (p *Prom) EventReceived(subject string) { p.EventsReceived.WithLabelValues(subject).Inc() }

func (p *Prom) EventDropped(subject string) { p.EventsDropped.WithLabelValues(subject).Inc() }

func (p *Prom) SinkWriteFailed() { p.SinkWriteFailures.Inc() }

func (p *Prom) CommandCompleted(command, outcome string, d time.Duration) {
	p.Commands.WithLabelValues(command, outcome).Inc()
	p.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}
