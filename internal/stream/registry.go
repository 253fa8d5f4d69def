package stream

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/diogoX451/callrelay/internal/events"
	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/internal/metrics"
)

// Sink é um cliente de streaming conectado
type Sink interface {
	ID() string
	WriteFrame(frame []byte) error
}

// dropper é implementado por sinks que precisam saber que foram descartados
type dropper interface {
	drop()
}

// Registry mantém o conjunto vivo de sinks e faz o fan-out.
//
// Broadcast tira um snapshot sob RLock e escreve fora do lock; sinks que
// falham são removidos sob Lock antes de Broadcast retornar.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink

	buffer  int
	log     *logrus.Entry
	metrics metrics.Recorder
}

type Option func(*Registry)

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) { r.log = log }
}

// WithClientBuffer define quantos frames um cliente SSE pode acumular
func WithClientBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sinks:   make(map[string]Sink),
		buffer:  DefaultClientBuffer,
		log:     logging.Component("stream"),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	r.sinks[s.ID()] = s
	n := len(r.sinks)
	r.mu.Unlock()

	r.metrics.SetSinks(n)
	r.log.WithFields(logrus.Fields{"sink": s.ID(), "sinks": n}).Debug("sink registered")
}

// Deregister é no-op se o sink já saiu
func (r *Registry) Deregister(s Sink) {
	r.mu.Lock()
	_, ok := r.sinks[s.ID()]
	delete(r.sinks, s.ID())
	n := len(r.sinks)
	r.mu.Unlock()

	if ok {
		r.metrics.SetSinks(n)
		r.log.WithFields(logrus.Fields{"sink": s.ID(), "sinks": n}).Debug("sink deregistered")
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

func (r *Registry) Broadcast(ev events.Event) {
	frame, err := Frame(ev)
	if err != nil {
		r.log.WithError(err).WithField("type", ev.Type).Error("encode event frame")
		return
	}

	r.mu.RLock()
	snapshot := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	var failed []Sink
	for _, s := range snapshot {
		if err := s.WriteFrame(frame); err != nil {
			failed = append(failed, s)
		}
	}
	if len(failed) == 0 {
		return
	}

	r.mu.Lock()
	for _, s := range failed {
		// só remove se ainda é o mesmo sink registrado com esse ID
		if cur, ok := r.sinks[s.ID()]; ok && cur == s {
			delete(r.sinks, s.ID())
		}
	}
	n := len(r.sinks)
	r.mu.Unlock()

	for _, s := range failed {
		if d, ok := s.(dropper); ok {
			d.drop()
		}
		r.metrics.SinkWriteFailed()
		r.log.WithField("sink", s.ID()).Debug("sink dropped after failed write")
	}
	r.metrics.SetSinks(n)
}

// Frame serializa um evento como frame SSE: "data: <json>\n\n"
func Frame(ev events.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}
