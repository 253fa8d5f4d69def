package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/diogoX451/callrelay/internal/events"
	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/internal/metrics"
)

// Broadcaster recebe cada evento decodificado (stream.Registry)
type Broadcaster interface {
	Broadcast(ev events.Event)
}

// Relay liga os subjects de eventos ao fan-out. Cada subject tem seu próprio
// consumidor; todos alimentam um canal lido por um único dispatcher.
type Relay struct {
	subjects []string
	out      Broadcaster
	queue    chan events.Event

	log     *logrus.Entry
	metrics metrics.Recorder

	wg sync.WaitGroup
}

type Option func(*Relay)

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *Relay) { r.log = log }
}

func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan events.Event, n)
		}
	}
}

func New(subjects []string, out Broadcaster, opts ...Option) *Relay {
	r := &Relay{
		subjects: append([]string(nil), subjects...),
		out:      out,
		queue:    make(chan events.Event, 256),
		log:      logging.Component("relay"),
		metrics:  metrics.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Subjects() []string {
	return append([]string(nil), r.subjects...)
}

// Run é o dispatcher: entrega os eventos ao Broadcaster na ordem em que
// chegam no canal. Bloqueia até ctx acabar.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.out.Broadcast(ev)
		}
	}
}

// Install é o events.ConnectedFunc do relay
func (r *Relay) Install(ctx context.Context, conn events.Conn) {
	if err := r.SubscribeAll(ctx, conn); err != nil {
		r.log.WithError(err).Error("subscribe event subjects")
	}
}

// SubscribeAll abre uma subscrição por subject no handle conn. Os
// consumidores vivem até ctx acabar ou o handle cair.
func (r *Relay) SubscribeAll(ctx context.Context, conn events.Conn) error {
	var errs []error
	for _, subject := range r.subjects {
		sub, err := conn.SubscribeSync(subject)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.log.WithField("subject", subject).Info("subscribed")

		r.wg.Add(1)
		go r.consume(ctx, subject, sub)
	}
	if len(errs) > 0 {
		return fmt.Errorf("subscribe: %w", errors.Join(errs...))
	}
	return nil
}

// Wait bloqueia até todos os consumidores terminarem
func (r *Relay) Wait() {
	r.wg.Wait()
}

func (r *Relay) consume(ctx context.Context, subject string, sub events.Subscription) {
	defer r.wg.Done()
	defer sub.Unsubscribe()

	log := r.log.WithField("subject", subject)
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, events.ErrSubscriptionClosed) {
				log.Debug("consumer stopped")
				return
			}
			log.WithError(err).Warn("next message")
			continue
		}

		r.metrics.EventReceived(subject)
		ev, err := decode(subject, msg.Data())
		if err != nil {
			r.metrics.EventDropped(subject)
			log.WithError(err).Warn("dropping malformed event")
			continue
		}

		select {
		case r.queue <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func decode(subject string, data []byte) (events.Event, error) {
	if !gjson.ValidBytes(data) {
		return events.Event{}, fmt.Errorf("invalid json payload (%d bytes)", len(data))
	}
	return events.Event{
		Type: subject,
		Data: append([]byte(nil), data...),
	}, nil
}
