package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diogoX451/callrelay/internal/events"
)

// Conn adapta uma conexão core NATS para events.Conn
type Conn struct {
	nc *nats.Conn
}

// Verifica interface
var _ events.Conn = (*Conn)(nil)

type Config struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	// MaxReconnects == 0 desliga o reconnect da lib: toda queda volta para o
	// supervisor, que disca um handle novo e reinstala as subscrições.
	MaxReconnects int
	ReconnectWait time.Duration
}

// Dialer devolve um events.Dialer que abre conexões NATS com cfg
func Dialer(cfg Config) events.Dialer {
	return func(ctx context.Context, report events.ReportFunc) (events.Conn, error) {
		return Dial(ctx, cfg, report)
	}
}

func Dial(ctx context.Context, cfg Config, report events.ReportFunc) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if report == nil {
		report = func(events.LinkEvent, error) {}
	}

	name := cfg.Name
	if name == "" {
		name = "callrelay"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			report(events.LinkDown, err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			report(events.LinkUp, nil)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			report(events.LinkClosed, nc.LastError())
		}),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectTimeout))
	}
	if cfg.MaxReconnects == 0 {
		opts = append(opts, nats.NoReconnect())
	} else {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
		if cfg.ReconnectWait > 0 {
			opts = append(opts, nats.ReconnectWait(cfg.ReconnectWait))
		}
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}

	return &Conn{nc: nc}, nil
}

// SubscribeSync abre uma subscrição core (sem JetStream)
func (c *Conn) SubscribeSync(subject string) (events.Subscription, error) {
	sub, err := c.nc.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, mapErr(err))
	}
	return &natsSubscription{sub: sub}, nil
}

// Request faz request/reply; a correlação fica com o inbox da lib
func (c *Conn) Request(ctx context.Context, subject string, payload []byte) (events.Message, error) {
	msg, err := c.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, mapErr(err))
	}
	return &natsMessage{msg: msg}, nil
}

// Publish envia mensagem bruta
func (c *Conn) Publish(subject string, payload []byte) error {
	if err := c.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, mapErr(err))
	}
	return nil
}

func (c *Conn) ConnectedURL() string {
	return c.nc.ConnectedUrl()
}

// Close encerra conexão
func (c *Conn) Close() error {
	if !c.nc.IsClosed() {
		c.nc.Close()
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return errors.Join(events.ErrRequestTimeout, err)
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
		return errors.Join(events.ErrSubscriptionClosed, err)
	case errors.Is(err, nats.ErrConnectionReconnecting):
		return errors.Join(events.ErrNotConnected, err)
	}
	return err
}

// --- Implementações internas ---

type natsMessage struct {
	msg *nats.Msg
}

func (m *natsMessage) Data() []byte {
	return m.msg.Data
}

func (m *natsMessage) Subject() string {
	return m.msg.Subject
}

func (m *natsMessage) Reply() string {
	return m.msg.Reply
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Next(ctx context.Context) (events.Message, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &natsMessage{msg: msg}, nil
}

func (s *natsSubscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}
	return err
}
