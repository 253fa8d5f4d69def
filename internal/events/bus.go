package events

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotConnected       = errors.New("not connected to bus")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrRequestTimeout     = errors.New("request timed out")
)

// Conn é um handle vivo de transporte para o bus
type Conn interface {
	// Subscrição pull: cada subject tem seu próprio consumidor
	SubscribeSync(subject string) (Subscription, error)

	// Request/reply correlacionado pelo transporte
	Request(ctx context.Context, subject string, payload []byte) (Message, error)

	Publish(subject string, payload []byte) error

	Close() error
}

type Subscription interface {
	// Next bloqueia até a próxima mensagem. Retorna ErrSubscriptionClosed
	// quando o handle que criou a subscrição morre.
	Next(ctx context.Context) (Message, error)
	Unsubscribe() error
}

type Message interface {
	Subject() string
	Data() []byte
	Reply() string
}

// LinkEvent é reportado pelo transporte quando o estado do link muda
type LinkEvent int

const (
	LinkDown LinkEvent = iota
	LinkUp
	LinkClosed
)

func (e LinkEvent) String() string {
	switch e {
	case LinkDown:
		return "down"
	case LinkUp:
		return "up"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ReportFunc func(ev LinkEvent, err error)

// Dialer abre um novo handle. report pode ser chamado de qualquer goroutine.
type Dialer func(ctx context.Context, report ReportFunc) (Conn, error)

// Event é o frame entregue aos clientes de streaming
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
