package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/diogoX451/callrelay/internal/events"
)

const DefaultClientBuffer = 64

var (
	ErrSlowClient           = errors.New("stream client buffer full")
	ErrStreamingUnsupported = errors.New("response writer does not support flushing")
)

// Client é o sink de um cliente SSE. WriteFrame só enfileira; quem escreve
// no socket é a goroutine do handler HTTP (Attach), então um cliente lento
// nunca segura o fan-out dos outros.
type Client struct {
	id     string
	frames chan []byte

	// fechado quando o cliente sai do registry por falha de escrita
	done chan struct{}
	once sync.Once
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		id:     uuid.NewString(),
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) WriteFrame(frame []byte) error {
	select {
	case c.frames <- frame:
		return nil
	default:
		c.drop()
		return ErrSlowClient
	}
}

// Dropped é fechado quando o cliente é descartado por estar lento
func (c *Client) Dropped() <-chan struct{} { return c.done }

func (c *Client) drop() {
	c.once.Do(func() { close(c.done) })
}

// Attach transforma a resposta HTTP num stream SSE: manda o frame
// {"type":"connected"}, registra o cliente e bloqueia até o cliente sair,
// uma escrita falhar ou o registry descartar o cliente. Neste último caso a
// resposta termina com ErrSlowClient e o EventSource reconecta.
func (r *Registry) Attach(ctx context.Context, w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hello, err := Frame(events.Event{Type: "connected"})
	if err != nil {
		return err
	}
	if _, err := w.Write(hello); err != nil {
		return fmt.Errorf("write connected frame: %w", err)
	}
	flusher.Flush()

	client := NewClient(r.buffer)
	r.Register(client)
	defer r.Deregister(client)

	log := r.log.WithField("sink", client.ID())
	log.Info("stream client attached")

	for {
		select {
		case <-client.done:
			log.Info("stream client dropped")
			return ErrSlowClient
		default:
		}

		select {
		case <-ctx.Done():
			log.Info("stream client detached")
			return nil
		case <-client.done:
			log.Info("stream client dropped")
			return ErrSlowClient
		case frame := <-client.frames:
			if _, err := w.Write(frame); err != nil {
				log.WithError(err).Info("stream client write failed")
				return fmt.Errorf("write frame: %w", err)
			}
			flusher.Flush()
		}
	}
}

// usado pelos testes para checar o estado do cliente
func (c *Client) pending() int { return len(c.frames) }

var _ Sink = (*Client)(nil)
