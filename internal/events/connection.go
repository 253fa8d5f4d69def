package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diogoX451/callrelay/internal/logging"
)

const DefaultReconnectWait = 3 * time.Second

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectedFunc recebe cada handle novo. ctx é cancelado quando o handle cai.
type ConnectedFunc func(ctx context.Context, conn Conn)

// Connection supervisiona o ciclo de vida do handle de transporte.
// Só a goroutine supervisora disca, então tentativas nunca concorrem.
type Connection struct {
	dial    Dialer
	backoff time.Duration
	log     *logrus.Entry
	observe func(State)

	mu       sync.RWMutex
	state    State
	conn     Conn
	connCtx  context.Context
	gen      uint64
	handlers []ConnectedFunc

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type ConnectionOption func(*Connection)

func WithReconnectWait(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.backoff = d
		}
	}
}

func WithLogger(log *logrus.Entry) ConnectionOption {
	return func(c *Connection) { c.log = log }
}

// WithStateObserver é chamado a cada transição (ex.: gauge de métricas)
func WithStateObserver(fn func(State)) ConnectionOption {
	return func(c *Connection) { c.observe = fn }
}

func NewConnection(dial Dialer, opts ...ConnectionOption) *Connection {
	c := &Connection{
		dial:    dial,
		backoff: DefaultReconnectWait,
		log:     logging.L().WithField("component", "bus"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnConnected registra um callback para cada (re)conexão. Se já houver um
// handle vivo o callback roda imediatamente com ele.
func (c *Connection) OnConnected(fn ConnectedFunc) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	conn, ctx, live := c.conn, c.connCtx, c.state == Connected && c.conn != nil
	c.mu.Unlock()

	if live {
		fn(ctx, conn)
	}
}

// Start dispara a goroutine supervisora. Falhas de conexão nunca são
// devolvidas: viram retry depois do backoff.
func (c *Connection) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		go c.run(ctx)
	})
}

// Close derruba o supervisor e o handle atual
func (c *Connection) Close() error {
	// sem Start, o próprio Close fecha done
	c.startOnce.Do(func() { close(c.done) })
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
	return nil
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

// Current devolve o handle vivo, se houver
func (c *Connection) Current() (Conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Connected || c.conn == nil {
		return nil, false
	}
	return c.conn, true
}

func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	for attempt := 1; ; attempt++ {
		gen := c.begin()
		lost := make(chan struct{})
		var lostOnce sync.Once

		report := func(ev LinkEvent, err error) {
			switch ev {
			case LinkDown:
				if c.transition(gen, Disconnected) {
					c.log.WithError(err).Warn("bus link down, waiting for transport reconnect")
				}
			case LinkUp:
				if c.transition(gen, Connected) {
					c.log.Info("bus link restored")
				}
			case LinkClosed:
				lostOnce.Do(func() { close(lost) })
			}
		}

		conn, err := c.dial(ctx, report)
		if err != nil {
			c.transition(gen, Disconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"retry":   c.backoff,
			}).Warn("bus connect failed")
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		attempt = 0
		connCtx, dropped := context.WithCancel(ctx)
		c.install(connCtx, gen, conn)

		select {
		case <-ctx.Done():
			dropped()
			c.release(gen)
			_ = conn.Close()
			c.log.Info("bus connection closed")
			return
		case <-lost:
			dropped()
			c.release(gen)
			_ = conn.Close()
			c.log.WithField("retry", c.backoff).Warn("bus connection lost")
			if !sleep(ctx, c.backoff) {
				return
			}
		}
	}
}

func (c *Connection) begin() uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Connecting
	c.mu.Unlock()
	c.notify(Connecting)
	c.log.Debug("bus connecting")
	return gen
}

// transition ignora eventos de handles antigos
func (c *Connection) transition(gen uint64, s State) bool {
	c.mu.Lock()
	if gen != c.gen || c.state == s {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()
	c.notify(s)
	return true
}

func (c *Connection) install(ctx context.Context, gen uint64, conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connCtx = ctx
	c.state = Connected
	handlers := append([]ConnectedFunc(nil), c.handlers...)
	c.mu.Unlock()

	c.notify(Connected)
	c.log.WithField("generation", gen).Info("bus connected")

	for _, fn := range handlers {
		fn(ctx, conn)
	}
}

func (c *Connection) release(gen uint64) {
	c.mu.Lock()
	if gen == c.gen {
		c.conn = nil
		c.connCtx = nil
		c.state = Disconnected
	}
	c.mu.Unlock()
	c.notify(Disconnected)
}

func (c *Connection) notify(s State) {
	if c.observe != nil {
		c.observe(s)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
