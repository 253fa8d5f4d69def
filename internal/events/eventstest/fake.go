// Package eventstest é um transporte de bus em memória para testes.
package eventstest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diogoX451/callrelay/internal/events"
)

// Responder responde um request. Devolver ctx.Err() simula um nó mudo.
type Responder func(ctx context.Context, subject string, payload []byte) ([]byte, error)

// Silent nunca responde; o request só termina pelo deadline.
func Silent(ctx context.Context, _ string, _ []byte) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type Msg struct {
	subject string
	reply   string
	data    []byte
}

func (m *Msg) Subject() string { return m.subject }
func (m *Msg) Data() []byte    { return m.data }
func (m *Msg) Reply() string   { return m.reply }

// Conn é um events.Conn fake com roteamento por subject exato.
type Conn struct {
	mu       sync.Mutex
	subs     map[string][]*Subscription
	closed   bool
	respond  Responder
	requests []Msg
}

var _ events.Conn = (*Conn)(nil)

func NewConn() *Conn {
	return &Conn{subs: make(map[string][]*Subscription)}
}

func (c *Conn) SetResponder(r Responder) {
	c.mu.Lock()
	c.respond = r
	c.mu.Unlock()
}

func (c *Conn) SubscribeSync(subject string) (events.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("subscribe %s: %w", subject, events.ErrSubscriptionClosed)
	}
	sub := &Subscription{
		conn:    c,
		subject: subject,
		ch:      make(chan *Msg, 256),
		done:    make(chan struct{}),
	}
	c.subs[subject] = append(c.subs[subject], sub)
	return sub, nil
}

// Publish entrega payload para toda subscrição viva no subject.
func (c *Conn) Publish(subject string, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("publish %s: %w", subject, events.ErrNotConnected)
	}
	targets := append([]*Subscription(nil), c.subs[subject]...)
	c.mu.Unlock()

	for _, sub := range targets {
		data := append([]byte(nil), payload...)
		select {
		case sub.ch <- &Msg{subject: subject, data: data}:
		case <-sub.done:
		}
	}
	return nil
}

func (c *Conn) Request(ctx context.Context, subject string, payload []byte) (events.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("request %s: %w", subject, events.ErrNotConnected)
	}
	c.requests = append(c.requests, Msg{subject: subject, data: append([]byte(nil), payload...)})
	respond := c.respond
	c.mu.Unlock()

	if respond == nil {
		respond = Silent
	}
	reply, err := respond(ctx, subject, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(events.ErrRequestTimeout, err)
		}
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return &Msg{subject: subject, data: reply}, nil
}

// Close mata o handle; as subscrições passam a devolver ErrSubscriptionClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	all := c.subs
	c.subs = make(map[string][]*Subscription)
	c.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.stop()
		}
	}
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscriptions conta as subscrições vivas no subject.
func (c *Conn) Subscriptions(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[subject])
}

// Requests devolve uma cópia dos requests recebidos até agora.
func (c *Conn) Requests() []Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Msg(nil), c.requests...)
}

func (c *Conn) remove(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[sub.subject]
	for i, s := range subs {
		if s == sub {
			c.subs[sub.subject] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

type Subscription struct {
	conn    *Conn
	subject string
	ch      chan *Msg
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription) Next(ctx context.Context) (events.Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return nil, events.ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Subscription) Unsubscribe() error {
	s.conn.remove(s)
	s.stop()
	return nil
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Dialer entrega Conns novas e deixa o teste derrubá-las.
type Dialer struct {
	mu      sync.Mutex
	fail    int
	dials   int
	conns   []*Conn
	reports []events.ReportFunc
	setup   func(*Conn)
	dialed  chan *Conn
}

func NewDialer() *Dialer {
	return &Dialer{dialed: make(chan *Conn, 16)}
}

// FailNext faz as próximas n discagens falharem.
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	d.fail = n
	d.mu.Unlock()
}

// Setup roda em cada Conn nova antes de ser entregue.
func (d *Dialer) Setup(fn func(*Conn)) {
	d.mu.Lock()
	d.setup = fn
	d.mu.Unlock()
}

func (d *Dialer) Dial(ctx context.Context, report events.ReportFunc) (events.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	if d.fail > 0 {
		d.fail--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	conn := NewConn()
	if d.setup != nil {
		d.setup(conn)
	}
	d.conns = append(d.conns, conn)
	d.reports = append(d.reports, report)
	d.mu.Unlock()

	select {
	case d.dialed <- conn:
	default:
	}
	return conn, nil
}

// Dialed recebe cada Conn discada com sucesso.
func (d *Dialer) Dialed() <-chan *Conn {
	return d.dialed
}

func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Drop simula o transporte desistindo do handle atual.
func (d *Dialer) Drop() {
	conn, report := d.last()
	if conn == nil {
		return
	}
	_ = conn.Close()
	report(events.LinkClosed, errors.New("connection reset by peer"))
}

// Blip simula um reconnect da lib no mesmo handle.
func (d *Dialer) Blip() {
	_, report := d.last()
	if report == nil {
		return
	}
	report(events.LinkDown, errors.New("stale connection"))
	report(events.LinkUp, nil)
}

func (d *Dialer) last() (*Conn, events.ReportFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, nil
	}
	return d.conns[len(d.conns)-1], d.reports[len(d.reports)-1]
}
