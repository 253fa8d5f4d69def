package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/diogoX451/callrelay/internal/events"
	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/internal/metrics"
	"github.com/diogoX451/callrelay/pkg/types"
)

const (
	DefaultTimeout = 5 * time.Second

	NotConnectedMessage = "Not connected to bus"
)

// Source fornece o handle vivo do bus (events.Connection)
type Source interface {
	Current() (events.Conn, bool)
}

// Bridge transforma um comando num request/reply correlacionado no subject
// de API do nó. Cada chamada é independente.
type Bridge struct {
	src     Source
	subject string
	timeout time.Duration
	now     func() time.Time

	log     *logrus.Entry
	metrics metrics.Recorder
}

type Option func(*Bridge)

func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(b *Bridge) { b.metrics = m }
}

func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) { b.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func New(src Source, subject string, opts ...Option) *Bridge {
	b := &Bridge{
		src:     src,
		subject: subject,
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     logging.Component("command"),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Subject() string { return b.subject }

// Send nunca devolve erro: toda falha vira um Result com success=false.
// Não há cancelamento externo; resolve por reply ou pelo timeout fixo.
func (b *Bridge) Send(command, args string) Result {
	conn, ok := b.src.Current()
	if !ok {
		b.metrics.CommandCompleted(command, string(KindNotConnected), 0)
		return failure(KindNotConnected, NotConnectedMessage, 0)
	}

	start := b.now()
	startMs := start.UnixMilli()

	payload, err := json.Marshal(types.CommandRequest{Command: command, Args: args})
	if err != nil {
		return b.finish(command, start, failure(KindEncode, err.Error(), startMs))
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	msg, err := conn.Request(ctx, b.subject, payload)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, events.ErrRequestTimeout) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		b.log.WithError(err).WithFields(logrus.Fields{
			"command": command,
			"kind":    kind,
		}).Warn("command failed")
		return b.finish(command, start, failure(kind, err.Error(), startMs))
	}

	res, err := fromReply(msg.Data(), startMs)
	if err != nil {
		b.log.WithError(err).WithField("command", command).Warn("undecodable command reply")
		return b.finish(command, start, failure(KindDecode, err.Error(), startMs))
	}
	return b.finish(command, start, res)
}

func (b *Bridge) finish(command string, start time.Time, res Result) Result {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		if res.Kind != "" {
			outcome = string(res.Kind)
		}
	}
	b.metrics.CommandCompleted(command, outcome, b.now().Sub(start))
	return res
}

// fromReply mescla start_time no objeto JSON da resposta
func fromReply(data []byte, startMs int64) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, fmt.Errorf("invalid json reply (%d bytes)", len(data))
	}
	if !gjson.ParseBytes(data).IsObject() {
		return Result{}, errors.New("reply is not a json object")
	}
	raw, err := sjson.SetBytes(data, "start_time", startMs)
	if err != nil {
		return Result{}, fmt.Errorf("merge start_time: %w", err)
	}
	return parse(raw), nil
}
