// Package observe carries structured session diagnostics to the embedding
// application.
package observe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/pubsub"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/roboricindustries/raycon-micbridge/pkg/schemas/common"
)

type Hook interface {
	Observe(ctx context.Context, ev bridge.SessionEventV1)
}

type HookFunc func(ctx context.Context, ev bridge.SessionEventV1)

func (f HookFunc) Observe(ctx context.Context, ev bridge.SessionEventV1) { f(ctx, ev) }

// Nop drops every event.
var Nop Hook = HookFunc(func(context.Context, bridge.SessionEventV1) {})

// Multi fans an event out to every hook in order.
type Multi []Hook

func (m Multi) Observe(ctx context.Context, ev bridge.SessionEventV1) {
	for _, h := range m {
		h.Observe(ctx, ev)
	}
}

type Slog struct {
	log *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{log: logger.With("op", "observe")}
}

func (s *Slog) Observe(ctx context.Context, ev bridge.SessionEventV1) {
	attrs := []slog.Attr{
		slog.String("kind", string(ev.Kind)),
		slog.Bool("recording", ev.Recording),
	}
	if ev.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", ev.SessionID))
	}
	if ev.From != "" || ev.To != "" {
		attrs = append(attrs, slog.String("from", ev.From), slog.String("to", ev.To))
	}
	if ev.Command != "" {
		attrs = append(attrs, slog.String("command", string(ev.Command)))
	}
	if ev.Code != "" {
		attrs = append(attrs, slog.String("code", string(ev.Code)))
	}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}
	level := slog.LevelInfo
	if ev.Kind == bridge.EventCommandFailed || ev.Kind == bridge.EventMessageDropped {
		level = slog.LevelWarn
	}
	s.log.LogAttrs(ctx, level, "session event", attrs...)
}

const (
	publishBuffer  = 128
	publishTimeout = 5 * time.Second
)

// Publisher forwards events to the broker as enveloped
// micbridge.session.v1 messages. Observe only enqueues: one worker
// publishes, and events are dropped when the buffer is full, so a stalled
// broker never holds up a recording.
type Publisher struct {
	pub      pubsub.Publisher
	producer string
	log      *slog.Logger

	queue     chan common.Envelope
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPublisher(pub pubsub.Publisher, producer string, logger *slog.Logger) *Publisher {
	p := &Publisher{
		pub:      pub,
		producer: producer,
		log:      logger.With("op", "observe.publish"),
		queue:    make(chan common.Envelope, publishBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) Observe(_ context.Context, ev bridge.SessionEventV1) {
	env := common.NewEnvelope(bridge.SessionEventMeta, p.producer, ev)
	if ev.SessionID != "" {
		sid := ev.SessionID
		env.Meta.CorrelationID = &sid
	}
	select {
	case p.queue <- env:
	default:
		p.log.Warn("event buffer full, dropped", slog.String("kind", string(ev.Kind)))
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case env := <-p.queue:
			p.publish(env)
		case <-p.stop:
			for {
				select {
				case env := <-p.queue:
					p.publish(env)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(env common.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.pub.Publish(ctx, bridge.SessionEventMeta.RoutingKey, env); err != nil {
		p.log.Warn("publish session event", slog.String("id", env.Meta.ID), slog.Any("err", err))
	}
}

// Close publishes what is still buffered and stops the worker. It does not
// close the underlying publisher.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}
