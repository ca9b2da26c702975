// Package channel frames messages across the embedded content boundary.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

type Handler func(ctx context.Context, msg bridge.Message)

type Options struct {
	QueueSize   int
	SendTimeout time.Duration
	Hook        observe.Hook
	Logger      *slog.Logger
}

type Adapter struct {
	host        Host
	hook        observe.Hook
	log         *slog.Logger
	queueSize   int
	sendTimeout time.Duration
}

func NewAdapter(host Host, opts Options) *Adapter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Hook == nil {
		opts.Hook = observe.Nop
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		host:        host,
		hook:        opts.Hook,
		log:         opts.Logger.With("op", "channel"),
		queueSize:   opts.QueueSize,
		sendTimeout: opts.SendTimeout,
	}
}

// Send posts msg into the content. Delivery is fire-and-forget: failures
// are logged and dropped.
func (a *Adapter) Send(ctx context.Context, msg bridge.Message) {
	text, err := bridge.Encode(msg)
	if err != nil {
		a.log.Error("encode outbound message", slog.String("type", string(msg.Type)), slog.Any("err", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sendTimeout)
	defer cancel()
	if err := a.host.PostMessage(ctx, text); err != nil {
		a.log.Warn("post message", slog.String("type", string(msg.Type)), slog.Any("err", err))
		return
	}
	a.log.Debug("sent", slog.String("type", string(msg.Type)))
}

// Receive parses inbound text. Errors match bridge.ErrMalformedMessage.
func (a *Adapter) Receive(raw string) (bridge.Message, error) {
	return bridge.Decode(raw)
}

// Run subscribes to the host and hands inbound messages to h one at a time,
// in arrival order, until ctx is done. Malformed text is logged and dropped.
func (a *Adapter) Run(ctx context.Context, h Handler) error {
	queue := make(chan string, a.queueSize)
	unsubscribe := a.host.Subscribe(func(text string) {
		select {
		case queue <- text:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case raw := <-queue:
			a.handle(ctx, raw, h)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, raw string, h Handler) {
	msg, err := a.Receive(raw)
	if err != nil {
		a.log.Warn("dropped malformed message", slog.Int("bytes", len(raw)), slog.Any("err", err))
		a.hook.Observe(ctx, bridge.SessionEventV1{
			Kind:   bridge.EventMessageDropped,
			Detail: err.Error(),
			At:     time.Now(),
		})
		return
	}
	h(ctx, msg)
}
