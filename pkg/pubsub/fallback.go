package pubsub

import (
	"context"
	"log/slog"

	"github.com/roboricindustries/raycon-micbridge/pkg/schemas/common"
)

// FallbackPublisher stands in when no broker is configured.
type FallbackPublisher struct {
	log *slog.Logger
}

func (p *FallbackPublisher) Publish(ctx context.Context, key string, msg common.Envelope) error {
	p.log.Debug("no broker configured, skipped publish",
		slog.String("key", key), slog.String("type", msg.Meta.Type))
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}

func NewFallback(logger *slog.Logger) Publisher {
	return &FallbackPublisher{
		log: logger,
	}
}
