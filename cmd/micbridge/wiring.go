package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rabbitmq/amqp091-go"
	"github.com/spf13/afero"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/roboricindustries/raycon-micbridge/pkg/capture/arecord"
	"github.com/roboricindustries/raycon-micbridge/pkg/capture/synthetic"
	"github.com/roboricindustries/raycon-micbridge/pkg/config"
	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	"github.com/roboricindustries/raycon-micbridge/pkg/pubsub"
)

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", cfg.Producer), nil
}

func newDevice(cfg config.Config, fsys afero.Fs, logger *slog.Logger) (capture.Device, error) {
	switch cfg.CaptureBackend {
	case config.BackendArecord:
		return arecord.New(cfg.ArecordBinary, cfg.RecordingsDir, fsys, logger), nil
	case config.BackendSynthetic:
		return synthetic.New(fsys, cfg.RecordingsDir), nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", cfg.CaptureBackend)
}

func newAuthorizer(cfg config.Config, fsys afero.Fs) permission.Authorizer {
	switch strings.ToLower(cfg.PermissionOverride) {
	case "granted":
		return permission.Static(permission.Granted)
	case "denied":
		return permission.Static(permission.Denied)
	}
	return permission.NewDeviceAuthorizer(fsys, cfg.DeviceDir)
}

// newPublisher dials the broker when one is configured. Without a URL,
// events go to the fallback publisher.
func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (pubsub.Publisher, error) {
	if cfg.AMQPURL == "" {
		return pubsub.NewFallback(logger), nil
	}
	conn, err := dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	pub, err := pubsub.NewPublisher(conn, cfg.AMQPExchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return pub, nil
}

func newSubscriber(ctx context.Context, cfg config.Config, logger *slog.Logger) (pubsub.Subscriber, error) {
	conn, err := dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	// one worker: content messages must be handled in queue order
	sub, err := pubsub.NewSubscriber(conn, cfg.AMQPExchange, logger, 64, 1)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sub, nil
}

func dial(ctx context.Context, cfg config.Config, logger *slog.Logger) (*amqp091.Connection, error) {
	return pubsub.DialWithRetry(ctx, pubsub.ConnectionOptions{
		URL:           cfg.AMQPURL,
		RetryAttempts: cfg.AMQPRetries,
		Delay:         cfg.AMQPRetryWait,
		Logger:        logger,
	})
}

// newHook logs session events and forwards them to the broker. The
// returned publisher must be closed before pub.
func newHook(pub pubsub.Publisher, cfg config.Config, logger *slog.Logger) (observe.Hook, *observe.Publisher) {
	events := observe.NewPublisher(pub, cfg.Producer, logger)
	return observe.Multi{observe.NewSlog(logger), events}, events
}
