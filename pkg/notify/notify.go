// Package notify surfaces failures to the person using the shell.
// Notices stay on the native side; they never cross the content bridge.
package notify

import (
	"context"
	"log/slog"

	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

type Notice struct {
	Code    bridge.ErrorCode
	Title   string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function, e.g. a native alert binding.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Log writes notices as structured records when no UI is attached.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{log: logger.With("op", "notify")}
}

func (l *Log) Notify(ctx context.Context, n Notice) {
	l.log.WarnContext(ctx, n.Title,
		slog.String("code", string(n.Code)),
		slog.String("message", n.Message),
	)
}
