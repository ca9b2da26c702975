// Package dispatch routes inbound bridge commands to the recorder and
// contains every failure at this boundary.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/notify"
	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	"github.com/roboricindustries/raycon-micbridge/pkg/recorder"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	Recording() bool
}

type Sender interface {
	Send(ctx context.Context, msg bridge.Message)
}

type Config struct {
	Recorder Recorder
	Notifier notify.Notifier
	Hook     observe.Hook
	Logger   *slog.Logger

	// Out and EmitFailureEvents enable RECORDING_FAILED across the bridge.
	Out               Sender
	EmitFailureEvents bool
}

type Dispatcher struct {
	rec        Recorder
	notifier   notify.Notifier
	hook       observe.Hook
	log        *slog.Logger
	out        Sender
	emitFailed bool
}

func New(cfg Config) *Dispatcher {
	if cfg.Hook == nil {
		cfg.Hook = observe.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLog(cfg.Logger)
	}
	return &Dispatcher{
		rec:        cfg.Recorder,
		notifier:   cfg.Notifier,
		hook:       cfg.Hook,
		log:        cfg.Logger.With("op", "dispatch"),
		out:        cfg.Out,
		emitFailed: cfg.EmitFailureEvents && cfg.Out != nil,
	}
}

// Dispatch runs the command carried by msg and waits for it. Unknown types
// are ignored. Nothing escapes: errors and panics end here.
func (d *Dispatcher) Dispatch(ctx context.Context, msg bridge.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(ctx, msg.Type, fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch msg.Type {
	case bridge.StartRecord:
		err = d.rec.Start(ctx)
	case bridge.StopRecord:
		_, err = d.rec.Stop(ctx)
	default:
		d.log.Debug("ignored message", slog.String("type", string(msg.Type)))
		return
	}
	if err != nil {
		d.fail(ctx, msg.Type, err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, cmd bridge.Type, err error) {
	code, ok := recorder.CodeOf(err)
	if !ok {
		code = bridge.CodeRecordingStartFailed
		if cmd == bridge.StopRecord {
			code = bridge.CodeRecordingStopFailed
		}
	}
	d.log.Error("command failed",
		slog.String("command", string(cmd)),
		slog.String("code", string(code)),
		slog.Any("err", err),
	)
	d.hook.Observe(ctx, bridge.SessionEventV1{
		Kind:      bridge.EventCommandFailed,
		Command:   cmd,
		Code:      code,
		Detail:    err.Error(),
		Recording: d.rec.Recording(),
		At:        time.Now(),
	})

	n := noticeFor(code)
	d.notifier.Notify(ctx, n)
	if d.emitFailed {
		d.out.Send(ctx, bridge.NewRecordingFailed(code, n.Message))
	}
}

func noticeFor(code bridge.ErrorCode) notify.Notice {
	switch code {
	case bridge.CodePermissionDenied:
		return notify.Notice{
			Code:    code,
			Title:   "Microphone access needed",
			Message: "Recording needs access to the microphone. Allow it in the system settings and try again.",
		}
	case bridge.CodeAlreadyRecording:
		return notify.Notice{
			Code:    code,
			Title:   "Already recording",
			Message: "A recording is already in progress.",
		}
	}
	return notify.Notice{
		Code:    code,
		Title:   "Recording failed",
		Message: "Something went wrong with the recording. Please try again.",
	}
}
