// Package shell wires the microphone bridge together: channel adapter,
// dispatcher, recorder, permission gate and lifecycle observer.
package shell

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/roboricindustries/raycon-micbridge/pkg/channel"
	"github.com/roboricindustries/raycon-micbridge/pkg/dispatch"
	"github.com/roboricindustries/raycon-micbridge/pkg/lifecycle"
	"github.com/roboricindustries/raycon-micbridge/pkg/notify"
	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	"github.com/roboricindustries/raycon-micbridge/pkg/recorder"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

const finalizeTimeout = 10 * time.Second

type Options struct {
	Host       channel.Host
	Authorizer permission.Authorizer
	Device     capture.Device
	Preset     capture.Preset

	Notifier notify.Notifier
	Hook     observe.Hook
	Logger   *slog.Logger

	BackgroundPolicy  lifecycle.Policy
	EmitFailureEvents bool
	QueueSize         int
	SendTimeout       time.Duration
}

type Shell struct {
	log        *slog.Logger
	gate       *permission.Gate
	recorder   *recorder.Manager
	adapter    *channel.Adapter
	dispatcher *dispatch.Dispatcher
	observer   *lifecycle.Observer
	appState   *lifecycle.Broadcaster

	mu  sync.Mutex
	nav NavigationState
}

// Status is a point-in-time view for diagnostics.
type Status struct {
	Session    recorder.Session   `json:"session"`
	Permission permission.Status  `json:"permission"`
	AppState   lifecycle.AppState `json:"app_state"`
	Navigation NavigationState    `json:"navigation"`
}

func New(opts Options) (*Shell, error) {
	switch {
	case opts.Host == nil:
		return nil, errors.New("shell: host is required")
	case opts.Authorizer == nil:
		return nil, errors.New("shell: authorizer is required")
	case opts.Device == nil:
		return nil, errors.New("shell: capture device is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hook == nil {
		opts.Hook = observe.Nop
	}

	adapter := channel.NewAdapter(opts.Host, channel.Options{
		QueueSize:   opts.QueueSize,
		SendTimeout: opts.SendTimeout,
		Hook:        opts.Hook,
		Logger:      opts.Logger,
	})
	gate := permission.NewGate(opts.Authorizer, opts.Logger)
	rec, err := recorder.New(recorder.Config{
		Gate:   gate,
		Device: opts.Device,
		Out:    adapter,
		Preset: opts.Preset,
		Hook:   opts.Hook,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	d := dispatch.New(dispatch.Config{
		Recorder:          rec,
		Notifier:          opts.Notifier,
		Hook:              opts.Hook,
		Logger:            opts.Logger,
		Out:               adapter,
		EmitFailureEvents: opts.EmitFailureEvents,
	})

	return &Shell{
		log:        opts.Logger.With("op", "shell"),
		gate:       gate,
		recorder:   rec,
		adapter:    adapter,
		dispatcher: d,
		observer:   lifecycle.NewObserver(rec, d, opts.BackgroundPolicy, opts.Hook, opts.Logger),
		appState:   lifecycle.NewBroadcaster(),
	}, nil
}

// Run serves the bridge until ctx is done. A recording still active at
// that point is stopped so its file is finalized.
func (s *Shell) Run(ctx context.Context) error {
	st, err := s.gate.EnsureGranted(ctx)
	if err != nil {
		s.log.Warn("initial permission check", slog.Any("err", err))
	}
	s.log.Info("bridge ready", slog.String("permission", string(st)))

	s.observer.Watch(ctx, s.appState)
	err = s.adapter.Run(ctx, s.dispatcher.Dispatch)
	s.finalize(ctx)
	return err
}

func (s *Shell) finalize(ctx context.Context) {
	if !s.recorder.Recording() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	uri, err := s.recorder.Stop(ctx)
	if err != nil {
		s.log.Error("finalize recording on shutdown", slog.Any("err", err))
		return
	}
	s.log.Info("recording finalized on shutdown", slog.String("uri", uri))
}

// Dispatch runs one command outside the content channel.
func (s *Shell) Dispatch(ctx context.Context, msg bridge.Message) {
	s.dispatcher.Dispatch(ctx, msg)
}

// SetAppState reports a host foreground/background change.
func (s *Shell) SetAppState(st lifecycle.AppState) {
	s.appState.Set(st)
}

func (s *Shell) Navigate(e NavigationEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.nav = s.nav.apply(e, time.Now())
	nav := s.nav
	s.mu.Unlock()
	s.log.Debug("navigation",
		slog.String("kind", string(e.Kind)),
		slog.String("url", nav.URL),
		slog.Bool("loading", nav.Loading))
	return nil
}

func (s *Shell) Navigation() NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

func (s *Shell) Status() Status {
	return Status{
		Session:    s.recorder.Snapshot(),
		Permission: s.gate.LastKnown(),
		AppState:   s.appState.Current(),
		Navigation: s.Navigation(),
	}
}
