// Package recorder owns the recording session lifecycle:
// idle -> requesting_permission -> recording -> finalizing -> idle.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"golang.org/x/sync/semaphore"
)

type PermissionGate interface {
	EnsureGranted(ctx context.Context) (permission.Status, error)
}

// Sender delivers outbound messages across the content boundary.
type Sender interface {
	Send(ctx context.Context, msg bridge.Message)
}

type Config struct {
	Gate   PermissionGate
	Device capture.Device
	Out    Sender
	Preset capture.Preset // zero value means capture.HighQuality
	Hook   observe.Hook
	Logger *slog.Logger
	Now    func() time.Time
}

type Manager struct {
	gate   PermissionGate
	device capture.Device
	out    Sender
	preset capture.Preset
	hook   observe.Hook
	log    *slog.Logger
	now    func() time.Time

	// one permit: start and stop never interleave, so a stop issued while
	// a start is suspended runs after it
	flight *semaphore.Weighted

	mu      sync.Mutex
	session Session
}

func New(cfg Config) (*Manager, error) {
	switch {
	case cfg.Gate == nil:
		return nil, errors.New("recorder: permission gate is required")
	case cfg.Device == nil:
		return nil, errors.New("recorder: capture device is required")
	case cfg.Out == nil:
		return nil, errors.New("recorder: sender is required")
	}
	if cfg.Preset == (capture.Preset{}) {
		cfg.Preset = capture.HighQuality
	}
	if cfg.Hook == nil {
		cfg.Hook = observe.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		gate:    cfg.Gate,
		device:  cfg.Device,
		out:     cfg.Out,
		preset:  cfg.Preset,
		hook:    cfg.Hook,
		log:     cfg.Logger.With("op", "recorder"),
		now:     cfg.Now,
		flight:  semaphore.NewWeighted(1),
		session: Session{State: Idle},
	}, nil
}

// Snapshot returns a copy of the session without its handle.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	s.handle = nil
	return s
}

func (m *Manager) Recording() bool { return m.Snapshot().Active() }

// Start checks permission, then allocates, configures and starts a capture
// handle. Any failure, a panicking collaborator included, leaves the
// manager idle with no handle.
func (m *Manager) Start(ctx context.Context) (err error) {
	if err := m.flight.Acquire(ctx, 1); err != nil {
		return startErr(bridge.CodeRecordingStartFailed, err)
	}
	defer m.flight.Release(1)

	if s := m.Snapshot(); s.Active() {
		return &Error{Code: bridge.CodeAlreadyRecording, Op: "start"}
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.session.ID = id
	m.mu.Unlock()
	m.transition(ctx, RequestingPermission)

	var h capture.Capture
	defer func() {
		if r := recover(); r != nil {
			if h != nil {
				m.discard(h)
			}
			m.reset(ctx, "")
			err = startErr(bridge.CodeRecordingStartFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	st, err := m.gate.EnsureGranted(ctx)
	if err == nil && st != permission.Granted {
		err = fmt.Errorf("status %s", st)
	}
	if err != nil {
		m.reset(ctx, "")
		return startErr(bridge.CodePermissionDenied, err)
	}

	h, err = m.device.NewCapture(ctx)
	if err != nil {
		m.reset(ctx, "")
		return startErr(bridge.CodeRecordingStartFailed, fmt.Errorf("allocate: %w", err))
	}
	if err := h.Prepare(ctx, m.preset); err != nil {
		m.discard(h)
		m.reset(ctx, "")
		return startErr(bridge.CodeRecordingStartFailed, fmt.Errorf("configure %s: %w", m.preset.Name, err))
	}
	if err := h.Start(ctx); err != nil {
		m.discard(h)
		m.reset(ctx, "")
		return startErr(bridge.CodeRecordingStartFailed, fmt.Errorf("begin capture: %w", err))
	}

	m.mu.Lock()
	m.session.handle = h
	m.session.StartedAt = m.now()
	m.mu.Unlock()
	m.transition(ctx, Recording)
	m.log.Info("recording started", slog.String("session_id", id), slog.String("preset", m.preset.Name))
	return nil
}

// Stop ends the capture, resolves the artifact and sends exactly one
// RECORDING_COMPLETED carrying it. Without a handle it does nothing.
// The handle is cleared on every path, panics included.
func (m *Manager) Stop(ctx context.Context) (uri string, err error) {
	if err := m.flight.Acquire(ctx, 1); err != nil {
		return "", stopErr(err)
	}
	defer m.flight.Release(1)

	m.mu.Lock()
	h, id := m.session.handle, m.session.ID
	m.mu.Unlock()
	if h == nil {
		m.log.Debug("stop ignored, no active recording")
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			// a resolved artifact is kept even if the handoff panicked
			if uri == "" {
				m.discard(h)
			}
			m.reset(ctx, uri)
			uri, err = "", stopErr(fmt.Errorf("panic: %v", r))
		}
	}()

	m.transition(ctx, Finalizing)

	resolved, err := m.finalize(ctx, h)
	if err != nil {
		m.discard(h)
		m.reset(ctx, "")
		return "", stopErr(err)
	}
	uri = resolved

	m.out.Send(ctx, bridge.NewRecordingCompleted(uri))
	m.reset(ctx, uri)
	m.log.Info("recording completed", slog.String("session_id", id), slog.String("uri", uri))
	return uri, nil
}

func (m *Manager) finalize(ctx context.Context, h capture.Capture) (string, error) {
	if err := h.Stop(ctx); err != nil {
		return "", fmt.Errorf("stop capture: %w", err)
	}
	uri, err := h.URI()
	if err != nil {
		return "", fmt.Errorf("resolve locator: %w", err)
	}
	if uri == "" {
		return "", errors.New("resolve locator: empty uri")
	}
	return uri, nil
}

func (m *Manager) discard(h capture.Capture) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("release capture handle panicked", slog.Any("panic", r))
		}
	}()
	if err := h.Release(); err != nil {
		m.log.Warn("release capture handle", slog.Any("err", err))
	}
}

// reset returns to idle and drops the handle. artifact is kept when set.
func (m *Manager) reset(ctx context.Context, artifact string) {
	m.mu.Lock()
	m.session.handle = nil
	m.session.StartedAt = time.Time{}
	if artifact != "" {
		m.session.LastArtifact = artifact
	}
	m.mu.Unlock()
	m.transition(ctx, Idle)
	m.mu.Lock()
	m.session.ID = ""
	m.mu.Unlock()
}

func (m *Manager) transition(ctx context.Context, to State) {
	m.mu.Lock()
	from := m.session.State
	m.session.State = to
	id := m.session.ID
	m.mu.Unlock()

	m.hook.Observe(ctx, bridge.SessionEventV1{
		Kind:      bridge.EventStateChanged,
		SessionID: id,
		From:      string(from),
		To:        string(to),
		Recording: to != Idle,
		At:        m.now(),
	})
}
