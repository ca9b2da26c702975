package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

type fakeGate struct {
	mu     sync.Mutex
	status permission.Status
	err    error
	panics bool
	calls  int
}

func (g *fakeGate) EnsureGranted(context.Context) (permission.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.panics {
		g.panics = false
		panic("permission store unavailable")
	}
	return g.status, g.err
}

type fakeCapture struct {
	uri        string
	prepareErr error
	startErr   error
	stopErr    error
	uriErr     error
	startPanic any
	stopPanic  any

	// startGate, when set, blocks Start until closed; started is closed
	// once Start has been entered.
	startGate chan struct{}
	started   chan struct{}

	mu       sync.Mutex
	prepared capture.Preset
	stopped  bool
	released int
}

func (c *fakeCapture) Prepare(_ context.Context, p capture.Preset) error {
	c.mu.Lock()
	c.prepared = p
	c.mu.Unlock()
	return c.prepareErr
}

func (c *fakeCapture) Start(ctx context.Context) error {
	if c.started != nil {
		close(c.started)
	}
	if c.startGate != nil {
		select {
		case <-c.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.startPanic != nil {
		panic(c.startPanic)
	}
	return c.startErr
}

func (c *fakeCapture) Stop(context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	if c.stopPanic != nil {
		panic(c.stopPanic)
	}
	return c.stopErr
}

func (c *fakeCapture) URI() (string, error) { return c.uri, c.uriErr }

func (c *fakeCapture) Release() error {
	c.mu.Lock()
	c.released++
	c.mu.Unlock()
	return nil
}

// fakeDevice hands out queued captures, or fails allocation when allocErr
// is set.
type fakeDevice struct {
	mu       sync.Mutex
	queue    []*fakeCapture
	allocErr error
	allocs   int
}

func (d *fakeDevice) NewCapture(context.Context) (capture.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocs++
	if d.allocErr != nil {
		return nil, d.allocErr
	}
	if len(d.queue) == 0 {
		return nil, errors.New("no capture queued")
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, nil
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []bridge.Message
}

func (s *fakeSender) Send(_ context.Context, msg bridge.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *fakeSender) sent() []bridge.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bridge.Message(nil), s.msgs...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) Observe(_ context.Context, ev bridge.SessionEventV1) {
	if ev.Kind != bridge.EventStateChanged {
		return
	}
	l.mu.Lock()
	l.states = append(l.states, State(ev.To))
	l.mu.Unlock()
}

func (l *stateLog) seen() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

type harness struct {
	gate   *fakeGate
	device *fakeDevice
	out    *fakeSender
	states *stateLog
	m      *Manager
}

func newHarness(captures ...*fakeCapture) *harness {
	h := &harness{
		gate:   &fakeGate{status: permission.Granted},
		device: &fakeDevice{queue: captures},
		out:    &fakeSender{},
		states: &stateLog{},
	}
	m, err := New(Config{
		Gate:   h.gate,
		Device: h.device,
		Out:    h.out,
		Hook:   h.states,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		panic(err)
	}
	h.m = m
	return h
}
