// Package lifecycle correlates host foreground/background transitions with
// an in-progress recording.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/observe"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

type AppState string

const (
	Active     AppState = "active"
	Inactive   AppState = "inactive"
	Background AppState = "background"
)

func ParseAppState(s string) (AppState, error) {
	switch st := AppState(s); st {
	case Active, Inactive, Background:
		return st, nil
	}
	return "", fmt.Errorf("unknown app state %q", s)
}

// Policy decides what happens to a recording when the host leaves the
// foreground.
type Policy string

const (
	// PolicyKeep only reports the transition; capture keeps running.
	PolicyKeep Policy = "keep"
	// PolicyStop finalizes the recording when the host is backgrounded.
	PolicyStop Policy = "stop"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyKeep, PolicyStop:
		return p, nil
	case "":
		return PolicyKeep, nil
	}
	return "", fmt.Errorf("unknown background policy %q", s)
}

// Source delivers host app-state transitions.
type Source interface {
	Subscribe(fn func(AppState)) (unsubscribe func())
}

// Broadcaster is a Source fed by the embedding application.
type Broadcaster struct {
	mu      sync.Mutex
	current AppState
	subs    map[int]func(AppState)
	nextID  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{current: Active, subs: make(map[int]func(AppState))}
}

func (b *Broadcaster) Subscribe(fn func(AppState)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Set records st and hands it to every subscriber, repeats included.
func (b *Broadcaster) Set(st AppState) {
	b.mu.Lock()
	b.current = st
	subs := make([]func(AppState), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (b *Broadcaster) Current() AppState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

type RecordingFlag interface {
	Recording() bool
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg bridge.Message)
}

type Observer struct {
	rec      RecordingFlag
	dispatch Dispatcher
	policy   Policy
	hook     observe.Hook
	log      *slog.Logger

	mu   sync.Mutex
	prev AppState
}

func NewObserver(rec RecordingFlag, d Dispatcher, policy Policy, hook observe.Hook, logger *slog.Logger) *Observer {
	if policy == "" {
		policy = PolicyKeep
	}
	if hook == nil {
		hook = observe.Nop
	}
	return &Observer{
		rec:      rec,
		dispatch: d,
		policy:   policy,
		hook:     hook,
		log:      logger.With("op", "lifecycle"),
		prev:     Active,
	}
}

// Watch subscribes to src until ctx is done.
func (o *Observer) Watch(ctx context.Context, src Source) {
	unsubscribe := src.Subscribe(func(st AppState) { o.Transition(ctx, st) })
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// Transition handles one host state change.
func (o *Observer) Transition(ctx context.Context, next AppState) {
	o.mu.Lock()
	prev := o.prev
	o.prev = next
	o.mu.Unlock()
	if prev == next {
		return
	}

	recording := o.rec.Recording()
	o.hook.Observe(ctx, bridge.SessionEventV1{
		Kind:      bridge.EventAppStateChanged,
		From:      string(prev),
		To:        string(next),
		Recording: recording,
		At:        time.Now(),
	})
	if !recording {
		return
	}

	attrs := []any{slog.String("from", string(prev)), slog.String("to", string(next)), slog.String("policy", string(o.policy))}
	switch {
	case prev == Active && next != Active:
		o.log.Warn("host left foreground during recording", attrs...)
	case next == Active:
		o.log.Info("host back in foreground during recording", attrs...)
	}

	if next == Background && o.policy == PolicyStop {
		o.log.Info("finalizing recording before background", attrs...)
		o.dispatch.Dispatch(ctx, bridge.NewStopRecord())
	}
}
