// Package permission gates microphone access on the host OS authorization.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Status string

const (
	Granted      Status = "granted"
	Denied       Status = "denied"
	Undetermined Status = "undetermined"
)

// Authorizer is the host OS permission store.
type Authorizer interface {
	// Status reads the current authorization without prompting.
	Status(ctx context.Context) (Status, error)
	// Request asks the user for authorization and returns the outcome.
	Request(ctx context.Context) (Status, error)
}

// Gate re-checks authorization on every call. The last seen status is kept
// for diagnostics only.
type Gate struct {
	auth Authorizer
	log  *slog.Logger

	mu   sync.Mutex
	last Status
}

func NewGate(auth Authorizer, logger *slog.Logger) *Gate {
	return &Gate{
		auth: auth,
		log:  logger.With("op", "permission.gate"),
		last: Undetermined,
	}
}

// EnsureGranted queries the authorizer and prompts when not yet granted.
// Callers must abort unless the returned status is Granted.
func (g *Gate) EnsureGranted(ctx context.Context) (Status, error) {
	st, err := g.auth.Status(ctx)
	if err != nil {
		g.remember(Undetermined)
		return Undetermined, fmt.Errorf("query microphone permission: %w", err)
	}
	if st != Granted {
		g.log.Info("requesting microphone permission", slog.String("status", string(st)))
		st, err = g.auth.Request(ctx)
		if err != nil {
			g.remember(Undetermined)
			return Undetermined, fmt.Errorf("request microphone permission: %w", err)
		}
	}
	g.remember(st)
	g.log.Debug("microphone permission", slog.String("status", string(st)))
	return st, nil
}

// LastKnown returns the status seen by the most recent EnsureGranted.
func (g *Gate) LastKnown() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Gate) remember(st Status) {
	g.mu.Lock()
	g.last = st
	g.mu.Unlock()
}
