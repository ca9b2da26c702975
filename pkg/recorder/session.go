package recorder

import (
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
)

type State string

const (
	Idle                 State = "idle"
	RequestingPermission State = "requesting_permission"
	Recording            State = "recording"
	Finalizing           State = "finalizing"
)

// Session is the single capture the manager owns. handle is non-nil exactly
// while State is Recording or Finalizing.
type Session struct {
	ID        string    `json:"id,omitempty"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at,omitempty"`

	// LastArtifact is the locator handed off by the last successful stop.
	LastArtifact string `json:"last_artifact,omitempty"`

	handle capture.Capture
}

func (s Session) Active() bool { return s.State != Idle }
