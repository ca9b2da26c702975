package bridge

import "time"

type SessionEventKind string

const (
	EventStateChanged      SessionEventKind = "session.state_changed"
	EventCommandFailed     SessionEventKind = "command.failed"
	EventMessageDropped    SessionEventKind = "message.dropped"
	EventPermissionChecked SessionEventKind = "permission.checked"
	EventAppStateChanged   SessionEventKind = "app.state_changed"
)

// SessionEventV1 is the structured diagnostic record emitted by the shell.
// It never crosses the content boundary; it goes to the observability hook.
type SessionEventV1 struct {
	Kind      SessionEventKind `json:"kind"`
	SessionID string           `json:"session_id,omitempty"` // local only

	// state_changed: session states; app.state_changed: app states
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Command Type      `json:"command,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
	Detail  string    `json:"detail,omitempty"`

	Recording bool      `json:"recording"`
	At        time.Time `json:"at"`
}
