package bridge

type Type string

const (
	// inbound, sent by the embedded content
	StartRecord Type = "START_RECORD"
	StopRecord  Type = "STOP_RECORD"

	// outbound, sent by the shell
	RecordingCompleted Type = "RECORDING_COMPLETED"
	RecordingFailed    Type = "RECORDING_FAILED" // opt-in extension, see Failure
)

// Known reports whether t is one of the types this version of the schema
// understands. Unknown types are still well-formed messages.
func (t Type) Known() bool {
	switch t {
	case StartRecord, StopRecord, RecordingCompleted, RecordingFailed:
		return true
	}
	return false
}

type ErrorCode string

const (
	CodePermissionDenied     ErrorCode = "PERMISSION_DENIED"
	CodeRecordingStartFailed ErrorCode = "RECORDING_START_FAILED"
	CodeRecordingStopFailed  ErrorCode = "RECORDING_STOP_FAILED"
	CodeAlreadyRecording     ErrorCode = "ALREADY_RECORDING"
)

// Failure is the payload of RECORDING_FAILED.
type Failure struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"` // safe for display, never a raw OS error
}

// Message is the unit crossing the content boundary in either direction.
// Payload fields sit next to "type" on the wire:
//
//	{"type":"RECORDING_COMPLETED","uri":"file:///..."}
type Message struct {
	Type Type `json:"type"`

	// RECORDING_COMPLETED only
	URI string `json:"uri,omitempty"`

	// RECORDING_FAILED only
	Error *Failure `json:"error,omitempty"`
}

// Constructors (make invalid messages hard to create)

func NewStartRecord() Message { return Message{Type: StartRecord} }

func NewStopRecord() Message { return Message{Type: StopRecord} }

func NewRecordingCompleted(uri string) Message {
	return Message{Type: RecordingCompleted, URI: uri}
}

func NewRecordingFailed(code ErrorCode, message string) Message {
	return Message{Type: RecordingFailed, Error: &Failure{Code: code, Message: message}}
}
