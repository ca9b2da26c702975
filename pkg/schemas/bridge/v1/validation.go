package bridge

import "errors"

type ValidationIssue struct{ Field, Reason string }

type ValidationError struct{ Issues []ValidationIssue }

// ErrMalformedMessage marks inbound text that failed to parse or does not
// satisfy the message contract.
var ErrMalformedMessage = errors.New("malformed message")

func (e *ValidationError) Error() string { return ErrMalformedMessage.Error() }
func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}
func (e *ValidationError) Is(target error) bool { return target == ErrMalformedMessage }

// Validate checks the per-type contract. Unknown types only need a type.
func (m *Message) Validate() error {
	ve := &ValidationError{}

	if m.Type == "" {
		ve.add("type", "required")
	}
	switch m.Type {
	case StartRecord, StopRecord:
		if m.URI != "" {
			ve.add("uri", "omit for commands")
		}
		if m.Error != nil {
			ve.add("error", "omit for commands")
		}
	case RecordingCompleted:
		if m.URI == "" {
			ve.add("uri", "required for "+string(RecordingCompleted))
		}
		if m.Error != nil {
			ve.add("error", "must be empty for "+string(RecordingCompleted))
		}
	case RecordingFailed:
		if m.Error == nil || m.Error.Code == "" {
			ve.add("error.code", "required for "+string(RecordingFailed))
		}
		if m.URI != "" {
			ve.add("uri", "omit for "+string(RecordingFailed))
		}
	}

	if len(ve.Issues) > 0 {
		return ve
	}
	return nil
}
