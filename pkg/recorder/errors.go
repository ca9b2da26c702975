package recorder

import (
	"errors"
	"fmt"

	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
)

var (
	ErrPermissionDenied     = errors.New("microphone permission denied")
	ErrRecordingStartFailed = errors.New("recording start failed")
	ErrRecordingStopFailed  = errors.New("recording stop failed")
	ErrAlreadyRecording     = errors.New("already recording")
)

// Error is a failed session operation. It matches its code's sentinel via
// errors.Is and unwraps to the underlying cause.
type Error struct {
	Code bridge.ErrorCode
	Op   string // start | stop
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, sentinel(e.Code))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return target == sentinel(e.Code)
}

func sentinel(code bridge.ErrorCode) error {
	switch code {
	case bridge.CodePermissionDenied:
		return ErrPermissionDenied
	case bridge.CodeRecordingStartFailed:
		return ErrRecordingStartFailed
	case bridge.CodeRecordingStopFailed:
		return ErrRecordingStopFailed
	case bridge.CodeAlreadyRecording:
		return ErrAlreadyRecording
	}
	return errors.New(string(code))
}

// CodeOf extracts the failure code of err, if it is a session error.
func CodeOf(err error) (bridge.ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

func startErr(code bridge.ErrorCode, err error) error {
	return &Error{Code: code, Op: "start", Err: err}
}

func stopErr(err error) error {
	return &Error{Code: bridge.CodeRecordingStopFailed, Op: "stop", Err: err}
}
