package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommands(t *testing.T) {
	m, err := Decode(`{"type":"START_RECORD"}`)
	require.NoError(t, err)
	assert.Equal(t, NewStartRecord(), m)

	m, err = Decode(`{"type":"STOP_RECORD","sentAt":123}`)
	require.NoError(t, err)
	assert.Equal(t, NewStopRecord(), m)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		``,
		`null`,
		`"START_RECORD"`,
		`{"type":null}`,
		`{"Type":"START_RECORD"}`, // fields are case-sensitive
		`{"type":"START_RECORD","uri":"file:///x"}`,
		`{"type":"RECORDING_FAILED"}`,
		`{"type":"RECORDING_COMPLETED","uri":7}`,
	} {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedMessage, "input %q", raw)
	}
}

func TestDecodeUnknownTypeKeepsTag(t *testing.T) {
	m, err := Decode(`{"type":"PAUSE_RECORD","uri":5}`)
	require.NoError(t, err)
	assert.Equal(t, Type("PAUSE_RECORD"), m.Type)
	assert.False(t, m.Type.Known())
}

func TestEncodeRoundTrip(t *testing.T) {
	uri := "file:///data/user/0/app/cache/Audio/recording-6E1C.m4a?x=<&>"
	text, err := Encode(NewRecordingCompleted(uri))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"RECORDING_COMPLETED","uri":"`+uri+`"}`, text)

	back, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, uri, back.URI)
}

func TestEncodeFailure(t *testing.T) {
	text, err := Encode(NewRecordingFailed(CodePermissionDenied, "Microphone access is off"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"RECORDING_FAILED","error":{"code":"PERMISSION_DENIED","message":"Microphone access is off"}}`, text)

	_, err = Encode(Message{Type: RecordingFailed})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestValidationIssues(t *testing.T) {
	m := Message{Type: RecordingCompleted, Error: &Failure{Code: CodeAlreadyRecording}}
	err := m.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Issues, 2)
}
