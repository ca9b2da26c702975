package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode parses one inbound text message. Every failure wraps
// ErrMalformedMessage.
func Decode(raw string) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	rawType, ok := fields["type"]
	if !ok {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	var t string
	if err := json.Unmarshal(rawType, &t); err != nil {
		return Message{}, fmt.Errorf("%w: type is not a string", ErrMalformedMessage)
	}

	var m Message
	if t == "" || !Type(t).Known() {
		// forward compatibility: keep only the tag of types we do not model
		m.Type = Type(t)
	} else if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Encode renders m as wire text. HTML escaping is off so locators are
// carried byte for byte.
func Encode(m Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Type, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
