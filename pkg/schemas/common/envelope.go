package common

import (
	"time"

	"github.com/google/uuid"
)

// EventMeta binds an event type to where it is published.
type EventMeta struct {
	EventType  string // e.g. "micbridge.session.v1"
	Exchange   string // e.g. "micbridge"
	RoutingKey string // e.g. "micbridge.session.v1"
}

type Meta struct {
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      *string   `json:"producer,omitempty"` // emitting service and version
	Time          time.Time `json:"time"`
	Type          string    `json:"type"` // e.g. micbridge.session.v1
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type GenericEnvelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// NewEnvelope stamps a fresh id and emission time for an event of kind em.
func NewEnvelope(em EventMeta, producer string, data any) Envelope {
	env := Envelope{
		Meta: Meta{
			ID:   uuid.NewString(),
			Time: time.Now().UTC(),
			Type: em.EventType,
		},
		Data: data,
	}
	if producer != "" {
		env.Meta.Producer = &producer
	}
	return env
}

// CorrelationOrID returns the correlation id, falling back to the event id.
func (m Meta) CorrelationOrID() string {
	if m.CorrelationID != nil && *m.CorrelationID != "" {
		return *m.CorrelationID
	}
	return m.ID
}
