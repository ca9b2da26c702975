package shell

import (
	"errors"
	"fmt"
	"time"
)

type NavigationKind string

const (
	LoadStarted  NavigationKind = "load_start"
	LoadFinished NavigationKind = "load_end"
	Navigated    NavigationKind = "navigated"
)

var ErrBadNavigation = errors.New("invalid navigation event")

// NavigationEvent is raised by the presentation layer. It never reaches the
// recorder; the shell only tracks it for status and gesture wiring.
type NavigationEvent struct {
	Kind      NavigationKind `json:"kind"`
	URL       string         `json:"url,omitempty"`
	CanGoBack bool           `json:"can_go_back"`
}

func (e NavigationEvent) Validate() error {
	switch e.Kind {
	case LoadStarted, LoadFinished, Navigated:
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrBadNavigation, e.Kind)
	}
}

type NavigationState struct {
	URL       string    `json:"url,omitempty"`
	Loading   bool      `json:"loading"`
	CanGoBack bool      `json:"can_go_back"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (s NavigationState) apply(e NavigationEvent, at time.Time) NavigationState {
	switch e.Kind {
	case LoadStarted:
		s.Loading = true
	case LoadFinished:
		s.Loading = false
	}
	if e.URL != "" {
		s.URL = e.URL
	}
	s.CanGoBack = e.CanGoBack
	s.UpdatedAt = at
	return s
}
