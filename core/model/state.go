package model

import (
	"strings"
	"time"
)

// Sentinel raw states reported by an upstream entity without a real reading.
const (
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// State is the raw state of an upstream entity as reported by the host.
type State struct {
	EntityID    string    `json:"entity_id" yaml:"entity_id"`
	Raw         string    `json:"state" yaml:"state"`
	LastChanged time.Time `json:"last_changed" yaml:"last_changed"`
}

// IsSentinel reports whether the raw state is one of the unavailable/unknown markers.
func (s State) IsSentinel() bool {
	switch strings.ToLower(strings.TrimSpace(s.Raw)) {
	case StateUnavailable, StateUnknown:
		return true
	}
	return false
}

// StateChange notifies a transition of an upstream entity. Old is nil for the
// first state seen; New is nil when the entity was removed.
type StateChange struct {
	EntityID string `json:"entity_id"`
	Old      *State `json:"old_state,omitempty"`
	New      *State `json:"new_state,omitempty"`
}
