package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// Windowed holds the result of the last trailing-window query.
type Windowed struct {
	mu      sync.RWMutex
	window  time.Duration
	entries []model.Observation
}

// NewWindowed returns a store covering the trailing window.
// A non-positive window selects DefaultWindow.
func NewWindowed(window time.Duration) *Windowed {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Windowed{window: window}
}

// Window returns the trailing duration covered by the store.
func (s *Windowed) Window() time.Duration { return s.window }

// Range returns the query bounds [now-window, now].
func (s *Windowed) Range(now time.Time) (start, end time.Time) {
	return now.Add(-s.window), now
}

// Replace swaps the stored sequence for entries. Entries must already be
// filtered and chronological; an empty slice clears the store.
func (s *Windowed) Replace(entries []model.Observation) error {
	if !ordered(entries) {
		return fmt.Errorf("%w: replacement is not chronological", ErrOutOfOrder)
	}
	cp := make([]model.Observation, len(entries))
	copy(cp, entries)
	s.mu.Lock()
	s.entries = cp
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the stored entries.
func (s *Windowed) Snapshot() []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Observation, len(s.entries))
	copy(out, s.entries)
	return out
}

// Latest returns the newest stored observation.
func (s *Windowed) Latest() (model.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return model.Observation{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Len returns the number of stored entries.
func (s *Windowed) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
