package history

import (
	"fmt"
	"sync"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// Incremental is a fixed-capacity FIFO of observations.
type Incremental struct {
	mu       sync.RWMutex
	buf      []model.Observation
	capacity int
	head     int // next write position
	count    int
}

// NewIncremental returns a store holding at most capacity entries.
// A non-positive capacity selects DefaultMaxEntries.
func NewIncremental(capacity int) *Incremental {
	if capacity <= 0 {
		capacity = DefaultMaxEntries
	}
	return &Incremental{buf: make([]model.Observation, capacity), capacity: capacity}
}

// Append pushes obs, overwriting the oldest entry when full.
func (s *Incremental) Append(obs model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if latest, ok := s.latest(); ok && obs.Timestamp.Before(latest.Timestamp) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, obs.Timestamp, latest.Timestamp)
	}
	s.buf[s.head] = obs
	s.head = (s.head + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	}
	return nil
}

// Snapshot returns the entries in chronological order (oldest first).
func (s *Incremental) Snapshot() []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Observation, s.count)
	start := (s.head - s.count + s.capacity) % s.capacity
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(start+i)%s.capacity]
	}
	return out
}

// Latest returns the most recently appended observation.
func (s *Incremental) Latest() (model.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest()
}

func (s *Incremental) latest() (model.Observation, bool) {
	if s.count == 0 {
		return model.Observation{}, false
	}
	return s.buf[(s.head-1+s.capacity)%s.capacity], true
}

// Len returns the number of stored entries.
func (s *Incremental) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Cap returns the maximum number of entries.
func (s *Incremental) Cap() int { return s.capacity }
