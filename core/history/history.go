// Package history keeps the recent observations a prediction is computed from.
//
// Two stores are provided. Incremental appends every accepted sample and
// evicts the oldest once its capacity is reached. Windowed is replaced as a
// whole by the result of a historical range query. Neither store re-sorts its
// entries: chronological order is established by the order of insertion.
package history

import (
	"errors"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
)

const (
	// DefaultMaxEntries caps an Incremental store when no capacity is given.
	DefaultMaxEntries = 10
	// DefaultWindow is the trailing range queried by a Windowed store.
	DefaultWindow = 2 * time.Hour
)

// ErrOutOfOrder is returned when an observation is older than the latest entry.
var ErrOutOfOrder = errors.New("observation older than latest entry")

// Store exposes the current observations for a predictor.
type Store interface {
	// Snapshot returns a copy of the entries, oldest first.
	Snapshot() []model.Observation
	Len() int
}

// ordered reports whether entries are non-decreasing in timestamp.
func ordered(entries []model.Observation) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			return false
		}
	}
	return true
}
