package prediction

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// Average predicts the arithmetic mean of the history.
type Average struct{}

// Name implements Strategy.
func (Average) Name() string { return "average" }

// MinSamples implements the optional sample requirement.
func (Average) MinSamples() int { return 1 }

// Compute returns the mean of every value in history. Timestamps, anchor and
// horizon are not used.
func (Average) Compute(history []model.Observation, _ float64, _ time.Duration) (float64, error) {
	if len(history) == 0 {
		return 0, fmt.Errorf("average: %w: no samples", ErrInsufficientHistory)
	}
	return stat.Mean(valuesOf(history), nil), nil
}
