package prediction

import (
	"errors"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// DefaultHorizon is how far ahead a prediction looks when not configured.
const DefaultHorizon = time.Hour

// ErrInsufficientHistory is returned when a strategy lacks the samples it needs.
var ErrInsufficientHistory = errors.New("insufficient history")

// Strategy computes a predicted value from a chronological history.
// anchor is the most recent accepted reading and horizon the forward offset;
// strategies that do not extrapolate ignore both.
type Strategy interface {
	Name() string
	Compute(history []model.Observation, anchor float64, horizon time.Duration) (float64, error)
}

// MinSamples returns the number of samples s needs to produce a value.
func MinSamples(s Strategy) int {
	if m, ok := s.(interface{ MinSamples() int }); ok {
		return m.MinSamples()
	}
	return 1
}

func valuesOf(history []model.Observation) []float64 {
	out := make([]float64, len(history))
	for i, o := range history {
		out[i] = o.Value
	}
	return out
}
