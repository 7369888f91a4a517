// Package sample decides which raw upstream states are usable readings.
package sample

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/predictive-sensor/core/logger"
	"github.com/kilianp07/predictive-sensor/core/model"
)

var (
	// ErrInvalidSample is the parent of every rejection reason.
	ErrInvalidSample = errors.New("invalid sample")
	// ErrSentinel marks an unavailable or unknown state.
	ErrSentinel = fmt.Errorf("%w: sentinel state", ErrInvalidSample)
	// ErrNotNumeric marks a state that is not a finite number.
	ErrNotNumeric = fmt.Errorf("%w: not a finite number", ErrInvalidSample)
)

// Parse converts a raw state into a reading.
func Parse(raw string) (float64, error) {
	if (model.State{Raw: raw}).IsSentinel() {
		return 0, fmt.Errorf("%w: %q", ErrSentinel, raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return v, nil
}

// IsValid reports whether raw can be recorded in history.
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// Reason returns a short label for a rejection error, suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrSentinel):
		return "sentinel"
	case errors.Is(err, ErrNotNumeric):
		return "not_numeric"
	case err == nil:
		return ""
	default:
		return "invalid"
	}
}

// Validator turns raw states into observations.
type Validator struct {
	log logger.Logger
}

// NewValidator returns a Validator logging rejections to log.
func NewValidator(log logger.Logger) *Validator {
	return &Validator{log: logger.OrNop(log)}
}

// Observation converts a single state.
func (v *Validator) Observation(st model.State) (model.Observation, error) {
	val, err := Parse(st.Raw)
	if err != nil {
		return model.Observation{}, err
	}
	return model.Observation{Value: val, Timestamp: st.LastChanged}, nil
}

// Observations keeps the valid states of a historical range, preserving order.
func (v *Validator) Observations(states []model.State) []model.Observation {
	out := make([]model.Observation, 0, len(states))
	for _, st := range states {
		obs, err := v.Observation(st)
		if err != nil {
			v.log.Debugw("dropping historical sample", map[string]any{
				"entity_id": st.EntityID,
				"state":     st.Raw,
				"reason":    Reason(err),
			})
			continue
		}
		out = append(out, obs)
	}
	return out
}
