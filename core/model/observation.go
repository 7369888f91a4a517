package model

import "time"

// Observation is a single accepted sample of the upstream sensor.
type Observation struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// PredictionState is the value published by a prediction sensor.
type PredictionState struct {
	Value       float64   `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

// Updated reports whether at least one prediction was computed.
func (p PredictionState) Updated() bool { return !p.LastUpdated.IsZero() }
