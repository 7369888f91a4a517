package metrics

import "time"

// PredictionEvent is emitted each time a new value is published.
type PredictionEvent struct {
	SensorID string
	EntityID string
	Strategy string
	Value    float64
	Samples  int
	Time     time.Time
}

// RejectedEvent is emitted when an incoming sample fails validation.
type RejectedEvent struct {
	SensorID string
	EntityID string
	Raw      string
	Reason   string
	Time     time.Time
}

// Skip reasons reported in SkippedEvent.
const (
	SkipInsufficientHistory = "insufficient_history"
	SkipEmptyWindow         = "empty_window"
	SkipQueryFailed         = "query_failed"
)

// SkippedEvent is emitted when a cycle keeps the previous prediction.
type SkippedEvent struct {
	SensorID string
	EntityID string
	Strategy string
	Reason   string
	Samples  int
	Time     time.Time
}

// Recorder records prediction cycle outcomes for observability purposes.
type Recorder interface {
	RecordPrediction(ev PredictionEvent) error
	RecordRejected(ev RejectedEvent) error
	RecordSkipped(ev SkippedEvent) error
}

// Closer is implemented by recorders holding connections.
type Closer interface {
	Close() error
}

// NopRecorder implements Recorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordPrediction(PredictionEvent) error { return nil }
func (NopRecorder) RecordRejected(RejectedEvent) error     { return nil }
func (NopRecorder) RecordSkipped(SkippedEvent) error       { return nil }
