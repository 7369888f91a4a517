package metrics

import (
	"errors"
	"testing"
)

type countRecorder struct {
	count  int
	err    error
	closed bool
}

func (r *countRecorder) RecordPrediction(PredictionEvent) error { r.count++; return r.err }
func (r *countRecorder) RecordRejected(RejectedEvent) error     { r.count++; return r.err }
func (r *countRecorder) RecordSkipped(SkippedEvent) error       { r.count++; return r.err }
func (r *countRecorder) Close() error                           { r.closed = true; return nil }

// TestMultiRecorder ensures events are forwarded to all recorders.
func TestMultiRecorder(t *testing.T) {
	r1 := &countRecorder{}
	r2 := &countRecorder{}
	m := NewMultiRecorder(r1, r2)
	if err := m.RecordPrediction(PredictionEvent{}); err != nil {
		t.Fatalf("record prediction: %v", err)
	}
	if err := m.RecordRejected(RejectedEvent{}); err != nil {
		t.Fatalf("record rejected: %v", err)
	}
	if err := m.RecordSkipped(SkippedEvent{}); err != nil {
		t.Fatalf("record skipped: %v", err)
	}
	if r1.count != 3 || r2.count != 3 {
		t.Fatalf("events not forwarded: %d %d", r1.count, r2.count)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !r1.closed || !r2.closed {
		t.Fatalf("recorders not closed")
	}
}

func TestMultiRecorderFirstError(t *testing.T) {
	boom := errors.New("boom")
	r1 := &countRecorder{err: boom}
	r2 := &countRecorder{}
	m := NewMultiRecorder(r1, r2)
	if err := m.RecordPrediction(PredictionEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if r2.count != 0 {
		t.Fatalf("second recorder should not be reached")
	}
}
