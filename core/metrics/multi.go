package metrics

import "errors"

// MultiRecorder fans events out to several recorders.
type MultiRecorder struct {
	Recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder with the provided recorders.
func NewMultiRecorder(recs ...Recorder) *MultiRecorder {
	return &MultiRecorder{Recorders: recs}
}

// RecordPrediction forwards the event to all recorders, returning the first error encountered.
func (m *MultiRecorder) RecordPrediction(ev PredictionEvent) error {
	for _, r := range m.Recorders {
		if err := r.RecordPrediction(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRejected forwards rejected samples.
func (m *MultiRecorder) RecordRejected(ev RejectedEvent) error {
	for _, r := range m.Recorders {
		if err := r.RecordRejected(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSkipped forwards skipped cycles.
func (m *MultiRecorder) RecordSkipped(ev SkippedEvent) error {
	for _, r := range m.Recorders {
		if err := r.RecordSkipped(ev); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every recorder implementing Closer.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.Recorders {
		if c, ok := r.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
