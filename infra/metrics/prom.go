package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/predictive-sensor/core/metrics"
)

// PromRecorder exposes prediction cycles as Prometheus metrics.
type PromRecorder struct {
	value       *prometheus.GaugeVec
	lastUpdate  *prometheus.GaugeVec
	predictions *prometheus.CounterVec
	samples     *prometheus.HistogramVec
	rejected    *prometheus.CounterVec
	skipped     *prometheus.CounterVec
}

// NewPromRecorder registers metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predictive_sensor_value",
			Help: "Last published prediction",
		}, []string{"sensor_id", "entity_id", "strategy"}),
		lastUpdate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predictive_sensor_last_update_timestamp_seconds",
			Help: "Unix time of the last published prediction",
		}, []string{"sensor_id"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictive_sensor_predictions_total",
			Help: "Total number of published predictions",
		}, []string{"sensor_id", "strategy"}),
		samples: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictive_sensor_history_samples",
			Help:    "Number of history samples behind each prediction",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}, []string{"sensor_id"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictive_sensor_rejected_samples_total",
			Help: "Total number of upstream samples failing validation",
		}, []string{"sensor_id", "reason"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictive_sensor_skipped_cycles_total",
			Help: "Total number of cycles keeping the previous prediction",
		}, []string{"sensor_id", "reason"}),
	}
	var err error
	if r.value, err = register(reg, r.value); err != nil {
		return nil, err
	}
	if r.lastUpdate, err = register(reg, r.lastUpdate); err != nil {
		return nil, err
	}
	if r.predictions, err = register(reg, r.predictions); err != nil {
		return nil, err
	}
	if r.samples, err = register(reg, r.samples); err != nil {
		return nil, err
	}
	if r.rejected, err = register(reg, r.rejected); err != nil {
		return nil, err
	}
	if r.skipped, err = register(reg, r.skipped); err != nil {
		return nil, err
	}
	return r, nil
}

// register reuses an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPrediction updates the value gauge and counters.
func (r *PromRecorder) RecordPrediction(ev coremetrics.PredictionEvent) error {
	r.value.WithLabelValues(ev.SensorID, ev.EntityID, ev.Strategy).Set(ev.Value)
	r.lastUpdate.WithLabelValues(ev.SensorID).Set(float64(ev.Time.UnixMilli()) / 1000)
	r.predictions.WithLabelValues(ev.SensorID, ev.Strategy).Inc()
	r.samples.WithLabelValues(ev.SensorID).Observe(float64(ev.Samples))
	return nil
}

// RecordRejected counts invalid samples by reason.
func (r *PromRecorder) RecordRejected(ev coremetrics.RejectedEvent) error {
	r.rejected.WithLabelValues(ev.SensorID, ev.Reason).Inc()
	return nil
}

// RecordSkipped counts cycles that kept the previous value.
func (r *PromRecorder) RecordSkipped(ev coremetrics.SkippedEvent) error {
	r.skipped.WithLabelValues(ev.SensorID, ev.Reason).Inc()
	return nil
}
