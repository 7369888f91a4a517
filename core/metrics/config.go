package metrics

import "github.com/kilianp07/predictive-sensor/core/factory"

// Config defines the recorders to build and the Prometheus exporter address.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr enables the /metrics HTTP endpoint when non-empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
