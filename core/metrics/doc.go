// Package metrics defines recorders observing the prediction loop. Recorders
// such as the Prometheus and InfluxDB implementations in infra/metrics receive
// one event per published prediction, rejected sample or skipped cycle, and
// can be combined with NewMultiRecorder. NewRecorder builds the configured set
// from {type, conf} entries.
package metrics
