// Package infra contains technical adapters such as the MQTT host, the
// InfluxDB history querier and metrics exporters. These packages should
// depend only on the interfaces defined in the core packages.
package infra
