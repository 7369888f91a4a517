package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/predictive-sensor/core/metrics"
	"github.com/kilianp07/predictive-sensor/infra/logger"
)

// InfluxConfig locates the bucket receiving prediction events.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxRecorder writes prediction events to an InfluxDB instance using the
// official client. Points are batched in the background so recording never
// waits on the network; write failures are logged.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      logger.Logger
}

// NewInfluxRecorder creates a recorder for the given InfluxDB endpoint.
func NewInfluxRecorder(cfg InfluxConfig) *InfluxRecorder {
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.URL, "/"), "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	r := &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-recorder"),
	}
	go r.logErrors(r.writeAPI.Errors())
	return r
}

// logErrors drains the asynchronous write errors until the client closes.
func (r *InfluxRecorder) logErrors(errs <-chan error) {
	for err := range errs {
		r.log.Errorf("influx write: %v", err)
	}
}

// NewInfluxRecorderWithFallback pings the InfluxDB instance and returns a
// NopRecorder if the health check fails.
func NewInfluxRecorderWithFallback(cfg InfluxConfig) coremetrics.Recorder {
	rec := NewInfluxRecorder(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := rec.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			rec.log.Errorf("influx health check error: %v", err)
		} else {
			rec.log.Errorf("influx health status: %s", health.Status)
		}
		rec.client.Close()
		return coremetrics.NopRecorder{}
	}
	return rec
}

// RecordPrediction writes a "prediction" point.
func (r *InfluxRecorder) RecordPrediction(ev coremetrics.PredictionEvent) error {
	p := write.NewPointWithMeasurement("prediction").
		AddTag("sensor_id", ev.SensorID).
		AddTag("entity_id", ev.EntityID).
		AddTag("strategy", ev.Strategy).
		AddField("value", round3(ev.Value)).
		AddField("samples", ev.Samples).
		SetTime(ev.Time)
	r.writeAPI.WritePoint(p)
	return nil
}

// RecordRejected writes a "rejected_sample" point.
func (r *InfluxRecorder) RecordRejected(ev coremetrics.RejectedEvent) error {
	p := write.NewPointWithMeasurement("rejected_sample").
		AddTag("sensor_id", ev.SensorID).
		AddTag("entity_id", ev.EntityID).
		AddTag("reason", ev.Reason).
		AddField("raw", ev.Raw).
		SetTime(ev.Time)
	r.writeAPI.WritePoint(p)
	return nil
}

// RecordSkipped writes a "skipped_cycle" point.
func (r *InfluxRecorder) RecordSkipped(ev coremetrics.SkippedEvent) error {
	p := write.NewPointWithMeasurement("skipped_cycle").
		AddTag("sensor_id", ev.SensorID).
		AddTag("entity_id", ev.EntityID).
		AddTag("strategy", ev.Strategy).
		AddTag("reason", ev.Reason).
		AddField("samples", ev.Samples).
		SetTime(ev.Time)
	r.writeAPI.WritePoint(p)
	return nil
}

// Close flushes pending points and releases the client.
func (r *InfluxRecorder) Close() error {
	r.writeAPI.Flush()
	r.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
