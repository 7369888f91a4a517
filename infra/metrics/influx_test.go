package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/predictive-sensor/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(b)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// lines returns every line protocol record received so far.
func (l *lineRecorder) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, b := range l.bodies {
		out = append(out, strings.Split(b, "\n")...)
	}
	return out
}

func TestInfluxRecorder_RecordPrediction(t *testing.T) {
	lr := &lineRecorder{}
	srv := lr.server(t)
	rec := NewInfluxRecorder(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer rec.Close()

	now := time.Now()
	ev := coremetrics.PredictionEvent{SensorID: "forecast", EntityID: "sensor.outdoor", Strategy: "linear_trend", Value: 26.00004, Samples: 2, Time: now}
	if err := rec.RecordPrediction(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("prediction").
		AddTag("sensor_id", "forecast").
		AddTag("entity_id", "sensor.outdoor").
		AddTag("strategy", "linear_trend").
		AddField("value", 26.0).
		AddField("samples", 2).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	rec.writeAPI.Flush()
	if got := lr.lines(); len(got) != 1 || got[0] != exp {
		t.Errorf("lines: %#v", got)
	}
}

func TestInfluxRecorder_RejectedAndSkipped(t *testing.T) {
	lr := &lineRecorder{}
	srv := lr.server(t)
	rec := NewInfluxRecorder(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer rec.Close()

	now := time.Now()
	if err := rec.RecordRejected(coremetrics.RejectedEvent{SensorID: "forecast", EntityID: "sensor.outdoor", Raw: "unknown", Reason: "sentinel", Time: now}); err != nil {
		t.Fatalf("rejected: %v", err)
	}
	if err := rec.RecordSkipped(coremetrics.SkippedEvent{SensorID: "forecast", EntityID: "sensor.outdoor", Strategy: "average", Reason: coremetrics.SkipEmptyWindow, Time: now}); err != nil {
		t.Fatalf("skipped: %v", err)
	}
	p1 := write.NewPointWithMeasurement("rejected_sample").
		AddTag("sensor_id", "forecast").
		AddTag("entity_id", "sensor.outdoor").
		AddTag("reason", "sentinel").
		AddField("raw", "unknown").
		SetTime(now)
	p2 := write.NewPointWithMeasurement("skipped_cycle").
		AddTag("sensor_id", "forecast").
		AddTag("entity_id", "sensor.outdoor").
		AddTag("strategy", "average").
		AddTag("reason", coremetrics.SkipEmptyWindow).
		AddField("samples", 0).
		SetTime(now)
	exp1 := strings.TrimSpace(write.PointToLineProtocol(p1, time.Nanosecond))
	exp2 := strings.TrimSpace(write.PointToLineProtocol(p2, time.Nanosecond))
	rec.writeAPI.Flush()
	if got := lr.lines(); len(got) != 2 || got[0] != exp1 || got[1] != exp2 {
		t.Errorf("lines: %#v", got)
	}
}

func TestInfluxRecorder_DoesNotWaitForServer(t *testing.T) {
	lr := &lineRecorder{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		b, _ := io.ReadAll(r.Body)
		lr.mu.Lock()
		lr.bodies = append(lr.bodies, strings.TrimSpace(string(b)))
		lr.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	rec := NewInfluxRecorder(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	t.Cleanup(func() { _ = rec.Close() })
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			_ = rec.RecordPrediction(coremetrics.PredictionEvent{SensorID: "forecast", Value: float64(i), Time: time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recording waited on a stalled server")
	}

	unblock()
	rec.writeAPI.Flush()
	if got := lr.lines(); len(got) != 3 {
		t.Errorf("lines: %#v", got)
	}
}

func TestNewInfluxRecorderWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	rec := NewInfluxRecorderWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := rec.(*InfluxRecorder); ok {
		t.Fatalf("expected NopRecorder on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
