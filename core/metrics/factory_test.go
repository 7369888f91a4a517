package metrics_test

import (
	"testing"

	"github.com/kilianp07/predictive-sensor/core/factory"
	metrics "github.com/kilianp07/predictive-sensor/core/metrics"
	_ "github.com/kilianp07/predictive-sensor/infra/metrics"
)

/*
TestMetricsFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop recorder
	- unknown type returns error
*/
func TestMetricsFactory_Builtins(t *testing.T) {
	r, err := metrics.NewRecorder([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if r == nil {
		t.Fatal("expected recorder instance")
	}
	if _, err := metrics.NewRecorder([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

/*
TestNewRecorder_Multi validates NewRecorder with zero and multiple configs.
Cases:
  - no config -> NopRecorder
  - two configs -> MultiRecorder with two recorders
*/
func TestNewRecorder_Multi(t *testing.T) {
	r, err := metrics.NewRecorder(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := r.(metrics.NopRecorder); !ok {
		t.Fatalf("expected NopRecorder, got %T", r)
	}
	r, err = metrics.NewRecorder([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := r.(*metrics.MultiRecorder)
	if !ok {
		t.Fatalf("expected MultiRecorder, got %T", r)
	}
	if len(m.Recorders) != 2 {
		t.Fatalf("expected 2 recorders, got %d", len(m.Recorders))
	}
}
