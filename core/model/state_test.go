package model

import "testing"

func TestStateIsSentinel(t *testing.T) {
	cases := map[string]bool{
		"unavailable":  true,
		"unknown":      true,
		" Unknown ":    true,
		"UNAVAILABLE":  true,
		"21.5":         false,
		"":             false,
		"unavailable1": false,
	}
	for raw, want := range cases {
		if got := (State{Raw: raw}).IsSentinel(); got != want {
			t.Errorf("IsSentinel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestPredictionStateUpdated(t *testing.T) {
	var p PredictionState
	if p.Updated() {
		t.Fatalf("zero state must not be updated")
	}
	if p.Value != 0 {
		t.Fatalf("initial value must be 0, got %v", p.Value)
	}
}

func TestEntityInfoFormat(t *testing.T) {
	e := EntityInfo{Precision: 1}
	if got := e.Format(25.96); got != "26.0" {
		t.Fatalf("format: got %s", got)
	}
	if got := e.Round(19.04); got != 19.0 {
		t.Fatalf("round: got %v", got)
	}
	e.Precision = 0
	if got := e.Format(19.6); got != "20" {
		t.Fatalf("format p0: got %s", got)
	}
	e.Precision = 3
	if got := e.Format(1.0 / 3); got != "0.333" {
		t.Fatalf("format p3: got %s", got)
	}
}
