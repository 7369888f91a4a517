package prediction

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// LinearTrend extrapolates the mean rate of change between adjacent samples.
//
//	predicted = anchor + mean((v[i+1]-v[i]) / (t[i+1]-t[i])) * horizon
//
// Pairs whose timestamps do not advance are skipped. The result is not clamped.
type LinearTrend struct{}

// TrendDetail describes one trend computation.
type TrendDetail struct {
	Samples  int
	Rates    int     // adjacent pairs used
	Excluded int     // pairs skipped for a zero or negative interval
	MeanRate float64 // units per second
	Value    float64
}

// Name implements Strategy.
func (LinearTrend) Name() string { return "linear_trend" }

// MinSamples implements the optional sample requirement.
func (LinearTrend) MinSamples() int { return 2 }

// Compute implements Strategy.
func (t LinearTrend) Compute(history []model.Observation, anchor float64, horizon time.Duration) (float64, error) {
	d, err := t.Detail(history, anchor, horizon)
	if err != nil {
		return 0, err
	}
	return d.Value, nil
}

// Detail runs the computation and reports how many pairs contributed.
func (LinearTrend) Detail(history []model.Observation, anchor float64, horizon time.Duration) (TrendDetail, error) {
	d := TrendDetail{Samples: len(history)}
	if len(history) < 2 {
		return d, fmt.Errorf("linear trend: %w: %d samples, need 2", ErrInsufficientHistory, len(history))
	}
	rates := make([]float64, 0, len(history)-1)
	for i := 0; i+1 < len(history); i++ {
		dt := history[i+1].Timestamp.Sub(history[i].Timestamp).Seconds()
		if dt <= 0 {
			d.Excluded++
			continue
		}
		rates = append(rates, (history[i+1].Value-history[i].Value)/dt)
	}
	d.Rates = len(rates)
	if len(rates) == 0 {
		return d, fmt.Errorf("linear trend: %w: no pair with a positive interval", ErrInsufficientHistory)
	}
	d.MeanRate = stat.Mean(rates, nil)
	d.Value = anchor + d.MeanRate*horizon.Seconds()
	return d, nil
}
