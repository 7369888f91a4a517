package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/predictive-sensor/core/model"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func series(pairs ...float64) []model.Observation {
	out := make([]model.Observation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Observation{Value: pairs[i], Timestamp: t0.Add(time.Duration(pairs[i+1] * float64(time.Second)))})
	}
	return out
}

func TestAverageMean(t *testing.T) {
	got, err := Average{}.Compute(series(18, 0, 19, 60, 20, 120), 0, DefaultHorizon)
	require.NoError(t, err)
	assert.Equal(t, 19.0, got)
}

func TestAverageIgnoresOrderAnchorAndHorizon(t *testing.T) {
	a, err := Average{}.Compute(series(1.5, 0, 7.25, 10, -3, 20, 4, 30), 100, time.Hour)
	require.NoError(t, err)
	b, err := Average{}.Compute(series(4, 0, -3, 10, 1.5, 20, 7.25, 30), -5, time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 2.4375, a, 1e-12)
	assert.InDelta(t, a, b, 1e-12)
}

func TestAverageSingleSample(t *testing.T) {
	got, err := Average{}.Compute(series(21.3, 0), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 21.3, got)
}

func TestAverageEmpty(t *testing.T) {
	_, err := Average{}.Compute(nil, 0, DefaultHorizon)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestMinSamples(t *testing.T) {
	assert.Equal(t, 1, MinSamples(Average{}))
	assert.Equal(t, 2, MinSamples(LinearTrend{}))
}
