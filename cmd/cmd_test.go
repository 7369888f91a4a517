package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		replayStrategy, replayMode, replayFormat, replayJSON = "", "", "text", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReplayAverage(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", `sensor:
  source_entity_id: sensor.outdoor
  strategy: average
  mode: incremental
  max_entries: 3
logging:
  level: disabled
`)
	rec := writeFile(t, dir, "outdoor.yaml", `
- state: 18.0
  last_changed: 2024-03-01T10:00:00Z
- state: unknown
  last_changed: 2024-03-01T10:05:00Z
- state: 19.0
  last_changed: 2024-03-01T10:10:00Z
- state: 20.0
  last_changed: 2024-03-01T10:20:00Z
`)
	out, err := execute(t, "replay", "-c", cfg, rec)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2024-03-01T10:00:00Z\t18.0 °C", lines[0])
	assert.Equal(t, "2024-03-01T10:20:00Z\t19.0 °C", lines[2])
}

func TestReplayTrendJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "sensor:\n  source_entity_id: sensor.outdoor\nlogging:\n  level: disabled\n")
	rec := writeFile(t, dir, "outdoor.json", `[
  {"state": 20.0, "last_changed": "2024-03-01T10:00:00Z"},
  {"state": 22.0, "last_changed": "2024-03-01T10:30:00Z"}
]`)
	out, err := execute(t, "replay", "-c", cfg, "--strategy", "linear_trend", "--mode", "windowed", "--json", rec)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"state":"26.0"`)
}

func TestReplayWithoutPrediction(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "sensor:\n  source_entity_id: sensor.outdoor\nlogging:\n  level: disabled\n")
	rec := writeFile(t, dir, "outdoor.yaml", "- state: unavailable\n  last_changed: 2024-03-01T10:00:00Z\n")
	_, err := execute(t, "replay", "-c", cfg, rec)
	assert.ErrorContains(t, err, "no prediction")
}

func TestPredict(t *testing.T) {
	now := time.Now().UTC()
	csv := fmt.Sprintf(`#datatype,string,long,dateTime:RFC3339,double
#group,false,false,false,false
#default,_result,,,
,result,table,_time,_value
,,0,%s,20
,,0,%s,22

`, now.Add(-60*time.Minute).Format(time.RFC3339), now.Add(-30*time.Minute).Format(time.RFC3339))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/query" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, csv)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", fmt.Sprintf(`sensor:
  name: Outdoor forecast
  source_entity_id: sensor.outdoor
  strategy: linear_trend
influx:
  url: %s
  org: home
  bucket: homeassistant
logging:
  level: disabled
`, srv.URL))
	out, err := execute(t, "predict", "-c", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Outdoor forecast: 26.0 °C (linear_trend, 2 samples, horizon 1h0m0s)\n", out)
}

func TestReplayCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "sensor:\n  source_entity_id: sensor.outdoor\n  mode: incremental\nlogging:\n  level: disabled\n")
	rec := writeFile(t, dir, "outdoor.yaml", `
- state: 18.04
  last_changed: 2024-03-01T10:00:00Z
- state: 20.0
  last_changed: 2024-03-01T10:10:00Z
`)
	out, err := execute(t, "replay", "-c", cfg, "--format", "csv", rec)
	require.NoError(t, err)
	assert.Equal(t, "time,value,state,unit\n"+
		"2024-03-01T10:00:00Z,18,18.0,°C\n"+
		"2024-03-01T10:10:00Z,19,19.0,°C\n", out)
}

func TestReplayUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "sensor:\n  source_entity_id: sensor.outdoor\nlogging:\n  level: disabled\n")
	rec := writeFile(t, dir, "outdoor.yaml", "- state: 20\n  last_changed: 2024-03-01T10:00:00Z\n")
	_, err := execute(t, "replay", "-c", cfg, "--format", "xml", rec)
	assert.ErrorContains(t, err, "unknown format")
}
