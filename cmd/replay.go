package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/predictive-sensor/core/sensor"
	"github.com/kilianp07/predictive-sensor/infra/logger"
	"github.com/kilianp07/predictive-sensor/internal/memhost"
	"github.com/kilianp07/predictive-sensor/internal/replay"
	"github.com/kilianp07/predictive-sensor/pkg/export"
)

var (
	replayStrategy string
	replayMode     string
	replayFormat   string
	replayJSON     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Feed a recorded list of states through the sensor and print every prediction",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayStrategy, "strategy", "", "override the configured strategy")
	replayCmd.Flags().StringVar(&replayMode, "mode", "", "override the configured mode (incremental or windowed)")
	replayCmd.Flags().StringVar(&replayFormat, "format", "text", "output format: text, jsonl, json or csv")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "shorthand for --format jsonl")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if replayStrategy != "" {
		cfg.Sensor.Strategy = replayStrategy
	}
	if replayMode != "" {
		cfg.Sensor.Mode = sensor.Mode(replayMode)
	}
	format := replayFormat
	if replayJSON {
		format = "jsonl"
	}
	switch format {
	case "text", "jsonl", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	entries, err := replay.Load(args[0])
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	host := memhost.New()
	defer host.Close()
	host.Start()
	s, err := sensor.New(cfg.Sensor, sensor.Options{
		Feed:      host,
		History:   host,
		Runtime:   host,
		Publisher: host,
		Logger:    logger.New("sensor"),
		Clock:     host.Now,
	})
	if err != nil {
		return err
	}
	ctx := contextOrBackground(cmd)
	if err := s.OnAttach(ctx); err != nil {
		return err
	}
	defer s.OnDetach()

	out := cmd.OutOrStdout()
	var recs []export.Record
	seen := 0
	for _, st := range replay.States(entries, cfg.Sensor.SourceEntityID) {
		host.SetState(st.EntityID, st.Raw, st.LastChanged)
		if err := s.Flush(ctx); err != nil {
			return err
		}
		pubs := host.Published()
		for _, p := range pubs[seen:] {
			rec := record(p)
			recs = append(recs, rec)
			if err := printRecord(out, format, rec); err != nil {
				return err
			}
		}
		seen = len(pubs)
	}
	if seen == 0 {
		return fmt.Errorf("no prediction produced from %d recorded states", len(entries))
	}
	switch format {
	case "json":
		return export.WriteJSON(out, recs)
	case "csv":
		return export.WriteCSV(out, recs)
	}
	return nil
}

func record(p memhost.Publication) export.Record {
	return export.Record{
		Time:  p.State.LastUpdated.UTC(),
		Value: p.Info.Round(p.State.Value),
		State: p.Info.Format(p.State.Value),
		Unit:  p.Info.Unit,
	}
}

// printRecord streams r for the line oriented formats.
func printRecord(w io.Writer, format string, r export.Record) error {
	switch format {
	case "jsonl":
		return json.NewEncoder(w).Encode(r)
	case "text":
		_, err := fmt.Fprintf(w, "%s\t%s %s\n", r.Time.Format(time.RFC3339), r.State, r.Unit)
		return err
	}
	return nil
}
