package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/predictive-sensor/core/sensor"
	"github.com/kilianp07/predictive-sensor/infra/influx"
	"github.com/kilianp07/predictive-sensor/infra/logger"
	"github.com/kilianp07/predictive-sensor/internal/memhost"
)

var predictTimeout time.Duration

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Query the trailing window from InfluxDB and print one prediction",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().DurationVar(&predictTimeout, "timeout", 30*time.Second, "query timeout")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Sensor.Mode = sensor.ModeWindowed
	cfg.Influx.SetDefaults()
	if err := cfg.Influx.Validate(); err != nil {
		return err
	}
	q, err := influx.NewQuerier(cfg.Influx, logger.New("influx"))
	if err != nil {
		return err
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(contextOrBackground(cmd), predictTimeout)
	defer cancel()
	end := time.Now()
	states, err := q.QueryHistory(ctx, cfg.Sensor.SourceEntityID, end.Add(-cfg.Sensor.Window), end)
	if err != nil {
		return err
	}

	host := memhost.New()
	defer host.Close()
	host.Seed(states)
	host.Start()
	s, err := sensor.New(cfg.Sensor, sensor.Options{
		Feed:      host,
		History:   host,
		Runtime:   host,
		Publisher: host,
		Logger:    logger.New("sensor"),
		Clock:     func() time.Time { return end },
	})
	if err != nil {
		return err
	}
	st, err := s.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("no prediction from %d recorded states: %w", len(states), err)
	}
	info := s.Info()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s (%s, %d samples, horizon %s)\n",
		info.Name, info.Format(st.Value), info.Unit, s.Strategy().Name(), len(s.History()), cfg.Sensor.Horizon)
	return err
}
