package app

import (
	"context"
	"errors"
	"fmt"

	apisensor "github.com/kilianp07/predictive-sensor/api/sensor"
	"github.com/kilianp07/predictive-sensor/config"
	coremetrics "github.com/kilianp07/predictive-sensor/core/metrics"
	"github.com/kilianp07/predictive-sensor/core/sensor"
	"github.com/kilianp07/predictive-sensor/infra/influx"
	"github.com/kilianp07/predictive-sensor/infra/logger"
	"github.com/kilianp07/predictive-sensor/infra/metrics"
	"github.com/kilianp07/predictive-sensor/infra/mqtt"
)

// Service runs one prediction sensor against the broker and InfluxDB.
type Service struct {
	Sensor   *sensor.PredictionSensor
	host     *mqtt.Host
	querier  *influx.Querier
	recorder coremetrics.Recorder
	log      logger.Logger
	promAddr string
	apiToken string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.ValidateHost(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logg := logger.New("service")
	recorder, err := coremetrics.NewRecorder(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics recorder: %w", err)
	}
	svc := &Service{recorder: recorder, log: logg, promAddr: cfg.Metrics.PrometheusAddr, apiToken: cfg.API.Token}

	var history sensor.HistoryQuerier
	if cfg.Sensor.Mode == sensor.ModeWindowed {
		q, err := influx.NewQuerier(cfg.Influx, logger.New("influx"))
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("influx querier: %w", err)
		}
		svc.querier = q
		history = q
	}

	host, err := mqtt.NewHost(cfg.MQTT, logger.New("mqtt"))
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("mqtt host: %w", err)
	}
	svc.host = host

	s, err := sensor.New(cfg.Sensor, sensor.Options{
		Feed:      host,
		History:   history,
		Runtime:   host,
		Publisher: host,
		Recorder:  recorder,
		Logger:    logger.New("sensor"),
	})
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.Sensor = s
	return svc, nil
}

// Run attaches the sensor and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.querier != nil {
		if err := s.querier.Ping(ctx); err != nil {
			s.log.Warnf("influx not reachable yet: %v", err)
		}
	}
	if s.promAddr != "" {
		go func() {
			routes := apisensor.Routes(s.Sensor, s.apiToken)
			if err := metrics.StartPromServer(ctx, s.promAddr, logger.New("prometheus"), routes); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if err := s.Sensor.OnAttach(ctx); err != nil {
		return fmt.Errorf("attach sensor: %w", err)
	}
	<-ctx.Done()
	return s.Sensor.OnDetach()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Sensor != nil {
		errs = append(errs, s.Sensor.OnDetach())
	}
	if s.host != nil {
		errs = append(errs, s.host.Close())
	}
	if s.querier != nil {
		s.querier.Close()
	}
	if c, ok := s.recorder.(coremetrics.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
