package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/predictive-sensor/core/metrics"
	"github.com/kilianp07/predictive-sensor/core/sensor"
	"github.com/kilianp07/predictive-sensor/infra/influx"
	"github.com/kilianp07/predictive-sensor/infra/mqtt"
)

// EnvPrefix marks environment overrides: PS_SENSOR__SOURCE_ENTITY_ID sets
// sensor.source_entity_id.
const EnvPrefix = "PS_"

type Config struct {
	Sensor  sensor.Config  `json:"sensor"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Influx  influx.Config  `json:"influx"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
	API     APIConfig      `json:"api"`
}

// Load reads path, when not empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	prefix := strings.ToLower(EnvPrefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), prefix)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Sensor.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Sensor.Validate(); err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return &cfg, nil
}

// ValidateHost checks the sections needed to run against the broker: MQTT
// always, InfluxDB when history is re-queried.
func (c *Config) ValidateHost() error {
	c.MQTT.SetDefaults()
	c.Influx.SetDefaults()
	var errs []error
	if err := c.MQTT.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sensor.Mode == sensor.ModeWindowed {
		if err := c.Influx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("windowed mode: %w", err))
		}
	}
	return errors.Join(errs...)
}
