package config

import (
	"fmt"
	"slices"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error", "disabled"}

// LoggingConfig defines the minimum level of emitted logs.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	return nil
}
