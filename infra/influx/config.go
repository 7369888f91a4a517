package influx

import (
	"errors"
	"strings"
	"time"
)

const (
	DefaultField   = "value"
	DefaultTimeout = 10 * time.Second
)

// Config locates the bucket written by the home automation InfluxDB export.
type Config struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Measurement restricts queries to one measurement. The export names
	// measurements after the unit, so it is usually left empty.
	Measurement string        `json:"measurement"`
	Field       string        `json:"field"`
	Timeout     time.Duration `json:"timeout"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Field == "" {
		c.Field = DefaultField
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Enabled reports whether a server is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// Validate checks mandatory fields.
func (c Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("influx.url is required"))
	}
	if c.Org == "" {
		errs = append(errs, errors.New("influx.org is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("influx.bucket is required"))
	}
	return errors.Join(errs...)
}
