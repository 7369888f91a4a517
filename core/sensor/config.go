package sensor

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kilianp07/predictive-sensor/core/history"
	"github.com/kilianp07/predictive-sensor/core/prediction"
)

// Mode selects how history is populated.
type Mode string

const (
	// ModeIncremental appends every accepted sample to a capped buffer.
	ModeIncremental Mode = "incremental"
	// ModeWindowed re-queries a trailing window on every accepted sample.
	ModeWindowed Mode = "windowed"
)

const (
	DefaultName      = "Predictive Sensor"
	DefaultUnit      = "°C"
	DefaultPrecision = 1
	DefaultStrategy  = "average"

	// MaxPrecision is the most decimals a float64 value carries.
	MaxPrecision = 15
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]+`)

// Config describes one prediction sensor.
type Config struct {
	Name           string         `json:"name"`
	SourceEntityID string         `json:"source_entity_id"`
	UniqueID       string         `json:"unique_id"`
	Unit           string         `json:"unit"`
	Precision      *int           `json:"precision"`
	Strategy       string         `json:"strategy"`
	StrategyConf   map[string]any `json:"strategy_conf"`
	Mode           Mode           `json:"mode"`
	// MaxEntries caps the incremental history.
	MaxEntries int `json:"max_entries"`
	// Window is the trailing range re-queried in windowed mode.
	Window time.Duration `json:"window"`
	// Horizon is how far ahead the trend strategy extrapolates.
	Horizon time.Duration `json:"horizon"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.UniqueID == "" {
		c.UniqueID = ObjectID(c.Name)
	}
	if c.Unit == "" {
		c.Unit = DefaultUnit
	}
	if c.Precision == nil {
		p := DefaultPrecision
		c.Precision = &p
	}
	if c.Strategy == "" {
		c.Strategy = DefaultStrategy
	}
	if c.Mode == "" {
		c.Mode = ModeWindowed
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = history.DefaultMaxEntries
	}
	if c.Window == 0 {
		c.Window = history.DefaultWindow
	}
	if c.Horizon == 0 {
		c.Horizon = prediction.DefaultHorizon
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SourceEntityID) == "" {
		errs = append(errs, errors.New("source_entity_id is required"))
	}
	if c.Mode != ModeIncremental && c.Mode != ModeWindowed {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Precision != nil && (*c.Precision < 0 || *c.Precision > MaxPrecision) {
		errs = append(errs, fmt.Errorf("precision must be between 0 and %d", MaxPrecision))
	}
	if c.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("max_entries must be positive"))
	}
	if c.Window < 0 || c.Horizon < 0 {
		errs = append(errs, fmt.Errorf("window and horizon must be positive"))
	}
	if c.Strategy != "" && !slices.Contains(prediction.Names(), c.Strategy) {
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	return errors.Join(errs...)
}

// ObjectID turns a display name into a lowercase identifier.
func ObjectID(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "predictive_sensor"
	}
	return s
}
