package model

import (
	"math"
	"strconv"
)

// EntityInfo is the static description a host needs to expose a sensor.
type EntityInfo struct {
	Name           string `json:"name"`
	UniqueID       string `json:"unique_id,omitempty"`
	SourceEntityID string `json:"source_entity_id"`
	Unit           string `json:"unit_of_measurement,omitempty"`
	// Precision is the number of decimals used when displaying the value.
	Precision int `json:"suggested_display_precision"`
}

// Round rounds v to the display precision.
func (e EntityInfo) Round(v float64) float64 {
	p := math.Pow(10, float64(e.Precision))
	return math.Round(v*p) / p
}

// Format renders v with the display precision.
func (e EntityInfo) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', e.Precision, 64)
}
