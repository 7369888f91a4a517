// Package replay loads recorded upstream states from JSON or YAML files.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// Raw is a recorded state. JSON numbers and null are accepted besides strings.
type Raw string

func (r *Raw) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*r = model.StateUnknown
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*r = Raw(v)
	default:
		*r = Raw(s)
	}
	return nil
}

// Entry is one recorded state. EntityID may be omitted for single entity
// recordings.
type Entry struct {
	EntityID    string    `json:"entity_id" yaml:"entity_id"`
	State       Raw       `json:"state" yaml:"state"`
	LastChanged time.Time `json:"last_changed" yaml:"last_changed"`
}

// Load reads a recording; the format follows the file extension.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Decode reads a list of entries from r in the given format.
func Decode(r io.Reader, format string) ([]Entry, error) {
	var entries []Entry
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&entries); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported recording format: %s", format)
	}
	for i, e := range entries {
		if e.LastChanged.IsZero() {
			return nil, fmt.Errorf("entry %d: last_changed is required", i)
		}
		if i > 0 && e.LastChanged.Before(entries[i-1].LastChanged) {
			return nil, fmt.Errorf("entry %d: recording is not in chronological order", i)
		}
	}
	return entries, nil
}

// States converts entries to upstream states, filling in entityID where the
// entry has none.
func States(entries []Entry, entityID string) []model.State {
	out := make([]model.State, len(entries))
	for i, e := range entries {
		id := e.EntityID
		if id == "" {
			id = entityID
		}
		out[i] = model.State{EntityID: id, Raw: string(e.State), LastChanged: e.LastChanged}
	}
	return out
}
