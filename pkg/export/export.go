package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"
)

// Record is one published prediction.
type Record struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	State string    `json:"state"`
	Unit  string    `json:"unit,omitempty"`
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes the records to w in CSV format with a header line.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "value", "state", "unit"}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.State,
			r.Unit,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
