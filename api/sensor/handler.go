package sensor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
	coresensor "github.com/kilianp07/predictive-sensor/core/sensor"
)

// Source is the read side of a prediction sensor.
type Source interface {
	Info() model.EntityInfo
	State() model.PredictionState
	Phase() coresensor.Phase
	History() []model.Observation
}

// Status is the body of GET /api/sensor/status.
type Status struct {
	model.EntityInfo
	Phase       string     `json:"phase"`
	State       string     `json:"state"`
	Value       float64    `json:"value"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Samples     int        `json:"samples"`
}

// HistoryResponse is the body of GET /api/sensor/history.
type HistoryResponse struct {
	SourceEntityID string              `json:"source_entity_id"`
	Observations   []model.Observation `json:"observations"`
}

// Routes maps the sensor endpoints to their handlers.
func Routes(src Source, token string) map[string]http.Handler {
	return map[string]http.Handler{
		"/api/sensor/status":  NewStatusHandler(src, token),
		"/api/sensor/history": NewHistoryHandler(src, token),
	}
}

// NewStatusHandler returns an HTTP handler exposing the current prediction
// via GET /api/sensor/status. Requests must include an Authorization header
// with "Bearer <token>" when token is non-empty.
func NewStatusHandler(src Source, token string) http.Handler {
	return guard(token, func(w http.ResponseWriter, _ *http.Request) {
		info := src.Info()
		st := src.State()
		body := Status{
			EntityInfo: info,
			Phase:      src.Phase().String(),
			State:      info.Format(st.Value),
			Value:      info.Round(st.Value),
			Samples:    len(src.History()),
		}
		if st.Updated() {
			ts := st.LastUpdated.UTC()
			body.LastUpdated = &ts
		} else {
			body.State = model.StateUnknown
		}
		writeJSON(w, body)
	})
}

// NewHistoryHandler returns an HTTP handler exposing the observations behind
// the next prediction via GET /api/sensor/history.
func NewHistoryHandler(src Source, token string) http.Handler {
	return guard(token, func(w http.ResponseWriter, _ *http.Request) {
		obs := src.History()
		if obs == nil {
			obs = []model.Observation{}
		}
		writeJSON(w, HistoryResponse{SourceEntityID: src.Info().SourceEntityID, Observations: obs})
	})
}

func guard(token string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
