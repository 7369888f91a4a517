// Package influx reads upstream history from the bucket filled by the home
// automation InfluxDB export: one point per state change, tagged with domain
// and entity_id (the object id), the numeric state in field "value".
package influx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kilianp07/predictive-sensor/core/model"
	"github.com/kilianp07/predictive-sensor/infra/logger"
)

// Querier implements sensor.HistoryQuerier with Flux range queries.
type Querier struct {
	cfg    Config
	client influxdb2.Client
	query  api.QueryAPI
	log    logger.Logger
}

// NewQuerier creates a querier for cfg. It does not contact the server.
func NewQuerier(cfg Config, log logger.Logger) (*Querier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("influx_querier")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &Querier{
		cfg:    cfg,
		client: client,
		query:  client.QueryAPI(cfg.Org),
		log:    log,
	}, nil
}

// Ping checks the server health.
func (q *Querier) Ping(ctx context.Context) error {
	health, err := q.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influx health status: %s", health.Status)
	}
	return nil
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func fluxString(s string) string { return `"` + fluxEscaper.Replace(s) + `"` }

// Flux builds the query returning the points of entityID within [start, end]
// in one table sorted by time.
func (q *Querier) Flux(entityID string, start, end time.Time) (string, error) {
	domain, object, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" || object == "" {
		return "", fmt.Errorf("invalid entity id %q", entityID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", fluxString(q.cfg.Bucket))
	// stop is exclusive
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n",
		start.UTC().Format(time.RFC3339Nano), end.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r.domain == %s and r.entity_id == %s and r._field == %s)\n",
		fluxString(domain), fluxString(object), fluxString(q.cfg.Field))
	if q.cfg.Measurement != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s)\n", fluxString(q.cfg.Measurement))
	}
	b.WriteString("  |> keep(columns: [\"_time\", \"_value\"])\n")
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"])")
	return b.String(), nil
}

// QueryHistory implements sensor.HistoryQuerier.
func (q *Querier) QueryHistory(ctx context.Context, entityID string, start, end time.Time) ([]model.State, error) {
	flux, err := q.Flux(entityID, start, end)
	if err != nil {
		return nil, err
	}
	res, err := q.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entityID, err)
	}
	defer res.Close()

	var states []model.State
	for res.Next() {
		rec := res.Record()
		states = append(states, model.State{
			EntityID:    entityID,
			Raw:         rawValue(rec.Value()),
			LastChanged: rec.Time(),
		})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", entityID, err)
	}
	q.log.Debugf("influx returned %d points for %s", len(states), entityID)
	return states, nil
}

// rawValue renders a field value the way the upstream state would read.
func rawValue(v any) string {
	switch x := v.(type) {
	case nil:
		return model.StateUnknown
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Close releases the underlying client resources.
func (q *Querier) Close() { q.client.Close() }
