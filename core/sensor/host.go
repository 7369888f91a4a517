package sensor

import (
	"context"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
)

// StateFeed delivers change notifications for upstream entities.
type StateFeed interface {
	// Subscribe registers handler for changes of entityID. The returned
	// function removes the subscription.
	Subscribe(entityID string, handler func(model.StateChange)) (unsubscribe func(), err error)
	// CurrentState returns the last known state of entityID.
	CurrentState(entityID string) (model.State, bool)
}

// HistoryQuerier returns the recorded states of an entity within [start, end],
// oldest first. Implementations may block on I/O.
type HistoryQuerier interface {
	QueryHistory(ctx context.Context, entityID string, start, end time.Time) ([]model.State, error)
}

// Runtime reports whether the host finished starting up.
type Runtime interface {
	Running() bool
	// OnStarted registers fn to run once when the host becomes ready.
	OnStarted(fn func())
}

// Publisher makes a prediction observable outside the process.
type Publisher interface {
	PublishState(ctx context.Context, info model.EntityInfo, st model.PredictionState) error
}

// Entity is the surface a host adapter exposes for a sensor.
type Entity interface {
	Info() model.EntityInfo
	Value() float64
	State() model.PredictionState
	OnAttach(ctx context.Context) error
	OnDetach() error
}

// AlwaysRunning is a Runtime that is ready from the start.
type AlwaysRunning struct{}

func (AlwaysRunning) Running() bool       { return true }
func (AlwaysRunning) OnStarted(fn func()) { fn() }
