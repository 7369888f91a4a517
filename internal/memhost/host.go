// Package memhost is an in-process host for prediction sensors. It keeps
// upstream states in memory, delivers changes through an event bus and
// collects every published prediction. It backs the replay command and tests.
package memhost

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/predictive-sensor/core/model"
	"github.com/kilianp07/predictive-sensor/internal/eventbus"
)

// ErrClosed is returned once the host has been closed.
var ErrClosed = errors.New("memhost: closed")

const updatesBuffer = 64

// Publication is one state published by a sensor.
type Publication struct {
	Info  model.EntityInfo
	State model.PredictionState
}

// Host implements the sensor capabilities in memory.
type Host struct {
	bus *eventbus.Bus[model.StateChange]

	mu        sync.RWMutex
	current   map[string]model.State
	recorded  map[string][]model.State
	running   bool
	started   []func()
	published []Publication
	queryErr  error
	closed    bool
	now       time.Time

	updates chan Publication
}

// New returns a host whose runtime is not started yet.
func New() *Host {
	return &Host{
		bus:      eventbus.New[model.StateChange](),
		current:  make(map[string]model.State),
		recorded: make(map[string][]model.State),
		updates:  make(chan Publication, updatesBuffer),
	}
}

// Subscribe delivers the changes of entityID to handler, in order.
func (h *Host) Subscribe(entityID string, handler func(model.StateChange)) (func(), error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return h.bus.Subscribe(func(ch model.StateChange) {
		if ch.EntityID == entityID {
			handler(ch)
		}
	}), nil
}

// Subscribers returns the number of active subscriptions.
func (h *Host) Subscribers() int { return h.bus.Len() }

// CurrentState returns the last state set for entityID.
func (h *Host) CurrentState(entityID string) (model.State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.current[entityID]
	return st, ok
}

// SetState records a new state of entityID and notifies subscribers. The
// host clock follows the latest state time.
func (h *Host) SetState(entityID, raw string, at time.Time) {
	st := model.State{EntityID: entityID, Raw: raw, LastChanged: at}
	h.mu.Lock()
	var old *model.State
	if prev, ok := h.current[entityID]; ok {
		old = &prev
	}
	h.current[entityID] = st
	h.recorded[entityID] = append(h.recorded[entityID], st)
	if at.After(h.now) {
		h.now = at
	}
	h.mu.Unlock()

	h.Emit(model.StateChange{EntityID: entityID, Old: old, New: &st})
}

// Record adds a historical state without notifying subscribers.
func (h *Host) Record(st model.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorded[st.EntityID] = append(h.recorded[st.EntityID], st)
}

// Seed records states without notifying subscribers and makes the latest
// state of each entity current.
func (h *Host) Seed(states []model.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, st := range states {
		h.recorded[st.EntityID] = append(h.recorded[st.EntityID], st)
		if cur, ok := h.current[st.EntityID]; !ok || !st.LastChanged.Before(cur.LastChanged) {
			h.current[st.EntityID] = st
		}
		if st.LastChanged.After(h.now) {
			h.now = st.LastChanged
		}
	}
}

// Emit delivers ch to subscribers as is.
func (h *Host) Emit(ch model.StateChange) { h.bus.Publish(ch) }

// Now returns the time of the most recent state, or the wall clock when no
// state was set.
func (h *Host) Now() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.now.IsZero() {
		return time.Now()
	}
	return h.now
}

// FailQueries makes QueryHistory return err; nil restores normal behaviour.
func (h *Host) FailQueries(err error) {
	h.mu.Lock()
	h.queryErr = err
	h.mu.Unlock()
}

// QueryHistory returns the recorded states of entityID within [start, end],
// oldest first.
func (h *Host) QueryHistory(ctx context.Context, entityID string, start, end time.Time) ([]model.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	var out []model.State
	for _, st := range h.recorded[entityID] {
		if st.LastChanged.Before(start) || st.LastChanged.After(end) {
			continue
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastChanged.Before(out[j].LastChanged) })
	return out, nil
}

// Running reports whether Start was called.
func (h *Host) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// OnStarted runs fn on Start, or immediately when already started.
func (h *Host) OnStarted(fn func()) {
	h.mu.Lock()
	if !h.running {
		h.started = append(h.started, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	fn()
}

// Start marks the runtime as started and runs pending callbacks once.
func (h *Host) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	pending := h.started
	h.started = nil
	h.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// PublishState stores st and forwards it to Updates without blocking.
func (h *Host) PublishState(_ context.Context, info model.EntityInfo, st model.PredictionState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	p := Publication{Info: info, State: st}
	h.published = append(h.published, p)
	select {
	case h.updates <- p:
	default:
	}
	return nil
}

// Published returns a copy of every publication so far.
func (h *Host) Published() []Publication {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Publication, len(h.published))
	copy(out, h.published)
	return out
}

// Updates streams publications. Publications are dropped from the stream,
// not from Published, when nobody reads it.
func (h *Host) Updates() <-chan Publication { return h.updates }

// Close drops subscribers and closes the update stream.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.bus.Close()
	close(h.updates)
	return nil
}
