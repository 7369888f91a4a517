package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/predictive-sensor/core/history"
	"github.com/kilianp07/predictive-sensor/core/logger"
	"github.com/kilianp07/predictive-sensor/core/metrics"
	"github.com/kilianp07/predictive-sensor/core/model"
	"github.com/kilianp07/predictive-sensor/core/prediction"
	"github.com/kilianp07/predictive-sensor/core/sample"
)

var (
	// ErrQueryFailed wraps a failure of the historical range query.
	ErrQueryFailed = errors.New("history query failed")
	// ErrEmptyWindow is returned when the trailing window holds no usable sample.
	ErrEmptyWindow = fmt.Errorf("%w: no usable sample in window", prediction.ErrInsufficientHistory)
	// ErrNoCurrentState is returned by Refresh when the upstream has no state yet.
	ErrNoCurrentState = errors.New("upstream entity has no current state")
	// ErrAlreadyAttached is returned by OnAttach on an active sensor.
	ErrAlreadyAttached = errors.New("sensor already attached")
)

// Phase is the attachment state of a sensor.
type Phase int

const (
	Idle Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Active {
		return "active"
	}
	return "idle"
}

const defaultQueueSize = 64

// Options carries the collaborators of a PredictionSensor.
type Options struct {
	Feed      StateFeed
	History   HistoryQuerier // required in windowed mode
	Runtime   Runtime        // nil means always running
	Publisher Publisher
	Strategy  prediction.Strategy // nil selects Config.Strategy from the registry
	Recorder  metrics.Recorder
	Logger    logger.Logger
	// Clock returns the current time; defaults to time.Now.
	Clock     func() time.Time
	QueueSize int
}

type task func(ctx context.Context)

// PredictionSensor publishes a prediction of its upstream entity.
type PredictionSensor struct {
	cfg       Config
	info      model.EntityInfo
	feed      StateFeed
	querier   HistoryQuerier
	runtime   Runtime
	publisher Publisher
	strategy  prediction.Strategy
	recorder  metrics.Recorder
	log       logger.Logger
	now       func() time.Time
	queueSize int
	validator *sample.Validator

	incremental *history.Incremental
	windowed    *history.Windowed
	store       history.Store

	mu          sync.RWMutex
	state       model.PredictionState
	phase       Phase
	tasks       chan task
	done        chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
}

var _ Entity = (*PredictionSensor)(nil)

// New validates cfg and builds an idle sensor.
func New(cfg Config, opts Options) (*PredictionSensor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sensor config: %w", err)
	}
	if opts.Feed == nil {
		return nil, errors.New("sensor: state feed is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("sensor: publisher is required")
	}
	if cfg.Mode == ModeWindowed && opts.History == nil {
		return nil, errors.New("sensor: windowed mode requires a history querier")
	}
	strategy := opts.Strategy
	if strategy == nil {
		var err error
		if strategy, err = prediction.New(cfg.Strategy, cfg.StrategyConf); err != nil {
			return nil, fmt.Errorf("sensor strategy: %w", err)
		}
	}
	s := &PredictionSensor{
		cfg: cfg,
		info: model.EntityInfo{
			Name:           cfg.Name,
			UniqueID:       cfg.UniqueID,
			SourceEntityID: cfg.SourceEntityID,
			Unit:           cfg.Unit,
			Precision:      *cfg.Precision,
		},
		feed:      opts.Feed,
		querier:   opts.History,
		runtime:   opts.Runtime,
		publisher: opts.Publisher,
		strategy:  strategy,
		recorder:  opts.Recorder,
		log:       logger.OrNop(opts.Logger),
		now:       opts.Clock,
		queueSize: opts.QueueSize,
	}
	if s.runtime == nil {
		s.runtime = AlwaysRunning{}
	}
	if s.recorder == nil {
		s.recorder = metrics.NopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.queueSize <= 0 {
		s.queueSize = defaultQueueSize
	}
	s.validator = sample.NewValidator(s.log)
	switch cfg.Mode {
	case ModeIncremental:
		s.incremental = history.NewIncremental(cfg.MaxEntries)
		s.store = s.incremental
	case ModeWindowed:
		s.windowed = history.NewWindowed(cfg.Window)
		s.store = s.windowed
	}
	return s, nil
}

// Info returns the static description of the sensor.
func (s *PredictionSensor) Info() model.EntityInfo { return s.info }

// Value returns the current predicted reading, 0 before the first prediction.
func (s *PredictionSensor) Value() float64 { return s.State().Value }

// State returns the current prediction state.
func (s *PredictionSensor) State() model.PredictionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Phase reports whether the sensor is attached.
func (s *PredictionSensor) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// History returns a copy of the observations the next prediction will use.
func (s *PredictionSensor) History() []model.Observation { return s.store.Snapshot() }

// Strategy returns the prediction strategy in use.
func (s *PredictionSensor) Strategy() prediction.Strategy { return s.strategy }

// OnAttach subscribes to the upstream entity and starts the event loop. The
// first refresh runs as soon as the host runtime is started.
func (s *PredictionSensor) OnAttach(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == Active {
		s.mu.Unlock()
		return ErrAlreadyAttached
	}
	loopCtx, cancel := context.WithCancel(ctx)
	tasks := make(chan task, s.queueSize)
	done := make(chan struct{})
	s.tasks, s.done, s.cancel = tasks, done, cancel
	s.phase = Active
	s.mu.Unlock()

	go s.loop(loopCtx, tasks, done)

	unsubscribe, err := s.feed.Subscribe(s.cfg.SourceEntityID, s.onChange)
	if err != nil {
		s.stop()
		return fmt.Errorf("subscribe %s: %w", s.cfg.SourceEntityID, err)
	}
	s.mu.Lock()
	if s.phase != Active || s.done != done {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	startup := func() {
		if _, ok := s.enqueue(s.startup); !ok {
			s.log.Debugf("startup refresh dropped: sensor detached")
		}
	}
	if s.runtime.Running() {
		startup()
	} else {
		s.log.Infof("waiting for host runtime before first refresh of %s", s.cfg.SourceEntityID)
		s.runtime.OnStarted(startup)
	}
	s.log.Infof("sensor %q attached to %s (strategy=%s mode=%s)", s.cfg.Name, s.cfg.SourceEntityID, s.strategy.Name(), s.cfg.Mode)
	return nil
}

// OnDetach unsubscribes and stops the event loop. It is safe to call twice.
func (s *PredictionSensor) OnDetach() error {
	if !s.stop() {
		return nil
	}
	s.log.Infof("sensor %q detached from %s", s.cfg.Name, s.cfg.SourceEntityID)
	return nil
}

func (s *PredictionSensor) stop() bool {
	s.mu.Lock()
	if s.phase != Active {
		s.mu.Unlock()
		return false
	}
	s.phase = Idle
	unsubscribe, cancel, done := s.unsubscribe, s.cancel, s.done
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
	<-done
	return true
}

func (s *PredictionSensor) loop(ctx context.Context, tasks <-chan task, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tasks:
			t(ctx)
		}
	}
}

// enqueue schedules t on the event loop. It blocks while the queue is full
// and returns false once the sensor is detached. The returned channel is
// closed when the loop exits.
func (s *PredictionSensor) enqueue(t task) (<-chan struct{}, bool) {
	s.mu.RLock()
	tasks, done, active := s.tasks, s.done, s.phase == Active
	s.mu.RUnlock()
	if !active {
		return nil, false
	}
	select {
	case tasks <- t:
		return done, true
	case <-done:
		return nil, false
	}
}

func (s *PredictionSensor) onChange(ch model.StateChange) {
	if _, ok := s.enqueue(func(ctx context.Context) { s.handleChange(ctx, ch) }); !ok {
		s.log.Debugf("change of %s dropped: sensor detached", ch.EntityID)
	}
}

func (s *PredictionSensor) startup(ctx context.Context) {
	st, ok := s.feed.CurrentState(s.cfg.SourceEntityID)
	if !ok {
		s.log.Infof("no current state for %s yet", s.cfg.SourceEntityID)
		return
	}
	s.report(s.process(ctx, st))
}

func (s *PredictionSensor) handleChange(ctx context.Context, ch model.StateChange) {
	if ch.EntityID != s.cfg.SourceEntityID {
		s.log.Debugf("ignoring change of %s: sensor follows %s", ch.EntityID, s.cfg.SourceEntityID)
		return
	}
	if ch.New == nil {
		s.log.Debugf("ignoring removal of %s", ch.EntityID)
		return
	}
	s.log.Debugw("upstream change", map[string]any{"entity_id": ch.EntityID, "state": ch.New.Raw})
	s.report(s.process(ctx, *ch.New))
}

// report logs the outcome of a cycle. Every failure keeps the previous value.
func (s *PredictionSensor) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, sample.ErrInvalidSample), errors.Is(err, history.ErrOutOfOrder):
		s.log.Warnf("unable to update from %s: %v", s.cfg.SourceEntityID, err)
	case errors.Is(err, ErrQueryFailed), errors.Is(err, prediction.ErrInsufficientHistory):
		s.log.Warnf("keeping previous prediction %v: %v", s.Value(), err)
	case errors.Is(err, context.Canceled):
		s.log.Debugf("cycle cancelled: %v", err)
	default:
		s.log.Errorf("prediction cycle: %v", err)
	}
}

// Refresh recomputes the prediction from the current upstream state. On an
// attached sensor the work runs on the event loop.
func (s *PredictionSensor) Refresh(ctx context.Context) (model.PredictionState, error) {
	st, ok := s.feed.CurrentState(s.cfg.SourceEntityID)
	if !ok {
		return s.State(), ErrNoCurrentState
	}
	errCh := make(chan error, 1)
	run := func(ctx context.Context) { errCh <- s.process(ctx, st) }
	done, ok := s.enqueue(run)
	if !ok {
		run(ctx)
	}
	select {
	case err := <-errCh:
		return s.State(), err
	case <-done:
		return s.State(), context.Canceled
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Flush waits until every task queued before the call has been handled.
func (s *PredictionSensor) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	done, ok := s.enqueue(func(context.Context) { close(flushed) })
	if !ok {
		return nil
	}
	select {
	case <-flushed:
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// process runs one cycle: validate, refresh history, compute, publish.
func (s *PredictionSensor) process(ctx context.Context, st model.State) error {
	obs, err := s.validator.Observation(st)
	if err != nil {
		s.record(s.recorder.RecordRejected(metrics.RejectedEvent{
			SensorID: s.info.UniqueID,
			EntityID: s.cfg.SourceEntityID,
			Raw:      st.Raw,
			Reason:   sample.Reason(err),
			Time:     s.now(),
		}))
		return err
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.now()
	}
	if err := s.refreshHistory(ctx, obs); err != nil {
		return err
	}
	return s.recompute(ctx, obs.Value)
}

func (s *PredictionSensor) refreshHistory(ctx context.Context, obs model.Observation) error {
	if s.incremental != nil {
		if latest, ok := s.incremental.Latest(); ok && latest == obs {
			return nil
		}
		return s.incremental.Append(obs)
	}

	start, end := s.windowed.Range(s.now())
	states, err := s.query(ctx, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.skip(metrics.SkipQueryFailed)
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	entries := s.validator.Observations(states)
	if err := s.windowed.Replace(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		s.skip(metrics.SkipEmptyWindow)
		return fmt.Errorf("%w (%d raw states between %s and %s)", ErrEmptyWindow, len(states), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	s.log.Debugf("history of %s refreshed: %d samples", s.cfg.SourceEntityID, len(entries))
	return nil
}

// query runs the historical query on a worker goroutine and waits for it.
func (s *PredictionSensor) query(ctx context.Context, start, end time.Time) ([]model.State, error) {
	type result struct {
		states []model.State
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		states, err := s.querier.QueryHistory(ctx, s.cfg.SourceEntityID, start, end)
		ch <- result{states: states, err: err}
	}()
	select {
	case r := <-ch:
		return r.states, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *PredictionSensor) recompute(ctx context.Context, anchor float64) error {
	snapshot := s.store.Snapshot()
	var (
		value float64
		err   error
	)
	if trend, ok := s.strategy.(prediction.LinearTrend); ok {
		var d prediction.TrendDetail
		d, err = trend.Detail(snapshot, anchor, s.cfg.Horizon)
		if d.Excluded > 0 {
			s.log.Warnf("excluded %d sample pairs with non-increasing timestamps", d.Excluded)
		}
		value = d.Value
	} else {
		value, err = s.strategy.Compute(snapshot, anchor, s.cfg.Horizon)
	}
	if err != nil {
		if errors.Is(err, prediction.ErrInsufficientHistory) {
			s.skip(metrics.SkipInsufficientHistory)
		}
		return err
	}

	st := model.PredictionState{Value: value, LastUpdated: s.now()}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.record(s.recorder.RecordPrediction(metrics.PredictionEvent{
		SensorID: s.info.UniqueID,
		EntityID: s.cfg.SourceEntityID,
		Strategy: s.strategy.Name(),
		Value:    value,
		Samples:  len(snapshot),
		Time:     st.LastUpdated,
	}))
	if err := s.publisher.PublishState(ctx, s.info, st); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	s.log.Infof("predicted %s%s from %d samples", s.info.Format(value), s.info.Unit, len(snapshot))
	return nil
}

func (s *PredictionSensor) skip(reason string) {
	s.record(s.recorder.RecordSkipped(metrics.SkippedEvent{
		SensorID: s.info.UniqueID,
		EntityID: s.cfg.SourceEntityID,
		Strategy: s.strategy.Name(),
		Reason:   reason,
		Samples:  s.store.Len(),
		Time:     s.now(),
	}))
}

func (s *PredictionSensor) record(err error) {
	if err != nil {
		s.log.Errorf("metrics recorder: %v", err)
	}
}
