package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Controller runs the stages of a Graph through an Executor. It owns at
// most one run at a time and is safe for concurrent use.
type Controller struct {
	order        []Definition
	executor     Executor
	sink         NotificationSink
	clock        Clock
	logger       *slog.Logger
	newRunID     func() string
	stageTimeout time.Duration

	// mu guards everything below. It is never held across an executor
	// call or a sink callback.
	mu         sync.Mutex
	generation uint64
	current    *run
	results    *ResultAccumulator
}

// run is the mutable state of one pipeline run.
type run struct {
	id           string
	generation   uint64
	status       RunStatus
	stages       []*Stage
	byID         map[StageID]*Stage
	startTime    time.Time
	endTime      time.Time
	failingStage StageID
	err          error

	// final holds the outputs once the run has ended.
	final map[StageID]any

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	finish    func()
	discarded bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the notification sink. Use MultiSink for several.
func WithSink(sink NotificationSink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithStageTimeout bounds every stage by d. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.stageTimeout = d
	}
}

// WithRunIDGenerator replaces the UUID run id generator.
func WithRunIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newRunID = gen
		}
	}
}

// NewController returns an idle Controller for graph.
func NewController(graph *Graph, executor Executor, opts ...Option) (*Controller, error) {
	if graph == nil {
		return nil, fmt.Errorf("%w: graph is nil", ErrConfiguration)
	}
	if executor == nil {
		return nil, errors.New("pipeline: executor is nil")
	}

	c := &Controller{
		order:    graph.Resolve(),
		sink:     NopSink{},
		clock:    SystemClock{},
		newRunID: uuid.NewString,
		results:  NewResultAccumulator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.executor = WithTimeout(executor, c.stageTimeout)
	c.current = c.newRun("", 0)
	return c, nil
}

func (c *Controller) newRun(id string, generation uint64) *run {
	r := &run{
		id:         id,
		generation: generation,
		status:     RunIdle,
		stages:     make([]*Stage, len(c.order)),
		byID:       make(map[StageID]*Stage, len(c.order)),
	}
	for i, def := range c.order {
		st := newStage(def)
		r.stages[i] = st
		r.byID[def.ID] = st
	}
	return r
}

// Start begins a new run and returns its id. initial is handed to the
// stages without dependencies. Start returns a *ConcurrentRunError, and
// changes nothing, while a run is in progress. A finished run is replaced.
func (c *Controller) Start(ctx context.Context, initial any) (string, error) {
	h, err := c.Launch(ctx, initial)
	if err != nil {
		return "", err
	}
	return h.ID(), nil
}

// Launch is Start returning a handle bound to the new run. The handle keeps
// reporting that run after a later Start or Reset replaces it.
//
// The first stage is already running when Launch returns. Cancelling ctx
// fails the run with a network error.
func (c *Controller) Launch(ctx context.Context, initial any) (*RunHandle, error) {
	c.mu.Lock()
	if c.current.status == RunRunning {
		id := c.current.id
		c.mu.Unlock()
		return nil, &ConcurrentRunError{RunID: id}
	}

	c.generation++
	r := c.newRun(c.newRunID(), c.generation)
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.finish = sync.OnceFunc(func() { close(r.done) })
	r.status = RunRunning
	r.startTime = c.clock.Now()

	c.current = r
	c.results.Reset()

	first := c.order[0].ID
	in, err := c.beginStageLocked(r, 0, initial)
	c.mu.Unlock()

	c.logger.Debug("pipeline started", "run_id", r.id, "stages", len(r.stages))
	h := &RunHandle{c: c, r: r}
	if err != nil {
		r.cancel()
		r.finish()
		c.notifyFailure(r.id, first, err)
		return h, nil
	}
	c.sink.OnStageStart(r.id, first)
	go c.drive(r, initial, in)
	return h, nil
}

// Wait blocks until the most recently started run ends and returns its
// final state together with the run error, if any. See RunHandle.Wait.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r.done == nil {
		return c.Snapshot(), ErrNotStarted
	}
	return (&RunHandle{c: c, r: r}).Wait(ctx)
}

// Run starts a run and waits for it. Cancelling ctx ends the run, and Run
// returns the run's final state rather than a snapshot taken mid-stage.
func (c *Controller) Run(ctx context.Context, initial any) (Snapshot, error) {
	h, err := c.Launch(ctx, initial)
	if err != nil {
		return c.Snapshot(), err
	}
	<-h.Done()
	return h.result()
}

// Reset discards the current run, whatever its state, and returns the
// controller to idle with no results. A stage still in flight has its
// context cancelled and its eventual result ignored. Reset is idempotent.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current
	c.generation++
	if old.status == RunRunning {
		old.discarded = true
		old.cancel()
		old.finish()
		c.logger.Debug("pipeline run discarded", "run_id", old.id)
	}
	c.current = c.newRun("", c.generation)
	c.results.Reset()
}

// Snapshot returns a copy of the current run's state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.snapshot()
}

// Status returns the current run status.
func (c *Controller) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.status
}

// Elapsed returns the duration of the current run as of now.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return elapsed(c.current.startTime, c.current.endTime, c.clock.Now())
}

// Results returns the outputs recorded so far in the current run.
func (c *Controller) Results() map[StageID]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results.Snapshot()
}

// Result returns the output of one stage of the current run.
func (c *Controller) Result(id StageID) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results.Get(id)
}

// Now returns the controller's clock reading.
func (c *Controller) Now() time.Time {
	return c.clock.Now()
}

func (c *Controller) drive(r *run, initial any, in Input) {
	defer r.finish()
	defer r.cancel()

	for i := 0; ; i++ {
		def := c.order[i]
		c.logger.Debug("executing stage", "run_id", r.id, "stage", def.ID)
		out, err := c.execute(r.ctx, def.ID, in)

		var ok bool
		if in, ok = c.advance(r, i, out, err, initial); !ok {
			return
		}
	}
}

// execute runs one stage and gives up as soon as ctx is done, leaving an
// executor that ignores cancellation to finish on its own.
func (c *Controller) execute(ctx context.Context, stage StageID, in Input) (any, error) {
	done := make(chan execResult, 1)
	go func() {
		out, err := c.executor.Execute(ctx, stage, in)
		done <- execResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// beginStageLocked gathers the inputs of stage i and marks it running. On a
// missing dependency the stage and the run fail instead. c.mu must be held.
func (c *Controller) beginStageLocked(r *run, i int, initial any) (Input, error) {
	def := c.order[i]
	stage := r.byID[def.ID]

	deps, err := c.checkDependencies(r, def)
	if err != nil {
		c.logger.Error("stage dependency not satisfied", "run_id", r.id, "stage", def.ID, "error", err)
		c.failLocked(r, stage, err)
		return Input{}, err
	}

	in := Input{Dependencies: deps}
	if len(def.DependsOn) == 0 {
		in.Initial = initial
	}
	stage.Status = StageRunning
	stage.StartedAt = c.clock.Now()
	return in, nil
}

// checkDependencies verifies every dependency completed in this run and
// returns their outputs.
func (c *Controller) checkDependencies(r *run, def Definition) (map[StageID]any, error) {
	for _, dep := range def.DependsOn {
		if st, ok := r.byID[dep]; !ok || st.Status != StageCompleted {
			return nil, &MissingDependencyError{Stage: dep, Consumer: def.ID}
		}
	}
	return c.results.Inputs(def.ID, def.DependsOn)
}

// advance records the outcome of stage i and, under the same lock, either
// starts stage i+1 or ends the run. It returns the next stage's input, or
// false when the run must not continue.
func (c *Controller) advance(r *run, i int, out any, execErr error, initial any) (Input, bool) {
	def := c.order[i]

	c.mu.Lock()
	if r.generation != c.generation {
		c.mu.Unlock()
		c.logger.Debug("ignoring result of discarded run", "run_id", r.id, "stage", def.ID)
		return Input{}, false
	}

	stage := r.byID[def.ID]
	var err error
	switch {
	case errors.Is(execErr, ErrMissingDependency):
		c.logger.Error("stage input incomplete", "run_id", r.id, "stage", def.ID, "error", execErr)
		err = execErr
	case execErr != nil:
		err = AsRemoteError(def.ID, execErr)
	default:
		if putErr := c.results.Put(stage, out); putErr != nil {
			c.logger.Error("stage result rejected", "run_id", r.id, "stage", def.ID, "error", putErr)
			err = putErr
		}
	}
	if err != nil {
		c.failLocked(r, stage, err)
		c.mu.Unlock()
		c.notifyFailure(r.id, def.ID, err)
		return Input{}, false
	}

	stage.Status = StageCompleted
	stage.CompletedAt = c.clock.Now()

	if i+1 == len(c.order) {
		r.status = RunCompleted
		r.endTime = stage.CompletedAt
		r.final = c.results.Snapshot()
		d := r.endTime.Sub(r.startTime)
		c.mu.Unlock()

		c.sink.OnStageComplete(r.id, def.ID, out)
		c.logger.Debug("pipeline completed", "run_id", r.id, "elapsed", d)
		c.sink.OnPipelineComplete(r.id, d)
		return Input{}, false
	}

	next := c.order[i+1].ID
	in, err := c.beginStageLocked(r, i+1, initial)
	c.mu.Unlock()

	c.sink.OnStageComplete(r.id, def.ID, out)
	if err != nil {
		c.notifyFailure(r.id, next, err)
		return Input{}, false
	}
	c.sink.OnStageStart(r.id, next)
	return in, true
}

// failLocked moves stage and run to error. Later stages stay pending.
func (c *Controller) failLocked(r *run, stage *Stage, err error) {
	now := c.clock.Now()
	stage.Status = StageError
	stage.CompletedAt = now
	stage.Error, stage.ErrorKind = errorDetail(err)

	r.status = RunError
	r.endTime = now
	r.failingStage = stage.ID
	r.err = err
	r.final = c.results.Snapshot()
}

func (c *Controller) notifyFailure(runID string, stage StageID, err error) {
	c.sink.OnStageError(runID, stage, err)
	c.sink.OnPipelineError(runID, err)
}
