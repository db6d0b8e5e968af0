package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink records events as short strings, e.g.
// "start generate_requirements" or "pipeline_error".
type recordingSink struct {
	mu      sync.Mutex
	events  []string
	runIDs  []string
	elapsed time.Duration
	started chan StageID
}

func newRecordingSink() *recordingSink {
	return &recordingSink{started: make(chan StageID, 64)}
}

func (s *recordingSink) record(runID, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.runIDs = append(s.runIDs, runID)
}

func (s *recordingSink) OnStageStart(runID string, stage StageID) {
	s.record(runID, "start "+string(stage))
	select {
	case s.started <- stage:
	default:
	}
}

func (s *recordingSink) OnStageComplete(runID string, stage StageID, _ any) {
	s.record(runID, "complete "+string(stage))
}

func (s *recordingSink) OnStageError(runID string, stage StageID, err error) {
	s.record(runID, "error "+string(stage))
}

func (s *recordingSink) OnPipelineComplete(runID string, elapsed time.Duration) {
	s.mu.Lock()
	s.elapsed = elapsed
	s.mu.Unlock()
	s.record(runID, "pipeline_complete")
}

func (s *recordingSink) OnPipelineError(runID string, _ error) {
	s.record(runID, "pipeline_error")
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// EventsFor returns the events recorded for one run.
func (s *recordingSink) EventsFor(runID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for i, id := range s.runIDs {
		if id == runID {
			out = append(out, s.events[i])
		}
	}
	return out
}

// waitStarted blocks until stage has started.
func (s *recordingSink) waitStarted(t *testing.T, stage StageID) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-s.started:
			if got == stage {
				return
			}
		case <-timeout:
			t.Fatalf("stage %s did not start", stage)
		}
	}
}

// stageFunc is the behaviour of one stage in a scriptedExecutor.
type stageFunc func(ctx context.Context, in Input) (any, error)

// scriptedExecutor dispatches to a function per stage and records inputs.
type scriptedExecutor struct {
	mu     sync.Mutex
	stages map[StageID]stageFunc
	calls  []StageID
	inputs map[StageID]Input
}

func newScriptedExecutor(stages map[StageID]stageFunc) *scriptedExecutor {
	return &scriptedExecutor{stages: stages, inputs: make(map[StageID]Input)}
}

func (e *scriptedExecutor) Execute(ctx context.Context, stage StageID, in Input) (any, error) {
	e.mu.Lock()
	e.calls = append(e.calls, stage)
	e.inputs[stage] = in
	fn, ok := e.stages[stage]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no script for stage %s", stage)
	}
	return fn(ctx, in)
}

func (e *scriptedExecutor) Calls() []StageID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]StageID(nil), e.calls...)
}

func (e *scriptedExecutor) Input(stage StageID) Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputs[stage]
}

func returns(v any) stageFunc {
	return func(context.Context, Input) (any, error) { return v, nil }
}

func fails(err error) stageFunc {
	return func(context.Context, Input) (any, error) { return nil, err }
}

// signalHandler is an slog.Handler that closes a channel when a record
// with the given message is logged.
type signalHandler struct {
	message string
	once    sync.Once
	seen    chan struct{}
}

func newSignalHandler(message string) *signalHandler {
	return &signalHandler{message: message, seen: make(chan struct{})}
}

func (h *signalHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *signalHandler) Handle(_ context.Context, r slog.Record) error {
	if strings.Contains(r.Message, h.message) {
		h.once.Do(func() { close(h.seen) })
	}
	return nil
}

func (h *signalHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *signalHandler) WithGroup(string) slog.Handler      { return h }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// assertInvariants checks the relationship between run status and stage
// statuses.
func assertInvariants(t *testing.T, snap Snapshot) {
	t.Helper()

	count := map[StageStatus]int{}
	for _, st := range snap.Stages {
		count[st.Status]++
	}
	// Stages after the first non-completed one must all be pending.
	firstOpen := len(snap.Stages)
	for i, st := range snap.Stages {
		if st.Status != StageCompleted {
			firstOpen = i
			break
		}
	}
	for _, st := range snap.Stages[min(firstOpen+1, len(snap.Stages)):] {
		if st.Status != StagePending {
			t.Errorf("stage %s is %s after an unfinished stage", st.ID, st.Status)
		}
	}

	switch snap.Status {
	case RunIdle:
		if count[StagePending] != len(snap.Stages) {
			t.Errorf("idle run with non-pending stages: %v", count)
		}
	case RunRunning:
		if count[StageRunning] != 1 || count[StageError] != 0 {
			t.Errorf("running run must have exactly one running stage: %v", count)
		}
	case RunCompleted:
		if count[StageCompleted] != len(snap.Stages) {
			t.Errorf("completed run with unfinished stages: %v", count)
		}
	case RunError:
		if count[StageError] != 1 || count[StageRunning] != 0 {
			t.Errorf("failed run must have exactly one failed stage: %v", count)
		}
		if snap.FailingStage == "" {
			t.Error("failed run without failing stage")
		}
	}
}

func slogNew(h slog.Handler) *slog.Logger {
	return slog.New(h)
}
