package pipeline

import (
	"context"
	"errors"
	"time"
)

// Input is what a stage receives.
type Input struct {
	// Initial is the value passed to Start. Only stages without
	// dependencies receive it.
	Initial any

	// Dependencies holds the outputs of the stage's declared dependencies
	// from the current run, and nothing else.
	Dependencies map[StageID]any
}

// Executor runs one remote stage. Implementations return a *RemoteError on
// failure; any other error is classified by the Controller.
type Executor interface {
	Execute(ctx context.Context, stage StageID, in Input) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, stage StageID, in Input) (any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, stage StageID, in Input) (any, error) {
	return f(ctx, stage, in)
}

// timeoutExecutor bounds every call of the wrapped executor.
type timeoutExecutor struct {
	next    Executor
	timeout time.Duration
}

// WithTimeout bounds each Execute call of next by d. When d elapses first
// the call's context is cancelled and a network RemoteError is returned
// without waiting for next to notice. A non-positive d returns next as is.
func WithTimeout(next Executor, d time.Duration) Executor {
	if d <= 0 {
		return next
	}
	return &timeoutExecutor{next: next, timeout: d}
}

type execResult struct {
	out any
	err error
}

func (t *timeoutExecutor) Execute(ctx context.Context, stage StageID, in Input) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		out, err := t.next.Execute(ctx, stage, in)
		done <- execResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &RemoteError{
				Stage:   stage,
				Kind:    KindNetwork,
				Message: "timed out after " + t.timeout.String(),
				Err:     ctx.Err(),
			}
		}
		return nil, AsRemoteError(stage, ctx.Err())
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
