package pipeline

import (
	"context"
	"maps"
)

// RunHandle refers to one run started by Launch.
type RunHandle struct {
	c *Controller
	r *run
}

// ID returns the run id.
func (h *RunHandle) ID() string { return h.r.id }

// Done is closed when the run ends or is discarded.
func (h *RunHandle) Done() <-chan struct{} { return h.r.done }

// Wait blocks until the run ends and returns its final state together with
// the run error, if any. A discarded run reports ErrRunReset with the
// controller's current state.
//
// When ctx is done first, Wait returns ctx.Err() and a snapshot of the
// current state, unless the run itself was cancelled by ctx. In that case
// the run is ending and Wait returns its final state.
func (h *RunHandle) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-h.r.done:
	case <-ctx.Done():
		if h.r.ctx.Err() == nil {
			return h.c.Snapshot(), ctx.Err()
		}
		<-h.r.done
	}
	return h.result()
}

// Results returns the outputs the run recorded. They stay available after
// the run was replaced by a later one.
func (h *RunHandle) Results() map[StageID]any {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	switch {
	case h.r.final != nil:
		return maps.Clone(h.r.final)
	case h.c.current == h.r:
		return h.c.results.Snapshot()
	default:
		return map[StageID]any{}
	}
}

// result must only be called once done is closed.
func (h *RunHandle) result() (Snapshot, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.r.discarded {
		return h.c.current.snapshot(), ErrRunReset
	}
	return h.r.snapshot(), h.r.err
}
