package pipeline

import (
	"fmt"
	"maps"
)

// ResultAccumulator holds the outputs of the stages completed in the
// current run. Each stage writes its output at most once. It is not safe
// for concurrent use; the Controller serializes access.
type ResultAccumulator struct {
	results map[StageID]any
}

// NewResultAccumulator returns an empty accumulator.
func NewResultAccumulator() *ResultAccumulator {
	return &ResultAccumulator{results: make(map[StageID]any)}
}

// Put records the output of stage, which must be running and must not
// have recorded an output yet.
func (a *ResultAccumulator) Put(stage *Stage, output any) error {
	if stage.Status != StageRunning {
		return fmt.Errorf("%w: stage %s is %s", ErrResultNotWritable, stage.ID, stage.Status)
	}
	if a.Has(stage.ID) {
		return fmt.Errorf("%w: stage %s already has a result", ErrResultNotWritable, stage.ID)
	}
	a.results[stage.ID] = output
	return nil
}

// Get returns the output of id or a *MissingDependencyError.
func (a *ResultAccumulator) Get(id StageID) (any, error) {
	out, ok := a.results[id]
	if !ok {
		return nil, &MissingDependencyError{Stage: id}
	}
	return out, nil
}

// Has reports whether id has an output.
func (a *ResultAccumulator) Has(id StageID) bool {
	_, ok := a.results[id]
	return ok
}

// Inputs collects the outputs of deps on behalf of consumer.
func (a *ResultAccumulator) Inputs(consumer StageID, deps []StageID) (map[StageID]any, error) {
	in := make(map[StageID]any, len(deps))
	for _, dep := range deps {
		out, ok := a.results[dep]
		if !ok {
			return nil, &MissingDependencyError{Stage: dep, Consumer: consumer}
		}
		in[dep] = out
	}
	return in, nil
}

// Len returns the number of recorded outputs.
func (a *ResultAccumulator) Len() int {
	return len(a.results)
}

// Snapshot returns a shallow copy of the recorded outputs.
func (a *ResultAccumulator) Snapshot() map[StageID]any {
	return maps.Clone(a.results)
}

// Reset discards every output.
func (a *ResultAccumulator) Reset() {
	clear(a.results)
}
