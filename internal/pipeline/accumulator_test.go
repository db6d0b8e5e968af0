package pipeline

import (
	"errors"
	"testing"
)

func TestResultAccumulatorPut(t *testing.T) {
	t.Parallel()

	t.Run("requires a running stage", func(t *testing.T) {
		t.Parallel()

		acc := NewResultAccumulator()
		for _, status := range []StageStatus{StagePending, StageCompleted, StageError} {
			st := &Stage{ID: StageRequirements, Status: status}
			if err := acc.Put(st, "out"); !errors.Is(err, ErrResultNotWritable) {
				t.Errorf("status %s: got %v, want ErrResultNotWritable", status, err)
			}
		}
		if acc.Len() != 0 {
			t.Errorf("Len() = %d, want 0", acc.Len())
		}
	})

	t.Run("is write once", func(t *testing.T) {
		t.Parallel()

		acc := NewResultAccumulator()
		st := &Stage{ID: StageRequirements, Status: StageRunning}
		if err := acc.Put(st, "first"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := acc.Put(st, "second"); !errors.Is(err, ErrResultNotWritable) {
			t.Fatalf("got %v, want ErrResultNotWritable", err)
		}
		got, err := acc.Get(StageRequirements)
		if err != nil || got != "first" {
			t.Errorf("Get() = %v, %v; want first", got, err)
		}
	})
}

func TestResultAccumulatorGet(t *testing.T) {
	t.Parallel()

	acc := NewResultAccumulator()
	_, err := acc.Get(StageCollection)

	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingDependencyError, got %v", err)
	}
	if missing.Stage != StageCollection {
		t.Errorf("Stage = %s", missing.Stage)
	}
	if !errors.Is(err, ErrMissingDependency) {
		t.Error("expected errors.Is(err, ErrMissingDependency)")
	}
	if acc.Has(StageCollection) {
		t.Error("Has() = true for missing stage")
	}
}

func TestResultAccumulatorInputs(t *testing.T) {
	t.Parallel()

	acc := NewResultAccumulator()
	for _, id := range []StageID{StageRequirements, StageCollection} {
		if err := acc.Put(&Stage{ID: id, Status: StageRunning}, string(id)+"-out"); err != nil {
			t.Fatal(err)
		}
	}

	in, err := acc.Inputs(StageCorrelation, []StageID{StageCollection})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in) != 1 || in[StageCollection] != "collect_threats-out" {
		t.Errorf("Inputs() = %v", in)
	}

	_, err = acc.Inputs(StageThreatModel, []StageID{StageRequirements, StageCorrelation})
	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingDependencyError, got %v", err)
	}
	if missing.Stage != StageCorrelation || missing.Consumer != StageThreatModel {
		t.Errorf("unexpected error detail: %+v", missing)
	}
}

func TestResultAccumulatorResetAndSnapshot(t *testing.T) {
	t.Parallel()

	acc := NewResultAccumulator()
	if err := acc.Put(&Stage{ID: StageRequirements, Status: StageRunning}, 1); err != nil {
		t.Fatal(err)
	}

	snap := acc.Snapshot()
	snap[StageCollection] = 2
	if acc.Has(StageCollection) {
		t.Error("Snapshot must return a copy")
	}

	acc.Reset()
	if acc.Len() != 0 {
		t.Errorf("Len() after Reset = %d", acc.Len())
	}
	if err := acc.Put(&Stage{ID: StageRequirements, Status: StageRunning}, 3); err != nil {
		t.Errorf("Put after Reset: %v", err)
	}
}
