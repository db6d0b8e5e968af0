package pipeline

import (
	"errors"
	"slices"
	"time"
)

// Snapshot is a read-only copy of a run's state.
type Snapshot struct {
	RunID        string    `json:"run_id,omitempty"`
	Status       RunStatus `json:"status"`
	Stages       []Stage   `json:"stages"`
	StartTime    time.Time `json:"start_time,omitzero"`
	EndTime      time.Time `json:"end_time,omitzero"`
	FailingStage StageID   `json:"failing_stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
}

// Elapsed returns the run duration: fixed once the run has ended, measured
// against now while it is running, zero before it started.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	return elapsed(s.StartTime, s.EndTime, now)
}

// Stage returns the state of id.
func (s Snapshot) Stage(id StageID) (Stage, bool) {
	i := slices.IndexFunc(s.Stages, func(st Stage) bool { return st.ID == id })
	if i < 0 {
		return Stage{}, false
	}
	return s.Stages[i], true
}

// Current returns the running stage, if any.
func (s Snapshot) Current() (Stage, bool) {
	i := slices.IndexFunc(s.Stages, func(st Stage) bool { return st.Status == StageRunning })
	if i < 0 {
		return Stage{}, false
	}
	return s.Stages[i], true
}

// Completed returns the number of completed stages.
func (s Snapshot) Completed() int {
	n := 0
	for _, st := range s.Stages {
		if st.Status == StageCompleted {
			n++
		}
	}
	return n
}

func (r *run) snapshot() Snapshot {
	snap := Snapshot{
		RunID:        r.id,
		Status:       r.status,
		Stages:       make([]Stage, len(r.stages)),
		StartTime:    r.startTime,
		EndTime:      r.endTime,
		FailingStage: r.failingStage,
	}
	for i, st := range r.stages {
		cp := *st
		cp.DependsOn = slices.Clone(st.DependsOn)
		snap.Stages[i] = cp
	}
	if r.err != nil {
		snap.Error, snap.ErrorKind = errorDetail(r.err)
	}
	return snap
}

// errorDetail returns the message shown to users and the remote error
// kind, if any.
func errorDetail(err error) (string, ErrorKind) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message, re.Kind
	}
	return err.Error(), ""
}
