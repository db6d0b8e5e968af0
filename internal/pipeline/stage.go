package pipeline

import (
	"slices"
	"time"
)

// StageID names a stage.
type StageID string

// The built-in stages in execution order.
const (
	StageRequirements StageID = "generate_requirements"
	StageCollection   StageID = "collect_threats"
	StageCorrelation  StageID = "correlate_threats"
	StageThreatModel  StageID = "build_threat_model"
)

// String implements fmt.Stringer.
func (id StageID) String() string {
	return string(id)
}

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

// Stage states. A stage only ever moves pending -> running -> completed or
// pending -> running -> error.
const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageError     StageStatus = "error"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

// Run states.
const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunError
}

// Definition declares a stage and the stages whose output it consumes.
type Definition struct {
	ID        StageID
	DependsOn []StageID
}

// Stage is the runtime state of one stage within a run. It is mutated only
// by the Controller; callers receive copies through Snapshot.
type Stage struct {
	ID          StageID     `json:"id"`
	DependsOn   []StageID   `json:"depends_on,omitempty"`
	Status      StageStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at,omitzero"`
	CompletedAt time.Time   `json:"completed_at,omitzero"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   ErrorKind   `json:"error_kind,omitempty"`
}

func newStage(def Definition) *Stage {
	return &Stage{
		ID:        def.ID,
		DependsOn: slices.Clone(def.DependsOn),
		Status:    StagePending,
	}
}

// DefaultDefinitions returns the built-in stage definitions. The threat
// model stage consumes the output of every earlier stage.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: StageRequirements},
		{ID: StageCollection, DependsOn: []StageID{StageRequirements}},
		{ID: StageCorrelation, DependsOn: []StageID{StageCollection}},
		{ID: StageThreatModel, DependsOn: []StageID{StageRequirements, StageCollection, StageCorrelation}},
	}
}

// MustDefaultGraph builds the graph of DefaultDefinitions and panics if it
// is malformed.
func MustDefaultGraph() *Graph {
	g, err := NewGraph(DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}
	return g
}
