package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// Type names the pipeline notification an Event carries.
type Type string

// Event types, one per NotificationSink callback.
const (
	TypeStageStart       Type = "stage_start"
	TypeStageComplete    Type = "stage_complete"
	TypeStageError       Type = "stage_error"
	TypePipelineComplete Type = "pipeline_complete"
	TypePipelineError    Type = "pipeline_error"
)

// Event is a serialisable pipeline notification.
type Event struct {
	Type  Type             `json:"type"`
	RunID string           `json:"run_id"`
	Stage pipeline.StageID `json:"stage,omitempty"`
	Time  time.Time        `json:"time"`

	// Detail is a one-line description of a stage output, such as
	// "142 items collected".
	Detail string `json:"detail,omitempty"`

	ElapsedMS int64              `json:"elapsed_ms,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind pipeline.ErrorKind `json:"error_kind,omitempty"`
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Type == TypePipelineComplete || e.Type == TypePipelineError
}

// Emitter receives events. Emit must not block.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Describe summarises a stage output in one line.
func Describe(output any) string {
	switch v := output.(type) {
	case *model.Requirements:
		return fmt.Sprintf("%d extraction keywords", len(v.ExtractionKeywords.All()))
	case *model.ThreatLandscape:
		return fmt.Sprintf("%d items collected", v.TotalCount)
	case []model.RiskAssessment:
		counts := model.CountByLevel(v)
		return fmt.Sprintf("%d assessments (%d critical, %d high)", len(v), counts[model.RiskCritical], counts[model.RiskHigh])
	case *model.ThreatModel:
		return fmt.Sprintf("%d attack paths", len(v.AttackPaths))
	default:
		return ""
	}
}

func errorFields(err error) (string, pipeline.ErrorKind) {
	var re *pipeline.RemoteError
	if errors.As(err, &re) {
		return re.Message, re.Kind
	}
	if err == nil {
		return "", ""
	}
	return err.Error(), ""
}
