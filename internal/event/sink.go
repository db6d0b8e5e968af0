package event

import (
	"errors"
	"time"

	"github.com/nao1215/caiber/internal/pipeline"
)

// Sink adapts pipeline notifications into Events.
type Sink struct {
	clock    pipeline.Clock
	emitters []Emitter
}

var _ pipeline.NotificationSink = (*Sink)(nil)

// NewSink returns a Sink stamping events with clock and forwarding them to
// emitters. A nil clock uses the system clock.
func NewSink(clock pipeline.Clock, emitters ...Emitter) *Sink {
	if clock == nil {
		clock = pipeline.SystemClock{}
	}
	return &Sink{clock: clock, emitters: emitters}
}

func (s *Sink) emit(e Event) {
	e.Time = s.clock.Now()
	for _, em := range s.emitters {
		em.Emit(e)
	}
}

// OnStageStart implements pipeline.NotificationSink.
func (s *Sink) OnStageStart(runID string, stage pipeline.StageID) {
	s.emit(Event{Type: TypeStageStart, RunID: runID, Stage: stage})
}

// OnStageComplete implements pipeline.NotificationSink.
func (s *Sink) OnStageComplete(runID string, stage pipeline.StageID, output any) {
	s.emit(Event{Type: TypeStageComplete, RunID: runID, Stage: stage, Detail: Describe(output)})
}

// OnStageError implements pipeline.NotificationSink.
func (s *Sink) OnStageError(runID string, stage pipeline.StageID, err error) {
	msg, kind := errorFields(err)
	s.emit(Event{Type: TypeStageError, RunID: runID, Stage: stage, Error: msg, ErrorKind: kind})
}

// OnPipelineComplete implements pipeline.NotificationSink.
func (s *Sink) OnPipelineComplete(runID string, elapsed time.Duration) {
	s.emit(Event{Type: TypePipelineComplete, RunID: runID, ElapsedMS: elapsed.Milliseconds()})
}

// OnPipelineError implements pipeline.NotificationSink.
func (s *Sink) OnPipelineError(runID string, err error) {
	msg, kind := errorFields(err)
	e := Event{Type: TypePipelineError, RunID: runID, Error: msg, ErrorKind: kind}
	var re *pipeline.RemoteError
	if errors.As(err, &re) {
		e.Stage = re.Stage
	}
	s.emit(e)
}
