package pipeline

import (
	"log/slog"
	"time"
)

// NotificationSink receives progress events. Callbacks run on the driver
// goroutine after the state change they report, outside the controller's
// lock, and must not block for long. Every callback carries the run id so
// events from a discarded run can be told apart.
type NotificationSink interface {
	OnStageStart(runID string, stage StageID)
	OnStageComplete(runID string, stage StageID, output any)
	OnStageError(runID string, stage StageID, err error)
	OnPipelineComplete(runID string, elapsed time.Duration)
	OnPipelineError(runID string, err error)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) OnStageStart(string, StageID)             {}
func (NopSink) OnStageComplete(string, StageID, any)     {}
func (NopSink) OnStageError(string, StageID, error)      {}
func (NopSink) OnPipelineComplete(string, time.Duration) {}
func (NopSink) OnPipelineError(string, error)            {}

// MultiSink forwards every event to each sink in order.
type MultiSink []NotificationSink

func (m MultiSink) OnStageStart(runID string, stage StageID) {
	for _, s := range m {
		s.OnStageStart(runID, stage)
	}
}

func (m MultiSink) OnStageComplete(runID string, stage StageID, output any) {
	for _, s := range m {
		s.OnStageComplete(runID, stage, output)
	}
}

func (m MultiSink) OnStageError(runID string, stage StageID, err error) {
	for _, s := range m {
		s.OnStageError(runID, stage, err)
	}
}

func (m MultiSink) OnPipelineComplete(runID string, elapsed time.Duration) {
	for _, s := range m {
		s.OnPipelineComplete(runID, elapsed)
	}
}

func (m MultiSink) OnPipelineError(runID string, err error) {
	for _, s := range m {
		s.OnPipelineError(runID, err)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) OnStageStart(runID string, stage StageID) {
	s.logger.Info("stage started", "run_id", runID, "stage", stage)
}

func (s *LogSink) OnStageComplete(runID string, stage StageID, _ any) {
	s.logger.Info("stage completed", "run_id", runID, "stage", stage)
}

func (s *LogSink) OnStageError(runID string, stage StageID, err error) {
	attrs := []any{"run_id", runID, "stage", stage, "error", err}
	if re, ok := err.(*RemoteError); ok {
		attrs = append(attrs, "kind", re.Kind)
	}
	s.logger.Error("stage failed", attrs...)
}

func (s *LogSink) OnPipelineComplete(runID string, elapsed time.Duration) {
	s.logger.Info("pipeline completed", "run_id", runID, "elapsed", elapsed)
}

func (s *LogSink) OnPipelineError(runID string, err error) {
	s.logger.Error("pipeline failed", "run_id", runID, "error", err)
}
