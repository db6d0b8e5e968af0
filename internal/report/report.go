package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// RunReport is everything known about one run.
type RunReport struct {
	RunID        string             `json:"run_id"`
	SessionID    string             `json:"session_id,omitempty"`
	Status       pipeline.RunStatus `json:"status"`
	StartTime    time.Time          `json:"start_time,omitzero"`
	EndTime      time.Time          `json:"end_time,omitzero"`
	ElapsedMS    int64              `json:"elapsed_ms"`
	FailingStage pipeline.StageID   `json:"failing_stage,omitempty"`
	Error        string             `json:"error,omitempty"`
	ErrorKind    pipeline.ErrorKind `json:"error_kind,omitempty"`
	Stages       []pipeline.Stage   `json:"stages"`

	Requirements *model.Requirements    `json:"requirements,omitempty"`
	Landscape    *model.ThreatLandscape `json:"threat_landscape,omitempty"`
	// Assessments are ordered by risk, highest first.
	Assessments []model.RiskAssessment `json:"risk_assessments,omitempty"`
	ThreatModel *model.ThreatModel     `json:"threat_model,omitempty"`
	Summary     *model.Summary         `json:"summary,omitempty"`
}

// NewRunReport builds a report from a snapshot and the run's results.
// Outputs of an unexpected type are ignored.
func NewRunReport(sessionID string, snap pipeline.Snapshot, results map[pipeline.StageID]any, now time.Time) *RunReport {
	r := &RunReport{
		RunID:        snap.RunID,
		SessionID:    sessionID,
		Status:       snap.Status,
		StartTime:    snap.StartTime,
		EndTime:      snap.EndTime,
		ElapsedMS:    snap.Elapsed(now).Milliseconds(),
		FailingStage: snap.FailingStage,
		Error:        snap.Error,
		ErrorKind:    snap.ErrorKind,
		Stages:       snap.Stages,
	}

	if v, ok := results[pipeline.StageRequirements].(*model.Requirements); ok {
		r.Requirements = v
	}
	if v, ok := results[pipeline.StageCollection].(*model.ThreatLandscape); ok {
		r.Landscape = v
	}
	if v, ok := results[pipeline.StageCorrelation].([]model.RiskAssessment); ok {
		r.Assessments = model.SortAssessments(v)
		summary := model.Summarize(v)
		r.Summary = &summary
	}
	if v, ok := results[pipeline.StageThreatModel].(*model.ThreatModel); ok {
		r.ThreatModel = v
	}
	return r
}

// Elapsed returns the run duration.
func (r *RunReport) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}

// RiskCounts returns the number of assessments per level.
func (r *RunReport) RiskCounts() map[model.RiskLevel]int {
	return model.CountByLevel(r.Assessments)
}

// StageTitle returns a display name such as "Collect Threats".
func StageTitle(id pipeline.StageID) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(id), "_", " "))
}

// stageDuration formats how long a stage ran, or "-" if it never finished.
func stageDuration(st pipeline.Stage) string {
	if st.StartedAt.IsZero() || st.CompletedAt.IsZero() {
		return "-"
	}
	return formatDuration(st.CompletedAt.Sub(st.StartedAt))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func statusText(r *RunReport) string {
	switch r.Status {
	case pipeline.RunCompleted:
		return "Complete"
	case pipeline.RunError:
		msg := fmt.Sprintf("ERROR at %s", StageTitle(r.FailingStage))
		if r.Error != "" {
			msg += " - " + r.Error
		}
		return msg
	case pipeline.RunRunning:
		return "Running"
	default:
		return "Idle"
	}
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
