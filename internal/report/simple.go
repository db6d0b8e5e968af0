package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/caiber/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds reasoning, per-level guidance and attack step details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStages(&sb, report)
	w.writeRequirements(&sb, report)
	w.writeLandscape(&sb, report)
	w.writeRisks(&sb, report)
	w.writeThreatModel(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                  CAIBER THREAT INTELLIGENCE REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:     %s\n", report.RunID)
	if report.SessionID != "" {
		fmt.Fprintf(sb, "Session:    %s\n", report.SessionID)
	}
	if !report.StartTime.IsZero() {
		fmt.Fprintf(sb, "Started:    %s\n", report.StartTime.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Elapsed:    %s\n", formatDuration(report.Elapsed()))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStages(sb *strings.Builder, report *RunReport) {
	section(sb, "STAGES")
	for i, st := range report.Stages {
		fmt.Fprintf(sb, "  %d. %-24s %-10s %s\n", i+1, StageTitle(st.ID), strings.ToUpper(string(st.Status)), stageDuration(st))
		if st.Error != "" {
			fmt.Fprintf(sb, "     %s error: %s\n", st.ErrorKind, st.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRequirements(sb *strings.Builder, report *RunReport) {
	if report.Requirements == nil {
		return
	}
	section(sb, "PRIORITY INTELLIGENCE REQUIREMENTS")
	for _, line := range strings.Split(strings.TrimSpace(report.Requirements.Requirements), "\n") {
		fmt.Fprintf(sb, "  %s\n", strings.TrimSpace(line))
	}
	sb.WriteString("\n")

	kw := report.Requirements.ExtractionKeywords
	for _, category := range kw.Categories() {
		fmt.Fprintf(sb, "  %-14s %s\n", category+":", strings.Join(kw[category], ", "))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLandscape(sb *strings.Builder, report *RunReport) {
	if report.Landscape == nil {
		return
	}
	l := report.Landscape
	section(sb, "THREAT LANDSCAPE")
	fmt.Fprintf(sb, "  Vulnerabilities: %d\n", len(l.Vulnerabilities))
	fmt.Fprintf(sb, "  Indicators:      %d\n", len(l.Indicators))
	fmt.Fprintf(sb, "  Advisories:      %d\n", len(l.Advisories))
	fmt.Fprintf(sb, "  TOTAL:           %d items\n", l.TotalCount)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRisks(sb *strings.Builder, report *RunReport) {
	if report.Summary == nil {
		return
	}
	section(sb, "RISK SUMMARY")
	counts := report.RiskCounts()
	for i := len(model.RiskLevels) - 1; i >= 0; i-- {
		level := model.RiskLevels[i]
		fmt.Fprintf(sb, "  %-9s %d\n", level.String()+":", counts[level])
	}
	fmt.Fprintf(sb, "\n  TOTAL:    %d assessments\n\n", report.Summary.Total)

	if len(report.Assessments) == 0 {
		sb.WriteString("  No significant risks identified.\n\n")
		return
	}

	current := model.RiskUnknown
	for _, a := range report.Assessments {
		if a.RiskLevel != current {
			current = a.RiskLevel
			fmt.Fprintf(sb, "[%s]\n", current)
			if w.verbose {
				fmt.Fprintf(sb, "  %s\n", current.Guidance())
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "  * %s", a.ID)
		if a.RiskScore > 0 {
			fmt.Fprintf(sb, " (score %.1f/10)", a.RiskScore)
		}
		sb.WriteString("\n")
		if len(a.AffectedAssets) > 0 {
			fmt.Fprintf(sb, "    Affected:   %s\n", strings.Join(a.AffectedAssets, ", "))
		}
		fmt.Fprintf(sb, "    Impact:     %s\n", orDash(a.BusinessImpact))
		fmt.Fprintf(sb, "    Mitigation: %s\n", orDash(a.Mitigation))
		if w.verbose && a.Reasoning != "" {
			fmt.Fprintf(sb, "    Reasoning:  %s\n", a.Reasoning)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeThreatModel(sb *strings.Builder, report *RunReport) {
	if report.ThreatModel == nil {
		return
	}
	section(sb, "ATTACK PATHS")
	if len(report.ThreatModel.AttackPaths) == 0 {
		sb.WriteString("  No attack paths identified.\n\n")
		return
	}
	for i, p := range report.ThreatModel.AttackPaths {
		fmt.Fprintf(sb, "  Path %d: %s\n", i+1, p.Description)
		for _, s := range p.Steps {
			fmt.Fprintf(sb, "    %d. %s", s.Step, s.Action)
			if s.MitreAttack != "" {
				fmt.Fprintf(sb, " [%s]", s.MitreAttack)
			}
			sb.WriteString("\n")
			if w.verbose {
				if s.StrideClassification != "" {
					fmt.Fprintf(sb, "       STRIDE: %s\n", s.StrideClassification)
				}
				if s.Justification != "" {
					fmt.Fprintf(sb, "       Why:    %s\n", s.Justification)
				}
			}
		}
		sb.WriteString("\n")
	}
	if techniques := report.ThreatModel.Techniques(); len(techniques) > 0 {
		fmt.Fprintf(sb, "  ATT&CK techniques: %s\n\n", strings.Join(techniques, ", "))
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Generated by caiber\n")
}
