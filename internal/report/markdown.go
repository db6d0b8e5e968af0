package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

var levelIcons = map[model.RiskLevel]string{
	model.RiskCritical: "🔴",
	model.RiskHigh:     "🟠",
	model.RiskMedium:   "🟡",
	model.RiskLow:      "🔵",
}

var stageIcons = map[pipeline.StageStatus]string{
	pipeline.StagePending:   "⏳",
	pipeline.StageRunning:   "🔄",
	pipeline.StageCompleted: "✅",
	pipeline.StageError:     "❌",
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStages(md, report)
	w.writeRequirements(md, report)
	w.writeLandscape(md, report)
	w.writeRisks(md, report)
	w.writeThreatModel(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *RunReport) {
	md.H1("Threat Intelligence Report")
	md.PlainText("")

	rows := [][]string{{"Run ID", "`" + report.RunID + "`"}}
	if report.SessionID != "" {
		rows = append(rows, []string{"Session", "`" + report.SessionID + "`"})
	}
	if !report.StartTime.IsZero() {
		rows = append(rows, []string{"Started", report.StartTime.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows,
		[]string{"Elapsed", formatDuration(report.Elapsed())},
		[]string{"Status", w.statusText(report)},
	)
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(report *RunReport) string {
	switch report.Status {
	case pipeline.RunCompleted:
		return "✅ " + statusText(report)
	case pipeline.RunError:
		return "❌ " + statusText(report)
	default:
		return statusText(report)
	}
}

func (w *MarkdownWriter) writeStages(md *markdown.Markdown, report *RunReport) {
	md.H2("Stages")
	md.PlainText("")

	rows := make([][]string, len(report.Stages))
	for i, st := range report.Stages {
		detail := "-"
		if st.Error != "" {
			detail = fmt.Sprintf("%s error: %s", st.ErrorKind, truncateString(st.Error, 60))
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			StageTitle(st.ID),
			stageIcons[st.Status] + " " + string(st.Status),
			stageDuration(st),
			detail,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Stage", "Status", "Duration", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeRequirements(md *markdown.Markdown, report *RunReport) {
	if report.Requirements == nil {
		return
	}
	md.H2("Priority Intelligence Requirements")
	md.PlainText("")
	md.PlainText(strings.TrimSpace(report.Requirements.Requirements))
	md.PlainText("")

	kw := report.Requirements.ExtractionKeywords
	items := make([]string, 0, len(kw))
	for _, category := range kw.Categories() {
		items = append(items, fmt.Sprintf("**%s**: %s", category, strings.Join(kw[category], ", ")))
	}
	if len(items) > 0 {
		md.BulletList(items...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeLandscape(md *markdown.Markdown, report *RunReport) {
	if report.Landscape == nil {
		return
	}
	l := report.Landscape
	md.H2("Threat Landscape")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Count"},
		Rows: [][]string{
			{"Vulnerabilities", strconv.Itoa(len(l.Vulnerabilities))},
			{"Indicators", strconv.Itoa(len(l.Indicators))},
			{"Advisories", strconv.Itoa(len(l.Advisories))},
			{"**Total**", "**" + strconv.Itoa(l.TotalCount) + "**"},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeRisks(md *markdown.Markdown, report *RunReport) {
	if report.Summary == nil {
		return
	}
	md.H2("Risk Assessment")
	md.PlainText("")

	counts := report.RiskCounts()
	rows := make([][]string, 0, len(model.RiskLevels)+1)
	for i := len(model.RiskLevels) - 1; i >= 0; i-- {
		level := model.RiskLevels[i]
		rows = append(rows, []string{levelIcons[level] + " " + level.String(), strconv.Itoa(counts[level])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.Summary.Total) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Risk Level", "Count"}, Rows: rows})
	md.PlainText("")

	if report.Summary.Total > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, counts)

	if len(report.Assessments) == 0 {
		return
	}
	tableRows := make([][]string, len(report.Assessments))
	for i, a := range report.Assessments {
		score := "-"
		if a.RiskScore > 0 {
			score = fmt.Sprintf("%.1f", a.RiskScore)
		}
		tableRows[i] = []string{
			truncateString(a.ID, 40),
			levelIcons[a.RiskLevel] + " " + a.RiskLevel.String(),
			score,
			truncateString(orDash(strings.Join(a.AffectedAssets, ", ")), 40),
			truncateString(orDash(a.Mitigation), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Threat", "Level", "Score", "Affected Assets", "Mitigation"},
		Rows:   tableRows,
	})
	md.PlainText("")

	for _, a := range report.Assessments {
		if a.BusinessImpact == "" && a.Reasoning == "" {
			continue
		}
		body := a.BusinessImpact
		if a.Reasoning != "" {
			body = strings.TrimSpace(body + "\n\n" + a.Reasoning)
		}
		md.Details(a.ID, body)
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the risk level distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.RiskLevel]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Risk Level Distribution"),
		piechart.WithShowData(true),
	)
	for i := len(model.RiskLevels) - 1; i >= 0; i-- {
		level := model.RiskLevels[i]
		if n := counts[level]; n > 0 {
			chart.LabelAndIntValue(level.String(), uint64(n))
		}
	}
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts map[model.RiskLevel]int) {
	switch {
	case counts[model.RiskCritical] > 0:
		md.Cautionf("%d critical risk(s) require immediate action.", counts[model.RiskCritical])
	case counts[model.RiskHigh] > 0:
		md.Warningf("%d high risk(s) should be remediated in the current cycle.", counts[model.RiskHigh])
	case counts[model.RiskMedium] > 0:
		md.Importantf("%d medium risk(s) to track.", counts[model.RiskMedium])
	case counts[model.RiskLow] > 0:
		md.Note("Only low risks identified.")
	default:
		md.Tip("No significant risks identified.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeThreatModel(md *markdown.Markdown, report *RunReport) {
	if report.ThreatModel == nil {
		return
	}
	md.H2("Attack Paths")
	md.PlainText("")
	if len(report.ThreatModel.AttackPaths) == 0 {
		md.PlainText("No attack paths identified.")
		md.PlainText("")
		return
	}
	for i, p := range report.ThreatModel.AttackPaths {
		md.H3(fmt.Sprintf("Path %d: %s", i+1, p.Description))
		md.PlainText("")
		rows := make([][]string, len(p.Steps))
		for j, s := range p.Steps {
			rows[j] = []string{
				strconv.Itoa(s.Step),
				s.Action,
				orDash(s.MitreAttack),
				orDash(s.StrideClassification),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Step", "Action", "ATT&CK", "STRIDE"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by caiber*")
}
