package model

import (
	"fmt"
	"strings"
)

// topRiskCount is how many assessments the executive summary lists.
const topRiskCount = 3

// Summary is the executive summary of a set of risk assessments.
type Summary struct {
	Total  int              `json:"total"`
	High   int              `json:"high"`
	Medium int              `json:"medium"`
	Top    []RiskAssessment `json:"top"`
}

// Summarize builds the executive summary. HIGH and CRITICAL count as high
// risk.
func Summarize(assessments []RiskAssessment) Summary {
	s := Summary{Total: len(assessments)}
	for _, a := range assessments {
		switch a.RiskLevel {
		case RiskHigh, RiskCritical:
			s.High++
		case RiskMedium:
			s.Medium++
		}
	}
	sorted := SortAssessments(assessments)
	s.Top = sorted[:min(topRiskCount, len(sorted))]
	return s
}

// String renders the summary as the plain text block handed to the threat
// model stage.
func (s Summary) String() string {
	if s.Total == 0 {
		return "No significant risks identified based on current threat landscape."
	}

	var b strings.Builder
	b.WriteString("RISK ASSESSMENT SUMMARY\n")
	fmt.Fprintf(&b, "Total Threats Analyzed: %d\n", s.Total)
	fmt.Fprintf(&b, "High Risk: %d\n", s.High)
	fmt.Fprintf(&b, "Medium Risk: %d\n", s.Medium)
	b.WriteString("\nTOP RISKS:\n")
	for _, r := range s.Top {
		fmt.Fprintf(&b, "- %s (%s", r.ID, r.RiskLevel)
		if r.RiskScore > 0 {
			fmt.Fprintf(&b, ", score %.1f/10", r.RiskScore)
		}
		b.WriteString(")\n")
		impact := r.BusinessImpact
		if impact == "" {
			impact = "Unknown"
		}
		fmt.Fprintf(&b, "  Impact: %s\n", impact)
		if len(r.AffectedAssets) > 0 {
			fmt.Fprintf(&b, "  Affected: %s\n", strings.Join(r.AffectedAssets, ", "))
		}
	}
	return b.String()
}
