package model

import (
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("no assessments", func(t *testing.T) {
		t.Parallel()

		s := Summarize(nil)
		if s.Total != 0 || len(s.Top) != 0 {
			t.Errorf("unexpected summary: %+v", s)
		}
		if !strings.HasPrefix(s.String(), "No significant risks") {
			t.Errorf("unexpected text: %q", s.String())
		}
	})

	t.Run("counts and top three", func(t *testing.T) {
		t.Parallel()

		in := []RiskAssessment{
			{ID: "a", RiskLevel: RiskLow},
			{ID: "b", RiskLevel: RiskCritical, BusinessImpact: "outage", AffectedAssets: []string{"eks", "rds"}},
			{ID: "c", RiskLevel: RiskMedium},
			{ID: "d", RiskLevel: RiskCritical, RiskScore: 9.5},
			{ID: "e", RiskLevel: RiskHigh},
		}
		s := Summarize(in)

		if s.Total != 5 || s.High != 3 || s.Medium != 1 {
			t.Errorf("counts = total %d high %d medium %d", s.Total, s.High, s.Medium)
		}
		if len(s.Top) != 3 {
			t.Fatalf("len(Top) = %d", len(s.Top))
		}
		if s.Top[0].ID != "d" || s.Top[1].ID != "b" || s.Top[2].ID != "e" {
			t.Errorf("top = %s %s %s", s.Top[0].ID, s.Top[1].ID, s.Top[2].ID)
		}

		text := s.String()
		for _, want := range []string{
			"Total Threats Analyzed: 5",
			"High Risk: 3",
			"- d (CRITICAL, score 9.5/10)",
			"Affected: eks, rds",
			"Impact: outage",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("summary missing %q:\n%s", want, text)
			}
		}
		if strings.Contains(text, "- a (") {
			t.Error("low risk assessment should not be in the top three")
		}
	})
}

func TestNewThreatModelRequest(t *testing.T) {
	t.Parallel()

	req := &Requirements{Requirements: "R", ExtractionKeywords: Keywords{"tech": {"aws"}}}
	landscape := &ThreatLandscape{TotalCount: 142}
	assessments := []RiskAssessment{{ID: "x", RiskLevel: RiskCritical}}

	got := NewThreatModelRequest(req, landscape, assessments)
	if got.Requirements != "R" || got.ThreatLandscape.TotalCount != 142 || len(got.RiskAssessments) != 1 {
		t.Errorf("unexpected request: %+v", got)
	}
	if !strings.Contains(got.Summary, "High Risk: 1") {
		t.Errorf("summary not derived from assessments: %q", got.Summary)
	}
}

func TestThreatModel(t *testing.T) {
	t.Parallel()

	m := ThreatModel{AttackPaths: []AttackPath{{
		Description: "phishing to cloud takeover",
		Steps: []AttackStep{
			{Step: 1, Action: "spearphish admin", MitreAttack: "T1566", StrideClassification: "Spoofing"},
			{Step: 2, Action: "steal token", MitreAttack: "T1528"},
			{Step: 3, Action: "reuse token", MitreAttack: "T1528"},
		},
	}}}

	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got := m.Techniques(); len(got) != 2 || got[0] != "T1566" || got[1] != "T1528" {
		t.Errorf("Techniques() = %v", got)
	}

	m.AttackPaths[0].Steps[1].Action = ""
	if err := m.Validate(); err == nil {
		t.Error("expected error for step without action")
	}
	m.AttackPaths[0].Description = ""
	if err := m.Validate(); err == nil {
		t.Error("expected error for path without description")
	}
}
