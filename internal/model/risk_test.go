package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRiskLevelString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		level    RiskLevel
		expected string
	}{
		{RiskLow, "LOW"},
		{RiskMedium, "MEDIUM"},
		{RiskHigh, "HIGH"},
		{RiskCritical, "CRITICAL"},
		{RiskUnknown, "UNKNOWN"},
		{RiskLevel(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := tc.level.String(); got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	t.Parallel()

	if !(RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskCritical) {
		t.Error("risk levels must be ordered LOW < MEDIUM < HIGH < CRITICAL")
	}
}

func TestParseRiskLevel(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"critical", " High ", "MEDIUM", "low"} {
		if _, err := ParseRiskLevel(in); err != nil {
			t.Errorf("ParseRiskLevel(%q): %v", in, err)
		}
	}
	if _, err := ParseRiskLevel("SEVERE"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestRiskAssessmentJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes level names", func(t *testing.T) {
		t.Parallel()

		var a RiskAssessment
		data := `{"id":"CVE-2024-3094","risk_level":"critical","affected_assets":["build servers"],"business_impact":"supply chain","mitigation":"downgrade xz"}`
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.RiskLevel != RiskCritical {
			t.Errorf("RiskLevel = %v", a.RiskLevel)
		}
		if err := a.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("encodes level names", func(t *testing.T) {
		t.Parallel()

		out, err := json.Marshal(RiskAssessment{ID: "x", RiskLevel: RiskHigh})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(out), `"risk_level":"HIGH"`) {
			t.Errorf("unexpected encoding: %s", out)
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		t.Parallel()

		var a RiskAssessment
		if err := json.Unmarshal([]byte(`{"id":"x","risk_level":"SEVERE"}`), &a); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("rejects numeric level", func(t *testing.T) {
		t.Parallel()

		var a RiskAssessment
		if err := json.Unmarshal([]byte(`{"id":"x","risk_level":3}`), &a); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidateAssessments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []RiskAssessment
		wantErr bool
	}{
		{name: "empty list", in: nil},
		{name: "valid", in: []RiskAssessment{{ID: "a", RiskLevel: RiskLow}, {ID: "b", RiskLevel: RiskHigh, RiskScore: 8}}},
		{name: "missing id", in: []RiskAssessment{{RiskLevel: RiskLow}}, wantErr: true},
		{name: "missing level", in: []RiskAssessment{{ID: "a"}}, wantErr: true},
		{name: "score out of range", in: []RiskAssessment{{ID: "a", RiskLevel: RiskLow, RiskScore: 11}}, wantErr: true},
		{name: "duplicate id", in: []RiskAssessment{{ID: "a", RiskLevel: RiskLow}, {ID: "a", RiskLevel: RiskHigh}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAssessments(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSortAssessments(t *testing.T) {
	t.Parallel()

	in := []RiskAssessment{
		{ID: "low", RiskLevel: RiskLow},
		{ID: "high-5", RiskLevel: RiskHigh, RiskScore: 5},
		{ID: "crit", RiskLevel: RiskCritical},
		{ID: "high-8", RiskLevel: RiskHigh, RiskScore: 8},
		{ID: "medium", RiskLevel: RiskMedium},
	}
	got := SortAssessments(in)

	want := []string{"crit", "high-8", "high-5", "medium", "low"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
	if in[0].ID != "low" {
		t.Error("SortAssessments must not reorder its input")
	}
}

func TestCountByLevel(t *testing.T) {
	t.Parallel()

	counts := CountByLevel([]RiskAssessment{
		{RiskLevel: RiskCritical}, {RiskLevel: RiskCritical}, {RiskLevel: RiskLow},
	})
	if counts[RiskCritical] != 2 || counts[RiskLow] != 1 || counts[RiskHigh] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestRiskLevelGuidance(t *testing.T) {
	t.Parallel()

	for _, l := range RiskLevels {
		if l.Guidance() == "Review manually." {
			t.Errorf("%s has no guidance", l)
		}
	}
	if RiskUnknown.Guidance() != "Review manually." {
		t.Error("unknown level should fall back to manual review")
	}
}
