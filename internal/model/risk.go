package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// RiskLevel is the correlated risk of a threat to the organisation.
// Levels are ordered so they can be compared and sorted directly.
type RiskLevel int

const (
	// RiskUnknown is the zero value and never valid on a decoded assessment.
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// RiskLevels lists the valid levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// String returns the upper case name used on the wire.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseRiskLevel parses a level name case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "CRITICAL":
		return RiskCritical, nil
	default:
		return RiskUnknown, fmt.Errorf("unknown risk level %q", s)
	}
}

// MarshalJSON encodes the level as its name.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("risk level must be a string: %w", err)
	}
	parsed, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RiskAssessment is one threat correlated against the organisation.
type RiskAssessment struct {
	ID             string    `json:"id"`
	RiskLevel      RiskLevel `json:"risk_level"`
	AffectedAssets []string  `json:"affected_assets"`
	BusinessImpact string    `json:"business_impact"`
	Mitigation     string    `json:"mitigation"`
	Reasoning      string    `json:"reasoning,omitempty"`

	// RiskScore is the 0-10 relevance score when the correlator supplies one.
	RiskScore float64 `json:"risk_score,omitempty"`

	// ThreatType is "vulnerability", "indicator" or "advisory" when known.
	ThreatType string `json:"threat_type,omitempty"`
}

// Validate checks the record after decoding.
func (a *RiskAssessment) Validate() error {
	if a.ID == "" {
		return errors.New("id must not be empty")
	}
	if a.RiskLevel < RiskLow || a.RiskLevel > RiskCritical {
		return fmt.Errorf("%s: risk_level is required", a.ID)
	}
	if a.RiskScore < 0 || a.RiskScore > 10 {
		return fmt.Errorf("%s: risk_score %.1f out of range 0-10", a.ID, a.RiskScore)
	}
	return nil
}

// ValidateAssessments validates every assessment and rejects duplicate ids.
func ValidateAssessments(assessments []RiskAssessment) error {
	seen := make(map[string]struct{}, len(assessments))
	for i := range assessments {
		if err := assessments[i].Validate(); err != nil {
			return fmt.Errorf("assessments[%d]: %w", i, err)
		}
		if _, dup := seen[assessments[i].ID]; dup {
			return fmt.Errorf("assessments[%d]: duplicate id %q", i, assessments[i].ID)
		}
		seen[assessments[i].ID] = struct{}{}
	}
	return nil
}

// SortAssessments returns a copy ordered by level, then score, highest
// first. Ties keep their original order.
func SortAssessments(assessments []RiskAssessment) []RiskAssessment {
	out := slices.Clone(assessments)
	slices.SortStableFunc(out, func(a, b RiskAssessment) int {
		if a.RiskLevel != b.RiskLevel {
			return int(b.RiskLevel) - int(a.RiskLevel)
		}
		switch {
		case a.RiskScore > b.RiskScore:
			return -1
		case a.RiskScore < b.RiskScore:
			return 1
		}
		return 0
	})
	return out
}

// CountByLevel counts assessments per level.
func CountByLevel(assessments []RiskAssessment) map[RiskLevel]int {
	counts := make(map[RiskLevel]int, len(RiskLevels))
	for _, a := range assessments {
		counts[a.RiskLevel]++
	}
	return counts
}

// levelGuidance is the generic advice attached to each level in reports.
var levelGuidance = map[RiskLevel]string{
	RiskCritical: "Act immediately: the threat targets assets in scope and a practical exploit path exists.",
	RiskHigh:     "Schedule remediation in the current cycle and monitor for exploitation.",
	RiskMedium:   "Track and remediate during regular maintenance.",
	RiskLow:      "Accept or monitor; no direct exposure identified.",
}

// Guidance returns the generic advice for a level.
func (l RiskLevel) Guidance() string {
	if g, ok := levelGuidance[l]; ok {
		return g
	}
	return "Review manually."
}
