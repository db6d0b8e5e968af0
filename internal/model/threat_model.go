package model

import (
	"errors"
	"fmt"
)

// ThreatModelRequest is the input of the threat model stage. It carries
// the outputs of every earlier stage plus the executive summary.
type ThreatModelRequest struct {
	Requirements       string           `json:"requirements"`
	ExtractionKeywords Keywords         `json:"extraction_keywords"`
	ThreatLandscape    ThreatLandscape  `json:"threat_landscape"`
	RiskAssessments    []RiskAssessment `json:"risk_assessments"`
	Summary            string           `json:"summary"`
}

// NewThreatModelRequest assembles the request from earlier stage outputs.
func NewThreatModelRequest(req *Requirements, landscape *ThreatLandscape, assessments []RiskAssessment) ThreatModelRequest {
	return ThreatModelRequest{
		Requirements:       req.Requirements,
		ExtractionKeywords: req.ExtractionKeywords,
		ThreatLandscape:    *landscape,
		RiskAssessments:    assessments,
		Summary:            Summarize(assessments).String(),
	}
}

// ThreatModel is the output of the final stage.
type ThreatModel struct {
	AttackPaths []AttackPath `json:"attack_paths"`
}

// AttackPath is one plausible route from initial access to impact.
type AttackPath struct {
	Description string       `json:"path_description"`
	Steps       []AttackStep `json:"steps"`
}

// AttackStep is a single step of an attack path.
type AttackStep struct {
	Step                 int    `json:"step"`
	Action               string `json:"action"`
	MitreAttack          string `json:"mitre_attack,omitempty"`
	StrideClassification string `json:"stride_classification,omitempty"`
	Justification        string `json:"justification,omitempty"`
}

// Validate checks the record after decoding.
func (m *ThreatModel) Validate() error {
	for i, p := range m.AttackPaths {
		if p.Description == "" {
			return fmt.Errorf("attack_paths[%d]: path_description must not be empty", i)
		}
		for j, s := range p.Steps {
			if s.Action == "" {
				return fmt.Errorf("attack_paths[%d].steps[%d]: %w", i, j, errEmptyAction)
			}
		}
	}
	return nil
}

var errEmptyAction = errors.New("action must not be empty")

// Techniques returns the distinct MITRE ATT&CK technique ids in first-seen order.
func (m *ThreatModel) Techniques() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range m.AttackPaths {
		for _, s := range p.Steps {
			if s.MitreAttack == "" {
				continue
			}
			if _, ok := seen[s.MitreAttack]; ok {
				continue
			}
			seen[s.MitreAttack] = struct{}{}
			out = append(out, s.MitreAttack)
		}
	}
	return out
}
