package model

import "fmt"

// ThreatLandscape is the output of the collection stage: everything the
// collection agents found for the extraction keywords.
type ThreatLandscape struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Indicators      []Indicator     `json:"indicators"`
	Advisories      []Advisory      `json:"advisories"`

	// TotalCount is the number of items the feeds reported. It may exceed
	// the number of items returned when the collector truncates.
	TotalCount int `json:"total_count"`
}

// Vulnerability is a CVE style entry.
type Vulnerability struct {
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Severity    string  `json:"severity,omitempty"`
	CVSSScore   float64 `json:"cvss_score,omitempty"`
	Published   string  `json:"published,omitempty"`
	Source      string  `json:"source,omitempty"`
}

// Indicator is an indicator of compromise or a threat pulse.
type Indicator struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Advisory is a vendor or ecosystem security advisory.
type Advisory struct {
	ID       string `json:"id"`
	Summary  string `json:"summary,omitempty"`
	Severity string `json:"severity,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Items returns the number of items actually present.
func (l *ThreatLandscape) Items() int {
	return len(l.Vulnerabilities) + len(l.Indicators) + len(l.Advisories)
}

// Validate checks the record after decoding.
func (l *ThreatLandscape) Validate() error {
	if l.TotalCount < 0 {
		return fmt.Errorf("total_count must be non-negative, got %d", l.TotalCount)
	}
	for i, v := range l.Vulnerabilities {
		if v.ID == "" {
			return fmt.Errorf("vulnerabilities[%d]: id must not be empty", i)
		}
		if v.CVSSScore < 0 || v.CVSSScore > 10 {
			return fmt.Errorf("vulnerabilities[%d]: cvss_score %.1f out of range", i, v.CVSSScore)
		}
	}
	for i, ind := range l.Indicators {
		if ind.Name == "" {
			return fmt.Errorf("indicators[%d]: name must not be empty", i)
		}
	}
	for i, a := range l.Advisories {
		if a.ID == "" {
			return fmt.Errorf("advisories[%d]: id must not be empty", i)
		}
	}
	return nil
}
