// Package model defines the typed payloads that flow between pipeline
// stages.
//
// Each stage has exactly one output record:
//   - Requirements: priority intelligence requirements and extraction keywords
//   - ThreatLandscape: vulnerabilities, indicators and advisories collected from feeds
//   - []RiskAssessment: threats correlated against the organisation's assets
//   - ThreatModel: attack paths built from everything above
//
// Every record has a Validate method. The remote executor calls it after
// decoding a response so a shape or value mismatch is caught at the stage
// boundary instead of surfacing later in a report.
package model
