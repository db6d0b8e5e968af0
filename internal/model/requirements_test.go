package model

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestKeywordsUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    []string
		wantErr bool
	}{
		{name: "flat list", data: `["aws","k8s"]`, want: []string{"aws", "k8s"}},
		{name: "categorized", data: `{"tech":["k8s","aws"],"actors":["APT29"]}`, want: []string{"APT29", "aws", "k8s"}},
		{name: "duplicates collapse", data: `{"a":["aws"],"b":["aws"," aws "]}`, want: []string{"aws"}},
		{name: "null", data: `null`, want: []string{}},
		{name: "number", data: `42`, wantErr: true},
		{name: "list of numbers", data: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var k Keywords
			err := json.Unmarshal([]byte(tt.data), &k)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := k.All(); !slices.Equal(got, tt.want) {
				t.Errorf("All() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeywordsFlatListIsGeneralCategory(t *testing.T) {
	t.Parallel()

	var k Keywords
	if err := json.Unmarshal([]byte(`["aws"]`), &k); err != nil {
		t.Fatal(err)
	}
	if got := k.Categories(); !slices.Equal(got, []string{GeneralKeywords}) {
		t.Errorf("Categories() = %v", got)
	}
}

func TestRequirementsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Requirements
		wantErr bool
	}{
		{name: "valid", req: Requirements{Requirements: "R", ExtractionKeywords: Keywords{"tech": {"aws"}}}},
		{name: "blank requirements", req: Requirements{Requirements: " ", ExtractionKeywords: Keywords{"tech": {"aws"}}}, wantErr: true},
		{name: "no keywords", req: Requirements{Requirements: "R"}, wantErr: true},
		{name: "only blank keywords", req: Requirements{Requirements: "R", ExtractionKeywords: Keywords{"tech": {""}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThreatLandscapeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		l       ThreatLandscape
		wantErr bool
	}{
		{name: "empty", l: ThreatLandscape{}},
		{name: "count larger than items", l: ThreatLandscape{TotalCount: 142, Vulnerabilities: []Vulnerability{{ID: "CVE-1"}}}},
		{name: "negative count", l: ThreatLandscape{TotalCount: -1}, wantErr: true},
		{name: "vulnerability without id", l: ThreatLandscape{Vulnerabilities: []Vulnerability{{}}}, wantErr: true},
		{name: "cvss out of range", l: ThreatLandscape{Vulnerabilities: []Vulnerability{{ID: "CVE-1", CVSSScore: 10.5}}}, wantErr: true},
		{name: "indicator without name", l: ThreatLandscape{Indicators: []Indicator{{}}}, wantErr: true},
		{name: "advisory without id", l: ThreatLandscape{Advisories: []Advisory{{}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.l.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThreatLandscapeItems(t *testing.T) {
	t.Parallel()

	l := ThreatLandscape{
		Vulnerabilities: []Vulnerability{{ID: "a"}, {ID: "b"}},
		Indicators:      []Indicator{{Name: "c"}},
		Advisories:      []Advisory{{ID: "d"}},
	}
	if l.Items() != 4 {
		t.Errorf("Items() = %d, want 4", l.Items())
	}
}
