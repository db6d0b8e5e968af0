package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// GeneralKeywords is the category used for keywords supplied as a flat list.
const GeneralKeywords = "general"

// Requirements is the output of the requirements stage.
type Requirements struct {
	// Requirements is the prose of the priority intelligence requirements.
	Requirements string `json:"requirements"`

	// ExtractionKeywords drive threat collection.
	ExtractionKeywords Keywords `json:"extraction_keywords"`
}

// Validate checks the record after decoding.
func (r *Requirements) Validate() error {
	if strings.TrimSpace(r.Requirements) == "" {
		return errors.New("requirements must not be empty")
	}
	if len(r.ExtractionKeywords.All()) == 0 {
		return errors.New("extraction_keywords must contain at least one keyword")
	}
	return nil
}

// Keywords groups extraction keywords by category (technologies, regions,
// threat actors, ...). In JSON it is either a flat array of strings, kept
// under GeneralKeywords, or an object mapping category to array.
type Keywords map[string][]string

// UnmarshalJSON accepts both the flat and the categorized form.
func (k *Keywords) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var flat []string
		if err := json.Unmarshal(data, &flat); err != nil {
			return fmt.Errorf("keywords: %w", err)
		}
		*k = Keywords{GeneralKeywords: flat}
		return nil
	}
	var grouped map[string][]string
	if err := json.Unmarshal(data, &grouped); err != nil {
		return fmt.Errorf("keywords: %w", err)
	}
	*k = grouped
	return nil
}

// All returns every keyword once, trimmed and sorted.
func (k Keywords) All() []string {
	seen := make(map[string]struct{})
	for _, words := range k {
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			seen[w] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// Categories returns the category names in sorted order.
func (k Keywords) Categories() []string {
	out := make([]string, 0, len(k))
	for c := range k {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
