package model

import (
	"sort"
	"time"
)

// Attribution records which rules a correction blamed and credited for one field
type Attribution struct {
	Failed    []string `json:"failed,omitempty"`    // rules that produced the old (wrong) value
	Succeeded []string `json:"succeeded,omitempty"` // rules that would have produced the new value
	// Unverified is set when the source text was unavailable, so only provenance could be used
	Unverified bool `json:"unverified,omitempty"`
}

// TrainingRecord is one persisted correction. Immutable once created.
type TrainingRecord struct {
	ID                 string                 `json:"id"`
	Timestamp          time.Time              `json:"timestamp"`
	DocumentType       DocumentType           `json:"document_type"`
	SchemaVersion      string                 `json:"schema_version"`
	OriginalExtraction ExtractionResult       `json:"original_extraction"`
	CorrectedData      Correction             `json:"corrected_data"`
	Diff               map[string]DiffEntry   `json:"diff"`
	Attribution        map[string]Attribution `json:"attribution,omitempty"`
}

// CoverageGaps returns the diffed field paths whose corrected value no rule could have produced.
// Cleared values and unverified attributions are not gaps.
func (r *TrainingRecord) CoverageGaps() []string {
	var gaps []string
	for path, d := range r.Diff {
		a := r.Attribution[path]
		if d.NewValue == nil || a.Unverified {
			continue
		}
		if len(a.Succeeded) == 0 {
			gaps = append(gaps, path)
		}
	}
	sort.Strings(gaps)
	return gaps
}
