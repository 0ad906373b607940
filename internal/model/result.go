package model

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldValue is the extracted value of one field.
// Value is nil when nothing was found; Confidence is then 0.
type FieldValue struct {
	Value      any      `json:"value"`           // nil, string or []string
	Confidence float64  `json:"confidence"`      // [0,1]
	Rules      []string `json:"rules,omitempty"` // rules that supported the value
}

// IsEmpty reports whether the field carries no value
func (v FieldValue) IsEmpty() bool {
	return CanonicalValue(v.Value) == nil
}

// SectionResult maps field ID to value
type SectionResult map[string]FieldValue

// ExtractionResult maps section to its fields. Every schema field is always present.
type ExtractionResult map[Section]SectionResult

// NewEmptyResult returns a result holding every schema field with no value
func NewEmptyResult() ExtractionResult {
	out := make(ExtractionResult, len(schema))
	for _, s := range schema {
		sec := make(SectionResult, len(s.Fields))
		for _, f := range s.Fields {
			sec[f.ID] = FieldValue{}
		}
		out[s.Name] = sec
	}
	return out
}

// Get returns the value at a section/field
func (r ExtractionResult) Get(section Section, field string) (FieldValue, bool) {
	sec, ok := r[section]
	if !ok {
		return FieldValue{}, false
	}
	v, ok := sec[field]
	return v, ok
}

// Set stores a value, creating the section map when needed
func (r ExtractionResult) Set(section Section, field string, v FieldValue) {
	sec, ok := r[section]
	if !ok {
		sec = make(SectionResult)
		r[section] = sec
	}
	sec[field] = v
}

// Clone returns a deep copy
func (r ExtractionResult) Clone() ExtractionResult {
	if r == nil {
		return nil
	}
	out := make(ExtractionResult, len(r))
	for s, sec := range r {
		cp := make(SectionResult, len(sec))
		for f, v := range sec {
			cp[f] = FieldValue{
				Value:      cloneValue(v.Value),
				Confidence: v.Confidence,
				Rules:      append([]string(nil), v.Rules...),
			}
		}
		out[s] = cp
	}
	return out
}

func cloneValue(v any) any {
	if list, ok := v.([]string); ok {
		return append([]string(nil), list...)
	}
	return v
}

// Correction is the human-reviewed record: section -> field -> corrected value.
// Fields left out are not reviewed and are not diffed.
type Correction map[Section]map[string]any

// DiffEntry records a single field change
type DiffEntry struct {
	OldValue any `json:"old_value"`
	NewValue any `json:"new_value"`
}

// CanonicalValue converts a value into the comparable form used for diffs:
// nil, a trimmed non-empty string, or a non-empty []string of trimmed non-empty items.
// JSON-decoded []any of strings is accepted. Unsupported types return themselves
// unchanged so callers can reject them with CheckValue.
func CanonicalValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		return s
	case []string:
		return canonicalList(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, it := range val {
			s, ok := it.(string)
			if !ok {
				return v
			}
			items = append(items, s)
		}
		return canonicalList(items)
	default:
		return v
	}
}

func canonicalList(items []string) any {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CheckValue reports whether v is a supported field value type
func CheckValue(v any) error {
	switch val := v.(type) {
	case nil, string, []string:
		return nil
	case []any:
		for i, it := range val {
			if _, ok := it.(string); !ok {
				return fmt.Errorf("list item %d has type %T, want string", i, it)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

// ValuesEqual compares two field values structurally after canonicalisation
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(CanonicalValue(a), CanonicalValue(b))
}
