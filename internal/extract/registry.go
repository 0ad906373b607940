package extract

import (
	"sort"

	"github.com/ppiankov/intake/internal/model"
)

// SectionExtractor defines the per-section part of extraction: which fields it owns
// and which candidate values are plausible for them
type SectionExtractor interface {
	// Section returns the section this extractor fills
	Section() model.Section

	// Fields returns the section's schema fields in order
	Fields() []model.FieldSpec

	// Accept reports whether a candidate value is plausible for the field
	Accept(field model.FieldSpec, value string) bool
}

// Registry manages section extractors
type Registry struct {
	extractors map[model.Section]SectionExtractor
}

// NewRegistry creates a registry holding the built-in extractor for every schema section
func NewRegistry() *Registry {
	registry := &Registry{
		extractors: make(map[model.Section]SectionExtractor),
	}

	registry.Register(NewDemographicsExtractor())
	registry.Register(NewMedicalHistoryExtractor())
	registry.Register(NewSymptomsExtractor())
	registry.Register(NewFunctionalStatusExtractor())
	registry.Register(NewEnvironmentalExtractor())
	registry.Register(NewAttendantCareExtractor())
	registry.Register(NewRecommendationsExtractor())

	return registry
}

// Register adds or replaces the extractor for its section
func (r *Registry) Register(e SectionExtractor) {
	r.extractors[e.Section()] = e
}

// For returns the extractor for a section. Schema sections without a registered
// extractor get the generic one.
func (r *Registry) For(section model.Section) (SectionExtractor, bool) {
	if e, ok := r.extractors[section]; ok {
		return e, true
	}
	if _, ok := model.LookupSection(section); ok {
		return newBase(section), true
	}
	return nil, false
}

// Sections returns the sections with a registered extractor in schema order
func (r *Registry) Sections() []model.Section {
	out := make([]model.Section, 0, len(r.extractors))
	for s := range r.extractors {
		out = append(out, s)
	}
	order := make(map[model.Section]int)
	for i, s := range model.Sections() {
		order[s] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
