package extract

import (
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/patterns"
)

// DefaultFloor is the field-level minimum raw confidence for a candidate to survive
const DefaultFloor = 0.15

// Candidates holds the surviving candidates of one section, keyed by field ID
type Candidates map[string][]model.FieldCandidate

// Extractor runs ranked pattern rules over section spans. It never mutates the bank.
type Extractor struct {
	registry *Registry
	eval     patterns.Evaluator
	floor    float64
}

// New creates an extractor. A nil registry uses the built-in section extractors;
// a negative floor uses DefaultFloor.
func New(registry *Registry, eval patterns.Evaluator, floor float64) *Extractor {
	if registry == nil {
		registry = NewRegistry()
	}
	if floor < 0 {
		floor = DefaultFloor
	}
	return &Extractor{registry: registry, eval: eval, floor: floor}
}

// Floor returns the confidence floor in use
func (e *Extractor) Floor() float64 {
	return e.floor
}

// ExtractField applies ranked rules to every span and keeps plausible candidates at or
// above the floor. Candidates come back in rule rank order, then span order.
func (e *Extractor) ExtractField(text string, spans []model.Span, rules []patterns.RankedRule, se SectionExtractor, field model.FieldSpec) []model.FieldCandidate {
	var out []model.FieldCandidate
	for _, r := range rules {
		for _, sp := range spans {
			c, ok := e.eval.Evaluate(r, text, sp)
			if !ok || c.RawConfidence < e.floor {
				continue
			}
			if !se.Accept(field, c.Value) {
				continue
			}
			c.Rank = r.Rank
			out = append(out, c)
		}
	}
	return out
}

// ExtractSection extracts every field of one section
func (e *Extractor) ExtractSection(text string, section model.Section, spans []model.Span, snap *patterns.Snapshot, docType model.DocumentType) Candidates {
	se, ok := e.registry.For(section)
	if !ok {
		return nil
	}
	out := make(Candidates)
	for _, f := range se.Fields() {
		rules := snap.ForField(section, f.ID, docType)
		if cs := e.ExtractField(text, spans, rules, se, f); len(cs) > 0 {
			out[f.ID] = cs
		}
	}
	return out
}

// ExtractAll extracts every schema section using the spans produced by the segmenter
func (e *Extractor) ExtractAll(text string, spans map[model.Section][]model.Span, snap *patterns.Snapshot, docType model.DocumentType) map[model.Section]Candidates {
	out := make(map[model.Section]Candidates)
	for _, sec := range model.Sections() {
		out[sec] = e.ExtractSection(text, sec, spans[sec], snap, docType)
	}
	return out
}

// Probe runs every rule of one field, including rules decayed to zero weight, with no
// floor. Training uses it to find which rules could produce a value.
func (e *Extractor) Probe(text string, spans []model.Span, snap *patterns.Snapshot, section model.Section, field string) []model.FieldCandidate {
	se, ok := e.registry.For(section)
	if !ok {
		return nil
	}
	spec, ok := model.LookupField(section, field)
	if !ok {
		return nil
	}
	var out []model.FieldCandidate
	for _, r := range snap.AllForField(section, field) {
		for _, sp := range spans {
			c, ok := e.eval.Evaluate(r, text, sp)
			if !ok || !se.Accept(spec, c.Value) {
				continue
			}
			c.Rank = r.Rank
			out = append(out, c)
		}
	}
	return out
}
