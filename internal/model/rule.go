package model

import (
	"fmt"
	"regexp"
)

// StrategyKind tags which matching strategy a rule uses
type StrategyKind string

const (
	StrategyRegex            StrategyKind = "regex"
	StrategyKeywordProximity StrategyKind = "keyword_proximity"
	StrategyPositional       StrategyKind = "positional"
)

// ValueShape names the token shapes a keyword or positional rule accepts
type ValueShape string

const (
	ShapeDate   ValueShape = "date"
	ShapePhone  ValueShape = "phone"
	ShapeEmail  ValueShape = "email"
	ShapeNumber ValueShape = "number"
	ShapeHours  ValueShape = "hours"
	ShapeName   ValueShape = "name"
	ShapeWords  ValueShape = "words"
	ShapeLine   ValueShape = "line"
)

func (s ValueShape) valid() bool {
	switch s {
	case ShapeDate, ShapePhone, ShapeEmail, ShapeNumber, ShapeHours, ShapeName, ShapeWords, ShapeLine:
		return true
	}
	return false
}

// RegexParams configures a regex rule. The first capture group is the value.
type RegexParams struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

// KeywordParams configures a keyword-proximity rule
type KeywordParams struct {
	Keywords []string   `json:"keywords" yaml:"keywords"`
	Window   int        `json:"window,omitempty" yaml:"window,omitempty"` // chars after the keyword to search (0 = engine default)
	Shape    ValueShape `json:"shape" yaml:"shape"`
}

// PositionalParams configures a layout-slot rule
type PositionalParams struct {
	Line       int        `json:"line" yaml:"line"` // 0-based non-blank line within the span, negative counts from the end
	Shape      ValueShape `json:"shape" yaml:"shape"`
	HeaderOnly bool       `json:"header_only,omitempty" yaml:"header_only,omitempty"` // skip whole-document fallback spans
}

// Strategy is a tagged variant: exactly one parameter block matching Kind is set
type Strategy struct {
	Kind       StrategyKind      `json:"kind" yaml:"kind"`
	Regex      *RegexParams      `json:"regex,omitempty" yaml:"regex,omitempty"`
	Keyword    *KeywordParams    `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Positional *PositionalParams `json:"positional,omitempty" yaml:"positional,omitempty"`
}

// Validate checks that the variant tag and parameter blocks agree
func (s Strategy) Validate() error {
	set := 0
	if s.Regex != nil {
		set++
	}
	if s.Keyword != nil {
		set++
	}
	if s.Positional != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("strategy %q: exactly one parameter block must be set, got %d", s.Kind, set)
	}

	switch s.Kind {
	case StrategyRegex:
		if s.Regex == nil {
			return fmt.Errorf("strategy regex: missing regex parameters")
		}
		re, err := regexp.Compile(s.Regex.Pattern)
		if err != nil {
			return fmt.Errorf("strategy regex: %w", err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("strategy regex: pattern %q has no capture group", s.Regex.Pattern)
		}
	case StrategyKeywordProximity:
		if s.Keyword == nil {
			return fmt.Errorf("strategy keyword_proximity: missing keyword parameters")
		}
		if len(s.Keyword.Keywords) == 0 {
			return fmt.Errorf("strategy keyword_proximity: no keywords")
		}
		if s.Keyword.Window < 0 {
			return fmt.Errorf("strategy keyword_proximity: negative window")
		}
		if !s.Keyword.Shape.valid() {
			return fmt.Errorf("strategy keyword_proximity: unknown shape %q", s.Keyword.Shape)
		}
	case StrategyPositional:
		if s.Positional == nil {
			return fmt.Errorf("strategy positional: missing positional parameters")
		}
		if !s.Positional.Shape.valid() {
			return fmt.Errorf("strategy positional: unknown shape %q", s.Positional.Shape)
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
	return nil
}

// PatternRule is one extraction strategy for one field, with its learned trust
type PatternRule struct {
	ID           string                   `json:"id" yaml:"id"`
	Section      Section                  `json:"section" yaml:"section"`
	Field        string                   `json:"field" yaml:"field"`
	Description  string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Strategy     Strategy                 `json:"strategy" yaml:"strategy"`
	Weight       float64                  `json:"weight" yaml:"weight"`
	Affinity     map[DocumentType]float64 `json:"affinity,omitempty" yaml:"affinity,omitempty"`
	SuccessCount int                      `json:"success_count" yaml:"success_count"`
	FailureCount int                      `json:"failure_count" yaml:"failure_count"`
}

// Path returns the dotted field path this rule extracts
func (r PatternRule) Path() string {
	return FieldPath(r.Section, r.Field)
}

// AffinityFor returns the document-type multiplier. UNKNOWN and unlisted types get 1.0.
func (r PatternRule) AffinityFor(t DocumentType) float64 {
	if t == DocTypeUnknown || t == "" {
		return 1.0
	}
	if a, ok := r.Affinity[t]; ok {
		return a
	}
	return 1.0
}

// EffectiveWeight is the ranking key used during extraction: weight × affinity
func (r PatternRule) EffectiveWeight(t DocumentType) float64 {
	return r.Weight * r.AffinityFor(t)
}

// Clone returns a deep copy
func (r PatternRule) Clone() PatternRule {
	out := r
	if r.Affinity != nil {
		out.Affinity = make(map[DocumentType]float64, len(r.Affinity))
		for k, v := range r.Affinity {
			out.Affinity[k] = v
		}
	}
	if r.Strategy.Regex != nil {
		p := *r.Strategy.Regex
		out.Strategy.Regex = &p
	}
	if r.Strategy.Keyword != nil {
		p := *r.Strategy.Keyword
		p.Keywords = append([]string(nil), r.Strategy.Keyword.Keywords...)
		out.Strategy.Keyword = &p
	}
	if r.Strategy.Positional != nil {
		p := *r.Strategy.Positional
		out.Strategy.Positional = &p
	}
	return out
}

// Validate checks the rule against the schema and its own invariants
func (r PatternRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has empty id")
	}
	if _, ok := LookupField(r.Section, r.Field); !ok {
		return fmt.Errorf("rule %s: unknown field %s", r.ID, r.Path())
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("rule %s: weight %.3f outside [0,1]", r.ID, r.Weight)
	}
	for t, a := range r.Affinity {
		if !t.IsValid() {
			return fmt.Errorf("rule %s: affinity for unknown document type %q", r.ID, t)
		}
		if a < 0 {
			return fmt.Errorf("rule %s: negative affinity for %s", r.ID, t)
		}
	}
	if err := r.Strategy.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Span is a half-open byte range [Start, End) into normalized text.
// Header is the section header that opened the span; empty for the whole-document fallback.
type Span struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Header string `json:"header,omitempty"`
}

// FieldCandidate is one rule's proposal for a field value. Never persisted.
type FieldCandidate struct {
	Section       Section `json:"section"`
	Field         string  `json:"field"`
	Value         string  `json:"value"`
	RawConfidence float64 `json:"raw_confidence"`
	RuleID        string  `json:"rule_id"`
	Rank          int     `json:"rank"` // position of the rule in the field's ranking (0 = most trusted)
	Source        Span    `json:"source"`
}
