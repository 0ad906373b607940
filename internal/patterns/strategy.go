package patterns

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/intake/internal/model"
)

// DefaultKeywordWindow is the search window after a keyword when neither the rule nor the caller sets one
const DefaultKeywordWindow = 60

const (
	specificityBase     = 0.55
	specificityLabelled = 0.30
	specificityAnchored = 0.15
	keywordFactor       = 0.85
	positionalFactor    = 0.35
)

var flagPrefix = regexp.MustCompile(`^\(\?[a-zA-Z]+\)`)

// compiled holds the regexes a rule needs at evaluation time. Shared between snapshots, never mutated.
type compiled struct {
	re       *regexp.Regexp // regex strategy
	anchored bool           // regex pattern starts with ^
	keyword  *regexp.Regexp // keyword_proximity strategy: alternation of all keywords
}

func compile(r model.PatternRule) (*compiled, error) {
	c := &compiled{}
	switch r.Strategy.Kind {
	case model.StrategyRegex:
		re, err := regexp.Compile(r.Strategy.Regex.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		c.re = re
		c.anchored = strings.HasPrefix(flagPrefix.ReplaceAllString(r.Strategy.Regex.Pattern, ""), "^")
	case model.StrategyKeywordProximity:
		alts := make([]string, 0, len(r.Strategy.Keyword.Keywords))
		for _, kw := range r.Strategy.Keyword.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			alts = append(alts, keywordPattern(kw))
		}
		if len(alts) == 0 {
			return nil, fmt.Errorf("rule %s: no usable keywords", r.ID)
		}
		re, err := regexp.Compile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		c.keyword = re
	case model.StrategyPositional:
		// nothing to compile, shapes are package level
	default:
		return nil, fmt.Errorf("rule %s: unknown strategy kind %q", r.ID, r.Strategy.Kind)
	}
	return c, nil
}

// keywordPattern quotes kw and adds word boundaries on the sides that end in a word character
func keywordPattern(kw string) string {
	p := regexp.QuoteMeta(kw)
	if isWordByte(kw[0]) {
		p = `\b` + p
	}
	if isWordByte(kw[len(kw)-1]) {
		p += `\b`
	}
	return p
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Evaluator runs rule strategies against spans of normalized text.
// The zero value uses DefaultKeywordWindow.
type Evaluator struct {
	KeywordWindow int
}

// Evaluate runs one rule against one span and returns at most one candidate.
// Rank is left for the caller to fill in.
func (e Evaluator) Evaluate(r RankedRule, text string, span model.Span) (model.FieldCandidate, bool) {
	if span.Start < 0 || span.End > len(text) || span.Start >= span.End || r.c == nil {
		return model.FieldCandidate{}, false
	}
	sub := text[span.Start:span.End]

	var (
		value      string
		start, end int
		conf       float64
		ok         bool
	)
	switch r.Rule.Strategy.Kind {
	case model.StrategyRegex:
		value, start, end, conf, ok = evalRegex(r.c, sub)
	case model.StrategyKeywordProximity:
		value, start, end, conf, ok = e.evalKeyword(r.c, r.Rule.Strategy.Keyword, sub)
	case model.StrategyPositional:
		value, start, end, conf, ok = evalPositional(r.Rule.Strategy.Positional, sub, span.Header != "")
	}
	if !ok {
		return model.FieldCandidate{}, false
	}

	return model.FieldCandidate{
		Section:       r.Rule.Section,
		Field:         r.Rule.Field,
		Value:         value,
		RawConfidence: clamp01(r.Rule.Weight * conf),
		RuleID:        r.Rule.ID,
		Source:        model.Span{Start: span.Start + start, End: span.Start + end, Header: span.Header},
	}, true
}

// eachMatch calls fn on successive matches of re in s until fn returns true.
// Matches are found in growing batches so a hit near the start does not scan the whole text.
func eachMatch(re *regexp.Regexp, s string, fn func(loc []int) bool) {
	seen := 0
	for n := 1; ; n *= 4 {
		locs := re.FindAllStringSubmatchIndex(s, n)
		for _, loc := range locs[seen:] {
			if fn(loc) {
				return
			}
		}
		if len(locs) < n {
			return
		}
		seen = len(locs)
	}
}

func evalRegex(c *compiled, sub string) (value string, start, end int, conf float64, ok bool) {
	eachMatch(c.re, sub, func(loc []int) bool {
		if len(loc) < 4 || loc[2] < 0 {
			return false
		}
		if value = cleanValue(sub[loc[2]:loc[3]]); value == "" {
			return false
		}
		start, end, ok = loc[2], loc[3], true
		conf = specificity(sub[loc[0]:loc[2]], c.anchored)
		return true
	})
	return value, start, end, conf, ok
}

// specificity grows with how strongly the match is anchored: a label inside the match
// before the value, and a line anchor
func specificity(prefix string, anchored bool) float64 {
	s := specificityBase
	if strings.IndexFunc(prefix, unicode.IsLetter) >= 0 {
		s += specificityLabelled
	}
	if anchored {
		s += specificityAnchored
	}
	if s > 1 {
		s = 1
	}
	return s
}

func (e Evaluator) evalKeyword(c *compiled, p *model.KeywordParams, sub string) (string, int, int, float64, bool) {
	window := p.Window
	if window <= 0 {
		window = e.KeywordWindow
	}
	if window <= 0 {
		window = DefaultKeywordWindow
	}

	var (
		value      string
		start, end int
		conf       float64
		found      bool
	)
	eachMatch(c.keyword, sub, func(loc []int) bool {
		after := sub[loc[1]:]
		if lineAnchored(p.Shape) {
			if i := strings.IndexByte(after, '\n'); i >= 0 {
				after = after[:i]
			}
		} else {
			after = cutWindow(after, window)
		}

		v, vs, ve, ok := findShape(p.Shape, after)
		if !ok {
			return false
		}
		// line-anchored shapes start right after the separator, so distance is the separator length
		distance := vs
		if distance > window {
			distance = window
		}
		decay := 1 - float64(distance)/float64(2*window)
		value, start, end, conf, found = v, loc[1]+vs, loc[1]+ve, keywordFactor*decay, true
		return true
	})
	return value, start, end, conf, found
}

// cutWindow keeps the first n bytes of s, extended to the end of the token it cuts through
func cutWindow(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end < len(s) && s[end] != ' ' && s[end] != '\n' && s[end] != '\t' {
		end++
	}
	return s[:end]
}

func evalPositional(p *model.PositionalParams, sub string, headed bool) (string, int, int, float64, bool) {
	if p.HeaderOnly && !headed {
		return "", 0, 0, 0, false
	}

	type line struct {
		text  string
		start int
	}
	var lines []line
	off := 0
	for _, l := range strings.Split(sub, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, line{text: l, start: off})
		}
		off += len(l) + 1
	}

	idx := p.Line
	if idx < 0 {
		idx = len(lines) + idx
	}
	if idx < 0 || idx >= len(lines) {
		return "", 0, 0, 0, false
	}
	l := lines[idx]
	if !matchesLine(p.Shape, l.text) {
		return "", 0, 0, 0, false
	}
	value := cleanValue(l.text)
	if value == "" {
		return "", 0, 0, 0, false
	}
	lead := strings.Index(l.text, value)
	if lead < 0 {
		lead = 0
	}
	return value, l.start + lead, l.start + lead + len(value), positionalFactor, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
