package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/intake/internal/extract"
	"github.com/ppiankov/intake/internal/model"
)

// Aggregator reconciles field candidates into one value and confidence per field
type Aggregator struct{}

// NewAggregator creates a new aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate reduces the candidates of one field:
//   - agreement: the shared value with confidence 1 - ∏(1 - cᵢ)
//   - disagreement: the strongest candidate with its own confidence
//   - no candidates: nil value, confidence 0
func (a *Aggregator) Aggregate(candidates []model.FieldCandidate) model.FieldValue {
	v, _ := a.aggregate("", candidates)
	return v
}

// AggregateAll builds a complete result from per-section candidates.
// Every schema field is present; conflicts are reported as signals.
func (a *Aggregator) AggregateAll(all map[model.Section]extract.Candidates) (model.ExtractionResult, []model.Signal) {
	result := model.NewEmptyResult()
	var signals []model.Signal

	for _, spec := range model.Schema() {
		for _, f := range spec.Fields {
			path := model.FieldPath(spec.Name, f.ID)
			v, sig := a.aggregate(path, all[spec.Name][f.ID])
			result.Set(spec.Name, f.ID, v)
			if sig != nil {
				signals = append(signals, *sig)
			}
		}
	}
	return result, signals
}

// group is the set of candidates sharing one normalised value
type group struct {
	key        string
	candidates []model.FieldCandidate // strongest first
}

func (a *Aggregator) aggregate(path string, candidates []model.FieldCandidate) (model.FieldValue, *model.Signal) {
	cands := dedupe(candidates)
	if len(cands) == 0 {
		return model.FieldValue{}, nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return stronger(cands[i], cands[j]) })

	groups := groupByValue(cands)
	winner := cands[0]

	if len(groups) == 1 {
		miss := 1.0
		for _, c := range cands {
			miss *= 1 - clamp01(c.RawConfidence)
		}
		return model.FieldValue{
			Value:      winner.Value,
			Confidence: clamp01(1 - miss),
			Rules:      ruleIDs(cands),
		}, nil
	}

	var top group
	values := make([]string, 0, len(groups))
	for _, g := range groups {
		values = append(values, g.candidates[0].Value)
		if g.key == normalise(winner.Value) {
			top = g
		}
	}

	v := model.FieldValue{
		Value:      winner.Value,
		Confidence: clamp01(winner.RawConfidence),
		Rules:      ruleIDs(top.candidates),
	}
	return v, &model.Signal{
		Type:        model.SignalFieldConflict,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d candidate values disagree for %s", len(groups), path),
		Data: map[string]interface{}{
			"field":      path,
			"values":     values,
			"winner":     winner.Value,
			"rule":       winner.RuleID,
			"confidence": v.Confidence,
			"formula":    "max(candidate confidence), not combined when values disagree",
		},
	}
}

// dedupe keeps one candidate per (rule, normalised value): the one with the highest confidence
func dedupe(candidates []model.FieldCandidate) []model.FieldCandidate {
	best := make(map[string]int)
	var out []model.FieldCandidate
	for _, c := range candidates {
		key := c.RuleID + "\x00" + normalise(c.Value)
		if i, ok := best[key]; ok {
			if stronger(c, out[i]) {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}

// stronger orders candidates by confidence, then rule rank, then earliest span, then rule ID
func stronger(x, y model.FieldCandidate) bool {
	if x.RawConfidence != y.RawConfidence {
		return x.RawConfidence > y.RawConfidence
	}
	if x.Rank != y.Rank {
		return x.Rank < y.Rank
	}
	if x.Source.Start != y.Source.Start {
		return x.Source.Start < y.Source.Start
	}
	return x.RuleID < y.RuleID
}

// groupByValue partitions candidates (already strongest first) by normalised value
func groupByValue(cands []model.FieldCandidate) []group {
	index := make(map[string]int)
	var groups []group
	for _, c := range cands {
		key := normalise(c.Value)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{key: key})
		}
		groups[i].candidates = append(groups[i].candidates, c)
	}
	return groups
}

// normalise folds case, whitespace and trailing punctuation so equal values compare equal
func normalise(v string) string {
	v = strings.ToLower(strings.Join(strings.Fields(v), " "))
	return strings.TrimRight(v, ".,;: ")
}

func ruleIDs(cands []model.FieldCandidate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cands {
		if !seen[c.RuleID] {
			seen[c.RuleID] = true
			out = append(out, c.RuleID)
		}
	}
	return out
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
