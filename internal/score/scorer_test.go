package score

import (
	"math"
	"testing"

	"github.com/ppiankov/intake/internal/extract"
	"github.com/ppiankov/intake/internal/model"
)

func cand(rule, value string, conf float64, rank, start int) model.FieldCandidate {
	return model.FieldCandidate{
		Section:       model.SectionDemographics,
		Field:         "name",
		Value:         value,
		RawConfidence: conf,
		RuleID:        rule,
		Rank:          rank,
		Source:        model.Span{Start: start, End: start + len(value)},
	}
}

func TestAggregate_AgreementCorroborates(t *testing.T) {
	a := NewAggregator()

	// Two rules agree: 1 - (1-0.4)(1-0.3) = 0.58
	got := a.Aggregate([]model.FieldCandidate{
		cand("r1", "Jane Doe", 0.4, 0, 0),
		cand("r2", "jane  doe", 0.3, 1, 20),
	})

	if got.Value != "Jane Doe" {
		t.Errorf("Expected value of the strongest candidate, got %v", got.Value)
	}
	if got.Confidence <= 0.4 {
		t.Errorf("Expected corroborated confidence > 0.4, got %f", got.Confidence)
	}
	if got.Confidence > 1.0 {
		t.Errorf("Expected confidence <= 1.0, got %f", got.Confidence)
	}
	if math.Abs(got.Confidence-0.58) > 1e-9 {
		t.Errorf("Expected 0.58, got %f", got.Confidence)
	}
	if len(got.Rules) != 2 || got.Rules[0] != "r1" || got.Rules[1] != "r2" {
		t.Errorf("Expected rules [r1 r2], got %v", got.Rules)
	}
}

func TestAggregate_DisagreementNotInflated(t *testing.T) {
	a := NewAggregator()

	got := a.Aggregate([]model.FieldCandidate{
		cand("r2", "Jane D", 0.3, 1, 0),
		cand("r1", "Jane Doe", 0.6, 0, 10),
	})

	if got.Value != "Jane Doe" {
		t.Errorf("Expected Jane Doe, got %v", got.Value)
	}
	if got.Confidence != 0.6 {
		t.Errorf("Expected confidence exactly 0.6, got %f", got.Confidence)
	}
	if len(got.Rules) != 1 || got.Rules[0] != "r1" {
		t.Errorf("Expected only the winning rule, got %v", got.Rules)
	}
}

func TestAggregate_Empty(t *testing.T) {
	a := NewAggregator()

	got := a.Aggregate(nil)
	if got.Value != nil || got.Confidence != 0 {
		t.Errorf("Expected {nil, 0}, got %+v", got)
	}
}

func TestAggregate_SameRuleCountsOnce(t *testing.T) {
	a := NewAggregator()

	// One rule matching in two restated spans is not independent evidence
	got := a.Aggregate([]model.FieldCandidate{
		cand("r1", "Jane Doe", 0.5, 0, 0),
		cand("r1", "Jane Doe", 0.4, 0, 40),
	})

	if got.Confidence != 0.5 {
		t.Errorf("Expected 0.5, got %f", got.Confidence)
	}
}

func TestAggregate_TieBreakByRankThenPosition(t *testing.T) {
	a := NewAggregator()

	got := a.Aggregate([]model.FieldCandidate{
		cand("b", "Second", 0.5, 1, 0),
		cand("a", "First", 0.5, 0, 30),
	})
	if got.Value != "First" {
		t.Errorf("Expected the better-ranked rule to win a tie, got %v", got.Value)
	}

	got = a.Aggregate([]model.FieldCandidate{
		cand("a", "Later", 0.5, 0, 30),
		cand("a", "Earlier", 0.5, 0, 5),
	})
	if got.Value != "Earlier" {
		t.Errorf("Expected the earlier span to win a tie, got %v", got.Value)
	}
}

func TestAggregate_ConfidenceBounded(t *testing.T) {
	a := NewAggregator()

	var cands []model.FieldCandidate
	for i, r := range []string{"a", "b", "c", "d", "e", "f"} {
		cands = append(cands, cand(r, "X", 0.99, i, 0))
	}
	got := a.Aggregate(cands)
	if got.Confidence < 0 || got.Confidence > 1 {
		t.Errorf("Expected confidence in [0,1], got %f", got.Confidence)
	}
}

func TestAggregateAll_CompleteResultAndSignals(t *testing.T) {
	a := NewAggregator()

	all := map[model.Section]extract.Candidates{
		model.SectionDemographics: {
			"name": {cand("r1", "Jane Doe", 0.6, 0, 0), cand("r2", "John Roe", 0.3, 1, 30)},
		},
	}
	result, signals := a.AggregateAll(all)

	for _, spec := range model.Schema() {
		for _, f := range spec.Fields {
			v, ok := result.Get(spec.Name, f.ID)
			if !ok {
				t.Errorf("Expected %s.%s to be present", spec.Name, f.ID)
			}
			if v.Confidence < 0 || v.Confidence > 1 {
				t.Errorf("Confidence out of range for %s.%s: %f", spec.Name, f.ID, v.Confidence)
			}
		}
	}

	if len(signals) != 1 {
		t.Fatalf("Expected 1 conflict signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != model.SignalFieldConflict {
		t.Errorf("Expected field_conflict signal, got %s", sig.Type)
	}
	if sig.Data["field"] != "demographics.name" {
		t.Errorf("Expected field demographics.name, got %v", sig.Data["field"])
	}
	if _, ok := sig.Data["formula"]; !ok {
		t.Error("Expected formula in signal data")
	}
}
