package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentType(t *testing.T) {
	tests := []struct {
		in      string
		want    DocumentType
		wantErr bool
	}{
		{in: "OT_ASSESSMENT", want: DocTypeOTAssessment},
		{in: "ot-assessment", want: DocTypeOTAssessment},
		{in: " referral ", want: DocTypeReferral},
		{in: "medical record", want: DocTypeMedicalRecord},
		{in: "unknown", want: DocTypeUnknown},
		{in: "INVOICE", want: DocTypeUnknown, wantErr: true},
		{in: "", want: DocTypeUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDocumentType(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewEmptyResult_ContainsEverySchemaField(t *testing.T) {
	result := NewEmptyResult()

	for _, sec := range Schema() {
		fields, ok := result[sec.Name]
		require.True(t, ok, "missing section %s", sec.Name)
		assert.Len(t, fields, len(sec.Fields))
		for _, f := range sec.Fields {
			v, ok := fields[f.ID]
			require.True(t, ok, "missing field %s", FieldPath(sec.Name, f.ID))
			assert.Nil(t, v.Value)
			assert.Zero(t, v.Confidence)
			assert.True(t, v.IsEmpty())
		}
	}
}

func TestSchema_FieldIDsUniquePerSection(t *testing.T) {
	for _, sec := range Schema() {
		seen := map[string]bool{}
		for _, f := range sec.Fields {
			assert.False(t, seen[f.ID], "duplicate field %s in %s", f.ID, sec.Name)
			seen[f.ID] = true
		}
	}
}

func TestCanonicalValue(t *testing.T) {
	assert.Nil(t, CanonicalValue(nil))
	assert.Nil(t, CanonicalValue("   "))
	assert.Equal(t, "Jane Doe", CanonicalValue("  Jane Doe "))
	assert.Equal(t, []string{"a", "b"}, CanonicalValue([]string{" a", "", "b "}))
	assert.Equal(t, []string{"a", "b"}, CanonicalValue([]any{"a", "b"}))
	assert.Nil(t, CanonicalValue([]string{" ", ""}))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual("Jane Doe", " Jane Doe"))
	assert.True(t, ValuesEqual(nil, ""))
	assert.True(t, ValuesEqual([]string{"a", "b"}, []any{"a", "b"}))
	assert.False(t, ValuesEqual("Jane D", "Jane Doe"))
	assert.False(t, ValuesEqual([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, ValuesEqual("a", []string{"a"}))
}

func TestCheckValue(t *testing.T) {
	assert.NoError(t, CheckValue(nil))
	assert.NoError(t, CheckValue("x"))
	assert.NoError(t, CheckValue([]any{"x"}))
	assert.Error(t, CheckValue(42.0))
	assert.Error(t, CheckValue([]any{"x", 1.0}))
	assert.Error(t, CheckValue(map[string]any{}))
}

func TestStrategyValidate(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		wantErr  bool
	}{
		{
			name:     "regex with group",
			strategy: Strategy{Kind: StrategyRegex, Regex: &RegexParams{Pattern: `(?i)name:\s*(.+)`}},
		},
		{
			name:     "regex without group",
			strategy: Strategy{Kind: StrategyRegex, Regex: &RegexParams{Pattern: `name:`}},
			wantErr:  true,
		},
		{
			name:     "regex that does not compile",
			strategy: Strategy{Kind: StrategyRegex, Regex: &RegexParams{Pattern: `(`}},
			wantErr:  true,
		},
		{
			name:     "keyword",
			strategy: Strategy{Kind: StrategyKeywordProximity, Keyword: &KeywordParams{Keywords: []string{"dob"}, Shape: ShapeDate}},
		},
		{
			name:     "keyword with bad shape",
			strategy: Strategy{Kind: StrategyKeywordProximity, Keyword: &KeywordParams{Keywords: []string{"dob"}, Shape: "colour"}},
			wantErr:  true,
		},
		{
			name:     "positional",
			strategy: Strategy{Kind: StrategyPositional, Positional: &PositionalParams{Line: 0, Shape: ShapeName}},
		},
		{
			name:     "tag does not match block",
			strategy: Strategy{Kind: StrategyRegex, Positional: &PositionalParams{Line: 0, Shape: ShapeName}},
			wantErr:  true,
		},
		{
			name: "two blocks",
			strategy: Strategy{
				Kind:       StrategyPositional,
				Regex:      &RegexParams{Pattern: `(x)`},
				Positional: &PositionalParams{Shape: ShapeName},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.strategy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPatternRule_EffectiveWeight(t *testing.T) {
	rule := PatternRule{
		ID:       "r1",
		Weight:   0.8,
		Affinity: map[DocumentType]float64{DocTypeReferral: 1.5, DocTypeMedicalRecord: 0.5},
	}

	assert.InDelta(t, 1.2, rule.EffectiveWeight(DocTypeReferral), 1e-9)
	assert.InDelta(t, 0.4, rule.EffectiveWeight(DocTypeMedicalRecord), 1e-9)
	assert.InDelta(t, 0.8, rule.EffectiveWeight(DocTypeOTAssessment), 1e-9)
	assert.InDelta(t, 0.8, rule.EffectiveWeight(DocTypeUnknown), 1e-9)
}

func TestPatternRule_CloneIsDeep(t *testing.T) {
	rule := PatternRule{
		ID:       "r1",
		Affinity: map[DocumentType]float64{DocTypeReferral: 1.5},
		Strategy: Strategy{Kind: StrategyKeywordProximity, Keyword: &KeywordParams{Keywords: []string{"a"}, Shape: ShapeWords}},
	}
	cp := rule.Clone()
	cp.Affinity[DocTypeReferral] = 0
	cp.Strategy.Keyword.Keywords[0] = "b"

	assert.Equal(t, 1.5, rule.Affinity[DocTypeReferral])
	assert.Equal(t, "a", rule.Strategy.Keyword.Keywords[0])
}

func TestTrainingRecord_CoverageGaps(t *testing.T) {
	rec := &TrainingRecord{
		Diff: map[string]DiffEntry{
			"demographics.name": {OldValue: "Jane D", NewValue: "Jane Doe"},
			"demographics.dob":  {OldValue: nil, NewValue: "1985-03-02"},
		},
		Attribution: map[string]Attribution{
			"demographics.name": {Failed: []string{"r1"}, Succeeded: []string{"r2"}},
		},
	}
	assert.Equal(t, []string{"demographics.dob"}, rec.CoverageGaps())

	rec.Diff["demographics.email"] = DiffEntry{OldValue: "x@y.com", NewValue: nil}
	rec.Diff["demographics.phone"] = DiffEntry{OldValue: nil, NewValue: "416-555-0100"}
	rec.Attribution["demographics.phone"] = Attribution{Unverified: true}
	assert.Equal(t, []string{"demographics.dob"}, rec.CoverageGaps(), "cleared and unverified fields are not gaps")
}
