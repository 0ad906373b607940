package training

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/patterns"
)

func newTestTrainer(t *testing.T, store Store) (*Trainer, *patterns.Bank) {
	t.Helper()
	bank, err := patterns.Load("")
	require.NoError(t, err)
	tr := NewTrainer(Deps{Bank: bank, Store: store}, model.DefaultConfig().Training)
	tr.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return tr, bank
}

func resultWithName(name string, rules ...string) model.ExtractionResult {
	r := model.NewEmptyResult()
	r.Set(model.SectionDemographics, "name", model.FieldValue{Value: name, Confidence: 0.72, Rules: rules})
	return r
}

func weightOf(t *testing.T, b *patterns.Bank, id string) model.PatternRule {
	t.Helper()
	r, ok := b.Rule(id)
	require.True(t, ok, "rule %s", id)
	return r
}

func TestTrainWithCorrection_NameFix(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	before := weightOf(t, bank, "demo.name.label")

	original := resultWithName("Jane D", "demo.name.label")
	corrected := model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}

	rec, err := tr.TrainWithCorrection(context.Background(), original, corrected, model.DocTypeOTAssessment,
		WithSourceText("Name: Jane D\nDOB: 1985-03-02"))
	require.NoError(t, err)

	assert.Equal(t, map[string]model.DiffEntry{
		"demographics.name": {OldValue: "Jane D", NewValue: "Jane Doe"},
	}, rec.Diff)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.SchemaVersion, rec.SchemaVersion)

	a := rec.Attribution["demographics.name"]
	assert.Equal(t, []string{"demo.name.label"}, a.Failed)
	assert.Empty(t, a.Succeeded)
	assert.False(t, a.Unverified)
	assert.Equal(t, []string{"demographics.name"}, rec.CoverageGaps())

	after := weightOf(t, bank, "demo.name.label")
	assert.InDelta(t, before.Weight-0.1, after.Weight, 1e-9)
	assert.Equal(t, before.FailureCount+1, after.FailureCount)
	assert.InDelta(t, 0.95, after.AffinityFor(model.DocTypeOTAssessment), 1e-9)

	stored, err := tr.Store().Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Diff, stored.Diff)
}

func TestTrainWithCorrection_CreditsAlternativeRule(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	reBefore := weightOf(t, bank, "demo.name.re")

	text := "Re: Jane Doe\nName: Jane D"
	original := resultWithName("Jane D", "demo.name.label")
	corrected := model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}

	rec, err := tr.TrainWithCorrection(context.Background(), original, corrected, model.DocTypeReferral, WithSourceText(text))
	require.NoError(t, err)

	a := rec.Attribution["demographics.name"]
	assert.Equal(t, []string{"demo.name.label"}, a.Failed)
	assert.Equal(t, []string{"demo.name.re"}, a.Succeeded)
	assert.Empty(t, rec.CoverageGaps())

	reAfter := weightOf(t, bank, "demo.name.re")
	assert.InDelta(t, reBefore.Weight+0.05, reAfter.Weight, 1e-9)
	assert.Equal(t, reBefore.SuccessCount+1, reAfter.SuccessCount)
	assert.InDelta(t, 1.35, reAfter.AffinityFor(model.DocTypeReferral), 1e-9)
}

func TestTrainWithCorrection_NilOriginal(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	fp := bank.Fingerprint()

	_, err := tr.TrainWithCorrection(context.Background(), nil,
		model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeUnknown)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))

	recs, err := tr.Store().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, fp, bank.Fingerprint())
}

func TestTrainWithCorrection_MalformedCorrection(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	fp := bank.Fingerprint()

	_, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label"),
		model.Correction{model.SectionDemographics: {"nickname": "JD"}}, model.DocTypeUnknown)
	assert.True(t, model.IsValidationError(err))
	assert.Equal(t, fp, bank.Fingerprint())
}

type failingStore struct{ MemoryStore }

func (s *failingStore) Append(context.Context, model.TrainingRecord) error {
	return errors.New("disk full")
}

func TestTrainWithCorrection_StoreFailureLeavesBank(t *testing.T) {
	tr, bank := newTestTrainer(t, &failingStore{})
	fp := bank.Fingerprint()

	_, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label"),
		model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeUnknown,
		WithSourceText("Name: Jane D"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, model.IsValidationError(err))
	assert.Equal(t, fp, bank.Fingerprint())
}

func TestTrainWithCorrection_WithoutSource(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	before := weightOf(t, bank, "demo.name.label")

	rec, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label", "removed.rule"),
		model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeUnknown)
	require.NoError(t, err)

	a := rec.Attribution["demographics.name"]
	assert.True(t, a.Unverified)
	assert.Equal(t, []string{"demo.name.label"}, a.Failed)
	assert.Empty(t, rec.CoverageGaps())

	after := weightOf(t, bank, "demo.name.label")
	assert.InDelta(t, before.Weight-0.1, after.Weight, 1e-9)
	// UNKNOWN never learns affinity
	assert.Empty(t, after.Affinity)
}

type staticSources map[string]string

func (s staticSources) Source(r model.ExtractionResult) (string, bool) {
	v, _ := r.Get(model.SectionDemographics, "name")
	name, _ := v.Value.(string)
	text, ok := s[name]
	return text, ok
}

func TestTrainWithCorrection_SourceLookup(t *testing.T) {
	bank, err := patterns.Load("")
	require.NoError(t, err)
	tr := NewTrainer(Deps{Bank: bank, Sources: staticSources{"Jane D": "Re: Jane Doe\nName: Jane D"}}, model.DefaultConfig().Training)

	rec, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label"),
		model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeUnknown)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo.name.re"}, rec.Attribution["demographics.name"].Succeeded)
}

func TestTrainWithCorrection_UnchangedFieldsNotDiffed(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	fp := bank.Fingerprint()

	rec, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane Doe", "demo.name.label"),
		model.Correction{model.SectionDemographics: {"name": " Jane Doe "}}, model.DocTypeUnknown)
	require.NoError(t, err)
	assert.Empty(t, rec.Diff)
	assert.Empty(t, rec.Attribution)
	// the record is still persisted but nothing moves
	assert.Equal(t, fp, bank.Fingerprint())

	recs, err := tr.Store().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestTrainWithCorrection_BlankEqualsMissing(t *testing.T) {
	tr, _ := newTestTrainer(t, nil)

	rec, err := tr.TrainWithCorrection(context.Background(), model.NewEmptyResult(),
		model.Correction{model.SectionDemographics: {"name": "", "dob": "   ", "address": nil}}, model.DocTypeUnknown)
	require.NoError(t, err)
	assert.Empty(t, rec.Diff)

	// null against a value still clears it
	rec, err = tr.TrainWithCorrection(context.Background(), resultWithName("Jane Doe", "demo.name.label"),
		model.Correction{model.SectionDemographics: {"name": nil}}, model.DocTypeUnknown)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.DiffEntry{
		"demographics.name": {OldValue: "Jane Doe", NewValue: nil},
	}, rec.Diff)
}

func TestDiff_RoundTrip(t *testing.T) {
	original := model.NewEmptyResult()
	original.Set(model.SectionDemographics, "name", model.FieldValue{Value: "Jane D", Confidence: 0.7})
	original.Set(model.SectionDemographics, "email", model.FieldValue{Value: "jd@example.com", Confidence: 0.5})
	original.Set(model.SectionMedicalHistory, "diagnoses", model.FieldValue{Value: []string{"whiplash"}, Confidence: 0.6})

	corrected := model.Correction{
		model.SectionDemographics:   {"name": "Jane Doe", "email": nil, "phone": "555-123-4567"},
		model.SectionMedicalHistory: {"diagnoses": []any{"whiplash"}},
	}

	diff := Diff(original, corrected)
	assert.Len(t, diff, 3)
	assert.NotContains(t, diff, "medical_history.diagnoses")

	replayed := original.Clone()
	for section, fields := range corrected {
		for id := range fields {
			d, ok := diff[model.FieldPath(section, id)]
			if !ok {
				continue
			}
			replayed.Set(section, id, model.FieldValue{Value: d.NewValue})
		}
	}
	for section, fields := range corrected {
		for id, want := range fields {
			got, _ := replayed.Get(section, id)
			assert.True(t, model.ValuesEqual(want, got.Value), "%s.%s: want %v got %v", section, id, want, got.Value)
		}
	}
}

func TestTrainWithCorrection_WeightsStayBounded(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	// enough rounds to drive every weight and affinity into its bounds
	for i := 0; i < 25; i++ {
		_, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label"),
			model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeReferral,
			WithSourceText("Re: Jane Doe\nName: Jane D"))
		require.NoError(t, err)
	}
	label := weightOf(t, bank, "demo.name.label")
	re := weightOf(t, bank, "demo.name.re")
	assert.InDelta(t, 0.0, label.Weight, 1e-9)
	assert.InDelta(t, 1.0, re.Weight, 1e-9)
	assert.Equal(t, 25, label.FailureCount)
	assert.GreaterOrEqual(t, label.AffinityFor(model.DocTypeReferral), 0.0)
	assert.InDelta(t, 0.0, label.AffinityFor(model.DocTypeReferral), 1e-9)
	assert.LessOrEqual(t, re.AffinityFor(model.DocTypeReferral), 2.0)
	assert.InDelta(t, 2.0, re.AffinityFor(model.DocTypeReferral), 1e-9)
}

func TestTrainWithCorrection_ConcurrentUpdatesNotLost(t *testing.T) {
	tr, bank := newTestTrainer(t, nil)
	before := weightOf(t, bank, "demo.name.label")

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.TrainWithCorrection(context.Background(), resultWithName("Jane D", "demo.name.label"),
				model.Correction{model.SectionDemographics: {"name": "Jane Doe"}}, model.DocTypeUnknown)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	after := weightOf(t, bank, "demo.name.label")
	assert.Equal(t, before.FailureCount+n, after.FailureCount)
	assert.InDelta(t, before.Weight-0.1*n, after.Weight, 1e-9)

	recs, err := tr.Store().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, n)
}
