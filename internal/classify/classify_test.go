package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intake/internal/model"
)

const referralLetter = `Dear Ms. Smith,
Re: Jane Doe
Claim No: AB-123456
Thank you for agreeing to see this client. We are referring her for an in-depth review.
Please arrange an assessment at your earliest convenience.
Sincerely,
Adjuster`

const otReport = `Occupational Therapy In-Home Assessment
Functional Status
Mobility: walks with a cane
Attendant Care Needs
Level 1: 10 hours per week
Environmental Assessment
Dwelling: bungalow`

const clinicNote = `Consultation Note
Chief Complaint: neck pain
History of Present Illness: MVA on 2023-01-04
On examination: reduced range of motion
Plan: physiotherapy`

func TestClassify(t *testing.T) {
	c := New(0)

	tests := []struct {
		name string
		text string
		want model.DocumentType
	}{
		{"referral letter", referralLetter, model.DocTypeReferral},
		{"ot assessment", otReport, model.DocTypeOTAssessment},
		{"medical record", clinicNote, model.DocTypeMedicalRecord},
		{"plain fields", "Name: Jane Doe\nDOB: 1985-03-02", model.DocTypeUnknown},
		{"empty", "", model.DocTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf := c.Classify(tt.text)
			assert.Equal(t, tt.want, got)
			if tt.want == model.DocTypeUnknown {
				assert.Equal(t, 0.0, conf)
			} else {
				assert.GreaterOrEqual(t, conf, DefaultThreshold)
				assert.LessOrEqual(t, conf, 1.0)
			}
		})
	}
}

func TestClassifyTieIsUnknown(t *testing.T) {
	// one strong cue per type at equal weight
	text := "Referral\nDischarge summary"
	c := New(0.3)
	got, conf := c.Classify(text)
	assert.Equal(t, model.DocTypeUnknown, got)
	assert.Equal(t, 0.0, conf)
}

func TestScoresCombineIndependently(t *testing.T) {
	c := New(0)
	scores := c.Scores("Dear Sir,\nRe: Jane Doe")
	require.NotEmpty(t, scores)
	assert.Equal(t, model.DocTypeReferral, scores[0].Type)
	// 1 - (1-0.25)(1-0.25)
	assert.InDelta(t, 0.4375, scores[0].Score, 1e-9)
	assert.ElementsMatch(t, []string{"salutation", "re_line"}, scores[0].Matched)
}

func TestResolve(t *testing.T) {
	c := New(0)

	res := c.Resolve("Name: Jane Doe", model.DocTypeReferral)
	assert.Equal(t, model.DocTypeReferral, res.Type)
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.Hinted)
	assert.Empty(t, res.Signals)

	res = c.Resolve(referralLetter, "")
	assert.Equal(t, model.DocTypeReferral, res.Type)
	assert.False(t, res.Hinted)

	res = c.Resolve("Name: Jane Doe", model.DocTypeUnknown)
	assert.Equal(t, model.DocTypeUnknown, res.Type)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, model.SignalUnclassified, res.Signals[0].Type)

	res = c.Resolve(referralLetter, "INVOICE")
	assert.Equal(t, model.DocTypeUnknown, res.Type)
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.Degraded)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, model.SignalDegradedHint, res.Signals[0].Type)
	assert.Equal(t, model.SeverityWarning, res.Signals[0].Severity)
}
