package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/intake/internal/model"
)

const report = `CLIENT INFORMATION
Name: Jane Doe
DOB: 1985-03-02

1. Medical History:
Diagnoses: whiplash; concussion

Symptoms
Pain locations: neck, lower back

Recommendations
Equipment: bath seat
Follow up: 6 weeks

Medical History
Allergies: penicillin`

func TestSegmentHeaders(t *testing.T) {
	s := New()
	spans := s.SegmentAll(report)

	demo := spans[model.SectionDemographics]
	require.Len(t, demo, 1)
	assert.Equal(t, "Name: Jane Doe\nDOB: 1985-03-02", report[demo[0].Start:demo[0].End])
	assert.Equal(t, "CLIENT INFORMATION", demo[0].Header)

	med := spans[model.SectionMedicalHistory]
	require.Len(t, med, 2, "restated sections keep every span")
	assert.Equal(t, "Diagnoses: whiplash; concussion", report[med[0].Start:med[0].End])
	assert.Equal(t, "Allergies: penicillin", report[med[1].Start:med[1].End])

	rec := spans[model.SectionRecommendations]
	require.Len(t, rec, 1)
	assert.Equal(t, "Equipment: bath seat\nFollow up: 6 weeks", report[rec[0].Start:rec[0].End])
}

func TestSegmentFallbackToWholeDocument(t *testing.T) {
	s := New()
	text := "Name: Jane Doe\nDOB: 1985-03-02"

	for _, sec := range model.Sections() {
		spans := s.Segment(text, sec)
		require.Len(t, spans, 1, sec)
		assert.Equal(t, model.Span{Start: 0, End: len(text)}, spans[0])
		assert.Empty(t, spans[0].Header)
	}

	// sections without a header fall back even when others have one
	spans := s.SegmentAll(report)
	env := spans[model.SectionEnvironmental]
	require.Len(t, env, 1)
	assert.Equal(t, 0, env[0].Start)
	assert.Equal(t, len(report), env[0].End)
}

func TestSegmentEmptyInput(t *testing.T) {
	s := New()
	assert.Empty(t, s.Segment("", model.SectionDemographics))
	assert.Empty(t, s.Segment("\n\n", model.SectionSymptoms))
}

func TestLabelLinesAreNotHeaders(t *testing.T) {
	s := New()
	text := "Plan: physiotherapy twice weekly\nSummary: improving"
	assert.Empty(t, s.Headers(text))
}

func TestHeaderNumberingAndCase(t *testing.T) {
	s := New()
	text := "A) ATTENDANT CARE NEEDS\nLevel 1: 10 hours\nii. summary:\nDoing well"
	assert.Equal(t, []string{"A) ATTENDANT CARE NEEDS", "ii. summary:"}, s.Headers(text))

	spans := s.SegmentAll(text)
	ac := spans[model.SectionAttendantCare]
	require.Len(t, ac, 1)
	assert.Equal(t, "Level 1: 10 hours", text[ac[0].Start:ac[0].End])
}
