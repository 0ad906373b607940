package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/patterns"
)

// maxTextValue caps free-text values; longer captures are runaway matches
const maxTextValue = 500

// base provides kind-level validation shared by all sections.
// Section extractors add field-level checks on top.
type base struct {
	section model.Section
	fields  []model.FieldSpec
	checks  map[string]func(string) bool
}

func newBase(section model.Section) *base {
	spec, _ := model.LookupSection(section)
	return &base{section: section, fields: spec.Fields, checks: make(map[string]func(string) bool)}
}

func (b *base) Section() model.Section {
	return b.section
}

func (b *base) Fields() []model.FieldSpec {
	return append([]model.FieldSpec(nil), b.fields...)
}

func (b *base) Accept(field model.FieldSpec, value string) bool {
	if !acceptKind(field.Kind, value) {
		return false
	}
	if check, ok := b.checks[field.ID]; ok {
		return check(value)
	}
	return true
}

var digitsOnly = regexp.MustCompile(`\D`)

// acceptKind checks that a value has the coarse shape its field kind requires
func acceptKind(kind model.FieldKind, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch kind {
	case model.KindDate:
		return patterns.Matches(model.ShapeDate, value) && calendarDate(value)
	case model.KindNumber:
		_, ok := parseNumber(value)
		return ok
	case model.KindPhone:
		n := len(digitsOnly.ReplaceAllString(value, ""))
		return n >= 10 && n <= 15
	case model.KindEmail:
		return patterns.Matches(model.ShapeEmail, value)
	case model.KindName:
		words := strings.Fields(value)
		if len(words) == 0 || len(words) > 6 {
			return false
		}
		return strings.IndexFunc(value, unicode.IsDigit) < 0 && strings.IndexFunc(value, unicode.IsLetter) >= 0
	case model.KindList:
		return len(value) <= maxTextValue
	default:
		return len(value) <= maxTextValue && strings.IndexFunc(value, unicode.IsLetter) >= 0
	}
}

func parseNumber(value string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "$"))
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numberBetween(lo, hi float64) func(string) bool {
	return func(v string) bool {
		f, ok := parseNumber(v)
		return ok && f >= lo && f <= hi
	}
}

var isoStart = regexp.MustCompile(`^\d{4}-`)

// calendarDate rejects numeric dates that name no real day, such as 13/13/1985 or 1985-02-30.
// Slash dates are read month first, then day first when the month is out of range.
func calendarDate(v string) bool {
	if strings.IndexFunc(v, unicode.IsLetter) >= 0 {
		return true
	}
	if !isoStart.MatchString(v) {
		v = strings.ReplaceAll(v, "-", "/")
	}
	_, err := dateparse.ParseIn(v, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
	return err == nil
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// yearBetween accepts dates whose four-digit year lies in [lo, current year].
// Two-digit years are left to the enhancer.
func yearBetween(lo int) func(string) bool {
	return func(v string) bool {
		m := yearPattern.FindStringSubmatch(v)
		if m == nil {
			return true
		}
		y, _ := strconv.Atoi(m[1])
		return y >= lo && y <= time.Now().Year()
	}
}

// DemographicsExtractor fills the client identification block
type DemographicsExtractor struct{ *base }

// NewDemographicsExtractor creates the demographics extractor
func NewDemographicsExtractor() *DemographicsExtractor {
	b := newBase(model.SectionDemographics)
	b.checks["dob"] = yearBetween(1900)
	b.checks["date_of_loss"] = yearBetween(1950)
	b.checks["name"] = notHeaderWord
	b.checks["gender"] = func(v string) bool { return len(v) <= 20 }
	return &DemographicsExtractor{b}
}

var headerWords = map[string]bool{
	"client information": true, "patient information": true, "occupational therapy": true,
	"medical history": true, "in home assessment": true, "to whom": true,
}

// notHeaderWord rejects names that are really document or section titles
func notHeaderWord(v string) bool {
	return !headerWords[strings.ToLower(strings.ReplaceAll(v, "-", " "))]
}

// MedicalHistoryExtractor fills diagnoses, medications and prior history
type MedicalHistoryExtractor struct{ *base }

// NewMedicalHistoryExtractor creates the medical history extractor
func NewMedicalHistoryExtractor() *MedicalHistoryExtractor {
	b := newBase(model.SectionMedicalHistory)
	b.checks["family_physician"] = notHeaderWord
	return &MedicalHistoryExtractor{b}
}

// SymptomsExtractor fills reported symptoms
type SymptomsExtractor struct{ *base }

// NewSymptomsExtractor creates the symptoms extractor
func NewSymptomsExtractor() *SymptomsExtractor {
	b := newBase(model.SectionSymptoms)
	b.checks["pain_severity"] = numberBetween(0, 10)
	return &SymptomsExtractor{b}
}

// FunctionalStatusExtractor fills mobility, self care and work status
type FunctionalStatusExtractor struct{ *base }

// NewFunctionalStatusExtractor creates the functional status extractor
func NewFunctionalStatusExtractor() *FunctionalStatusExtractor {
	return &FunctionalStatusExtractor{newBase(model.SectionFunctionalStatus)}
}

// EnvironmentalExtractor fills the home environment block
type EnvironmentalExtractor struct{ *base }

// NewEnvironmentalExtractor creates the environmental extractor
func NewEnvironmentalExtractor() *EnvironmentalExtractor {
	b := newBase(model.SectionEnvironmental)
	b.checks["levels"] = numberBetween(1, 10)
	b.checks["entrance_stairs"] = numberBetween(0, 100)
	return &EnvironmentalExtractor{b}
}

// AttendantCareExtractor fills the attendant care needs block.
// Hours are weekly figures.
type AttendantCareExtractor struct{ *base }

// NewAttendantCareExtractor creates the attendant care extractor
func NewAttendantCareExtractor() *AttendantCareExtractor {
	b := newBase(model.SectionAttendantCare)
	for _, f := range []string{"level1_hours", "level2_hours", "level3_hours"} {
		b.checks[f] = numberBetween(0, 168)
	}
	b.checks["monthly_cost"] = numberBetween(0, 1_000_000)
	return &AttendantCareExtractor{b}
}

// RecommendationsExtractor fills the recommendations block
type RecommendationsExtractor struct{ *base }

// NewRecommendationsExtractor creates the recommendations extractor
func NewRecommendationsExtractor() *RecommendationsExtractor {
	return &RecommendationsExtractor{newBase(model.SectionRecommendations)}
}
