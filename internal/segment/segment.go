package segment

import (
	"regexp"
	"strings"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/normalize"
)

// aliases maps each section to the header spellings seen in assessments and letters.
// Matching is on the whole header line, case-insensitive, after numbering and a trailing colon are removed.
var aliases = map[model.Section][]string{
	model.SectionDemographics: {
		"demographics", "demographic information", "client information", "patient information",
		"claimant information", "identifying information", "identifying data", "personal information",
		"client details",
	},
	model.SectionMedicalHistory: {
		"medical history", "past medical history", "pre-accident medical history", "medical information",
		"health history", "medications", "diagnoses", "injuries sustained",
	},
	model.SectionSymptoms: {
		"symptoms", "current symptoms", "subjective complaints", "presenting complaints",
		"physical symptoms", "reported symptoms",
	},
	model.SectionFunctionalStatus: {
		"functional status", "functional abilities", "functional assessment", "activities of daily living",
		"adls", "mobility and transfers", "self care",
	},
	model.SectionEnvironmental: {
		"environmental assessment", "environment", "home environment", "home assessment",
		"living situation", "dwelling",
	},
	model.SectionAttendantCare: {
		"attendant care", "attendant care needs", "assessment of attendant care needs", "form 1",
		"caregiver support",
	},
	model.SectionRecommendations: {
		"recommendations", "summary and recommendations", "recommendations and summary", "conclusions",
		"summary", "plan", "treatment plan",
	},
}

var numbering = regexp.MustCompile(`^(?:\d{1,2}|[a-z]|[ivx]{1,4})[.)][ ]+`)

// header is a header line found in the text
type header struct {
	section model.Section
	title   string
	start   int // offset of the header line
	body    int // offset of the line after it
}

// Segmenter splits normalized text into per-section spans
type Segmenter struct {
	lookup map[string]model.Section
}

// New creates a segmenter with the built-in header aliases
func New() *Segmenter {
	s := &Segmenter{lookup: make(map[string]model.Section)}
	for sec, names := range aliases {
		for _, n := range names {
			s.lookup[n] = sec
		}
	}
	return s
}

// Segment returns the spans for one section.
// Without a header for the section the whole document is returned as a single span.
func (s *Segmenter) Segment(text string, section model.Section) []model.Span {
	return s.SegmentAll(text)[section]
}

// SegmentAll returns spans for every schema section in one pass over the text
func (s *Segmenter) SegmentAll(text string) map[model.Section][]model.Span {
	headers := s.headers(text)

	out := make(map[model.Section][]model.Span, len(aliases))
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].start
		}
		span, ok := trimSpan(text, h.body, end)
		if !ok {
			continue
		}
		span.Header = h.title
		out[h.section] = append(out[h.section], span)
	}

	for _, sec := range model.Sections() {
		if len(out[sec]) > 0 {
			continue
		}
		if span, ok := trimSpan(text, 0, len(text)); ok {
			out[sec] = []model.Span{span}
		}
	}
	return out
}

// Headers returns the recognised header lines in document order
func (s *Segmenter) Headers(text string) []string {
	var out []string
	for _, h := range s.headers(text) {
		out = append(out, h.title)
	}
	return out
}

func (s *Segmenter) headers(text string) []header {
	var out []header
	lines, offsets := normalize.Lines(text)
	for i, line := range lines {
		sec, ok := s.match(line)
		if !ok {
			continue
		}
		body := offsets[i] + len(line) + 1
		if body > len(text) {
			body = len(text)
		}
		out = append(out, header{section: sec, title: strings.TrimSpace(line), start: offsets[i], body: body})
	}
	return out
}

func (s *Segmenter) match(line string) (model.Section, bool) {
	key := strings.ToLower(strings.TrimSpace(line))
	if key == "" || len(key) > 60 {
		return "", false
	}
	key = numbering.ReplaceAllString(key, "")
	key = strings.TrimSpace(strings.TrimRight(key, ":"))
	sec, ok := s.lookup[key]
	return sec, ok
}

// trimSpan shrinks [start,end) to exclude surrounding blank space. ok is false for an empty span.
func trimSpan(text string, start, end int) (model.Span, bool) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if start >= end {
		return model.Span{}, false
	}
	return model.Span{Start: start, End: end}, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
