package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/intake/internal/model"
)

// DefaultThreshold is the minimum score a document type needs to be chosen
const DefaultThreshold = 0.5

// cue is one coarse signal characteristic of a document type
type cue struct {
	name    string
	pattern *regexp.Regexp
	weight  float64
}

func newCue(name, pattern string, weight float64) cue {
	return cue{name: name, pattern: regexp.MustCompile(pattern), weight: weight}
}

// cues holds header keyword sets and structural cues per document type
var cues = map[model.DocumentType][]cue{
	model.DocTypeOTAssessment: {
		newCue("occupational_therapy", `(?i)\boccupational[ ]+therap(?:y|ist)\b`, 0.35),
		newCue("in_home_assessment", `(?i)\bin[- ]home[ ]+assessment\b`, 0.35),
		newCue("attendant_care_form", `(?i)\b(?:form[ ]+1|assessment[ ]+of[ ]+attendant[ ]+care[ ]+needs)\b`, 0.3),
		newCue("functional_header", `(?im)^[ ]*functional[ ]+(?:status|abilities|assessment)[ ]*:?[ ]*$`, 0.2),
		newCue("environment_header", `(?im)^[ ]*(?:environmental[ ]+assessment|home[ ]+environment)[ ]*:?[ ]*$`, 0.2),
		newCue("attendant_care_header", `(?im)^[ ]*attendant[ ]+care(?:[ ]+needs)?[ ]*:?[ ]*$`, 0.2),
	},
	model.DocTypeReferral: {
		newCue("referral_keyword", `(?i)\breferr(?:al|ed|ing)\b`, 0.35),
		newCue("salutation", `(?im)^[ ]*dear[ ]+\S`, 0.25),
		newCue("re_line", `(?im)^[ ]*(?:re|regarding)[ ]*:`, 0.25),
		newCue("closing", `(?im)^[ ]*(?:sincerely|yours[ ]+truly|kind[ ]+regards|regards),?[ ]*$`, 0.2),
		newCue("request", `(?i)\bplease[ ]+(?:arrange|provide|contact|complete|forward)\b`, 0.15),
		newCue("thanks", `(?i)\bthank[ ]+you[ ]+for\b`, 0.1),
	},
	model.DocTypeMedicalRecord: {
		newCue("note_title", `(?i)\b(?:discharge[ ]+summary|consultation[ ]+(?:note|report)|progress[ ]+note|clinical[ ]+notes?)\b`, 0.35),
		newCue("chief_complaint", `(?i)\b(?:chief|presenting)[ ]+complaint\b`, 0.3),
		newCue("hpi", `(?i)\b(?:history[ ]+of[ ]+present(?:ing)?[ ]+illness|hpi)\b`, 0.3),
		newCue("examination", `(?i)\b(?:physical[ ]+examination|on[ ]+examination|o/e)\b`, 0.25),
		newCue("vitals", `(?i)\b(?:vital[ ]+signs|bp[ ]*:?[ ]*\d{2,3}/\d{2,3})\b`, 0.25),
		newCue("plan", `(?im)^[ ]*(?:assessment[ ]+and[ ]+plan|plan)[ ]*:`, 0.2),
	},
}

// Classifier scores text against per-type cues. It holds no mutable state.
type Classifier struct {
	threshold float64
}

// New creates a classifier. A threshold outside (0,1] falls back to DefaultThreshold.
func New(threshold float64) *Classifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Classifier{threshold: threshold}
}

// Score is one document type's combined cue score
type Score struct {
	Type    model.DocumentType `json:"type"`
	Score   float64            `json:"score"`
	Matched []string           `json:"matched,omitempty"`
}

// Scores returns every known type's score, highest first
func (c *Classifier) Scores(text string) []Score {
	out := make([]Score, 0, len(cues))
	for _, t := range model.DocumentTypes() {
		set, ok := cues[t]
		if !ok {
			continue
		}
		miss := 1.0
		var matched []string
		for _, q := range set {
			if q.pattern.MatchString(text) {
				miss *= 1 - q.weight
				matched = append(matched, q.name)
			}
		}
		out = append(out, Score{Type: t, Score: 1 - miss, Matched: matched})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Classify returns the best-scoring type when it reaches the threshold and beats the
// runner-up outright. Otherwise it returns UNKNOWN with confidence 0.
func (c *Classifier) Classify(text string) (model.DocumentType, float64) {
	scores := c.Scores(text)
	if len(scores) == 0 {
		return model.DocTypeUnknown, 0
	}
	best := scores[0]
	if best.Score < c.threshold {
		return model.DocTypeUnknown, 0
	}
	if len(scores) > 1 && scores[1].Score >= best.Score {
		return model.DocTypeUnknown, 0
	}
	return best.Type, best.Score
}

// Resolution is the document type chosen for one extraction run
type Resolution struct {
	Type       model.DocumentType
	Confidence float64
	Hinted     bool // caller supplied a valid type
	Degraded   bool // caller supplied a value outside the enum
	Signals    []model.Signal
}

// Resolve applies a caller hint. An empty or UNKNOWN hint classifies the text, a known
// hint is trusted with confidence 1, and an invalid hint degrades to UNKNOWN.
func (c *Classifier) Resolve(text string, hint model.DocumentType) Resolution {
	switch {
	case hint == "" || hint == model.DocTypeUnknown:
		t, conf := c.Classify(text)
		res := Resolution{Type: t, Confidence: conf}
		if t == model.DocTypeUnknown {
			res.Signals = append(res.Signals, c.unclassifiedSignal(text))
		}
		return res
	case hint.IsValid():
		return Resolution{Type: hint, Confidence: 1, Hinted: true}
	default:
		return Resolution{
			Type:     model.DocTypeUnknown,
			Degraded: true,
			Signals: []model.Signal{{
				Type:        model.SignalDegradedHint,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Unknown document type hint %q, extracting as UNKNOWN", string(hint)),
				Data: map[string]interface{}{
					"hint":    string(hint),
					"allowed": model.DocumentTypes(),
				},
			}},
		}
	}
}

func (c *Classifier) unclassifiedSignal(text string) model.Signal {
	scores := c.Scores(text)
	data := map[string]interface{}{
		"threshold": c.threshold,
		"formula":   "1 - prod(1 - cue_weight) over matched cues; winner must reach threshold and beat runner-up",
	}
	for _, s := range scores {
		data[string(s.Type)] = s.Score
	}
	return model.Signal{
		Type:        model.SignalUnclassified,
		Severity:    model.SeverityInfo,
		Description: "Document type not recognised, rule affinities ignored",
		Data:        data,
	}
}
