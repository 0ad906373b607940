package enhance

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/intake/internal/model"
)

// DateLayout is the canonical date format of enhanced results
const DateLayout = "2006-01-02"

var (
	listSeparators = regexp.MustCompile(`[;,\n•]+`)
	listMarker     = regexp.MustCompile(`^(?:[-*·][ ]*|\d{1,2}[.)][ ]+)`)
)

// Enhance returns a normalised copy of r. Confidence and provenance are untouched and
// empty fields stay empty.
func Enhance(r model.ExtractionResult) model.ExtractionResult {
	out := r.Clone()
	for section, fields := range out {
		for id, v := range fields {
			if v.IsEmpty() {
				continue
			}
			spec, ok := model.LookupField(section, id)
			if !ok {
				continue
			}
			v.Value = Field(spec.Kind, v.Value)
			fields[id] = v
		}
	}
	return out
}

// Field normalises one value for its kind. Values that cannot be normalised are
// returned trimmed rather than dropped.
func Field(kind model.FieldKind, v any) any {
	switch val := model.CanonicalValue(v).(type) {
	case nil:
		return nil
	case []string:
		if kind == model.KindList {
			return List(strings.Join(val, "\n"))
		}
		return Field(kind, strings.Join(val, ", "))
	case string:
		switch kind {
		case model.KindDate:
			return Date(val)
		case model.KindList:
			return List(val)
		case model.KindName:
			return Name(val)
		case model.KindNumber:
			return Number(val)
		case model.KindEmail:
			return strings.ToLower(collapse(val))
		case model.KindPhone:
			return collapse(val)
		default:
			return Text(val)
		}
	default:
		return v
	}
}

// Date rewrites a recognised date as YYYY-MM-DD. Slash dates are read month first,
// then day first when the month is out of range.
func Date(s string) string {
	s = collapse(s)
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return s
	}
	return t.Format(DateLayout)
}

// List splits a joined value into trimmed items. Returns nil when nothing is left.
func List(s string) any {
	var items []string
	for _, part := range listSeparators.Split(s, -1) {
		part = listMarker.ReplaceAllString(strings.TrimSpace(part), "")
		part = strings.TrimRight(collapse(part), ".")
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// Name trims a name and title-cases it when it is written in a single case
func Name(s string) string {
	s = strings.TrimRight(collapse(s), ",;")
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		// Casers keep state; one per call
		return cases.Title(language.English).String(s)
	}
	return s
}

// Number strips currency symbols and thousands separators
func Number(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(collapse(s), "$"))
	return strings.ReplaceAll(s, ",", "")
}

// Text collapses whitespace and trims trailing separators
func Text(s string) string {
	return strings.TrimRight(collapse(s), ",;:")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
