package patterns

import (
	"regexp"
	"strings"

	"github.com/ppiankov/intake/internal/model"
)

const monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// DatePattern matches the date spellings found in referral letters and reports
const DatePattern = `(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|` +
	monthNames + `[ ]+\d{1,2},?[ ]+\d{4}|\d{1,2}[ ]+` + monthNames + `,?[ ]+\d{4})`

// shape pairs a search pattern (first match wins) with a whole-line pattern used by positional rules.
// When the search pattern has a capture group, the group is the value.
type shape struct {
	search *regexp.Regexp
	line   *regexp.Regexp
}

var shapes = map[model.ValueShape]shape{
	model.ShapeDate: {
		search: regexp.MustCompile(`(?i)\b` + DatePattern + `\b`),
		line:   regexp.MustCompile(`(?i)^` + DatePattern + `$`),
	},
	model.ShapePhone: {
		search: regexp.MustCompile(`(?:\+?1[ .-]?)?(?:\(\d{3}\)|\d{3})[ .-]?\d{3}[ .-]?\d{4}(?:[ ]*(?:x|ext\.?)[ ]*\d+)?`),
		line:   regexp.MustCompile(`^(?:\+?1[ .-]?)?(?:\(\d{3}\)|\d{3})[ .-]?\d{3}[ .-]?\d{4}$`),
	},
	model.ShapeEmail: {
		search: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		line:   regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`),
	},
	model.ShapeNumber: {
		search: regexp.MustCompile(`\$?(\d[\d,]*(?:\.\d+)?)`),
		line:   regexp.MustCompile(`^\$?\d[\d,]*(?:\.\d+)?$`),
	},
	model.ShapeHours: {
		search: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[ ]*(?:hours?|hrs?)\b`),
		line:   regexp.MustCompile(`(?i)^\d+(?:\.\d+)?[ ]*(?:hours?|hrs?)$`),
	},
	model.ShapeName: {
		search: regexp.MustCompile(`(?:(?:Dr|Mr|Mrs|Ms)\.?[ ]+)?\p{Lu}[\p{L}'-]+(?:[ ]+\p{Lu}\.?)?(?:[ ]+\p{Lu}[\p{L}'-]+){1,2}`),
		line:   regexp.MustCompile(`^(?:(?:Dr|Mr|Mrs|Ms)\.?[ ]+)?\p{Lu}[\p{L}'-]+(?:[ ]+\p{Lu}\.?)?(?:[ ]+\p{Lu}[\p{L}'-]+){1,2}$`),
	},
	model.ShapeWords: {
		search: regexp.MustCompile(`^[ \t]*[:=,-]*[ \t]*([^.;\n]*\p{L}{2}[^.;\n]*)`),
		line:   regexp.MustCompile(`\p{L}{2}`),
	},
	model.ShapeLine: {
		search: regexp.MustCompile(`^[ \t]*[:=,-]*[ \t]*([^\n]*\S)`),
		line:   regexp.MustCompile(`\S`),
	},
}

// lineAnchored reports whether the shape's value runs from right after the keyword.
// Such shapes never cross a line break and measure distance as the separator length.
func lineAnchored(s model.ValueShape) bool {
	return s == model.ShapeWords || s == model.ShapeLine
}

// findShape returns the first value of shape s in text with its byte offsets
func findShape(s model.ValueShape, text string) (value string, start, end int, ok bool) {
	sh, found := shapes[s]
	if !found {
		return "", 0, 0, false
	}
	loc := sh.search.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", 0, 0, false
	}
	start, end = loc[0], loc[1]
	if len(loc) >= 4 && loc[2] >= 0 {
		start, end = loc[2], loc[3]
	}
	value = cleanValue(text[start:end])
	if value == "" {
		return "", 0, 0, false
	}
	return value, start, end, true
}

// matchesLine reports whether an entire line has shape s
func matchesLine(s model.ValueShape, line string) bool {
	sh, found := shapes[s]
	if !found {
		return false
	}
	return sh.line.MatchString(strings.TrimSpace(line))
}

// cleanValue trims whitespace and trailing separators from an extracted value
func cleanValue(v string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(v), ",;:"))
}

// Matches reports whether value, as a whole, has shape s
func Matches(s model.ValueShape, value string) bool {
	return matchesLine(s, value)
}
