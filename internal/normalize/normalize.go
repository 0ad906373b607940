// Package normalize turns raw document text into the canonical form every
// later stage indexes into: plain text, '\n' line breaks, no trailing spaces,
// at most one blank line in a row.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?i)<\s*(html|body|p|div|br|table|span|h[1-6])\b[^>]*>`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t\f\v]+`)
	replacements = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\u00a0", " ", // non-breaking space
		"\u2002", " ",
		"\u2003", " ",
		"\u2018", "'",
		"\u2019", "'",
		"\u201c", `"`,
		"\u201d", `"`,
		"\u2013", "-",
		"\u2014", "-",
		"\u2022", "-", // bullet
		"\ufeff", "",
	)
)

// Text normalizes raw input. HTML input is reduced to its visible text first.
func Text(raw string) string {
	text := raw
	if LooksLikeHTML(text) {
		if visible, err := visibleText(text); err == nil {
			text = visible
		}
	}

	text = replacements.Replace(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.Trim(text, "\n")
}

// LooksLikeHTML reports whether the input carries block-level HTML markup
func LooksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// Truncate cuts text to at most max bytes at a line boundary when possible
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i]
	}
	return cut
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "ul": true, "ol": true,
}

// visibleText extracts text nodes, skipping scripts/styles, and breaks lines at block elements
func visibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	atLineStart := true

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if !atLineStart {
					buf.WriteString(" ")
				}
				buf.WriteString(text)
				atLineStart = false
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
			atLineStart = true
		}
	}

	walk(doc)
	return buf.String(), nil
}

// Lines splits normalized text into lines along with each line's starting offset
func Lines(text string) ([]string, []int) {
	lines := strings.Split(text, "\n")
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}
	return lines, offsets
}
