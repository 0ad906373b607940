package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/intake/internal/model"
)

const divider = "═══════════════════════════════════════════════════════════"

// Renderer writes runs and reports as JSON, Markdown or a terminal summary
type Renderer struct {
	// ShowEmpty lists fields with no value in Markdown output
	ShowEmpty bool
}

// NewRenderer creates a renderer
func NewRenderer(showEmpty bool) *Renderer {
	return &Renderer{ShowEmpty: showEmpty}
}

// JSON writes v as indented JSON
func (r *Renderer) JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Markdown writes a run as a reviewable Markdown document in schema order
func (r *Renderer) Markdown(w io.Writer, run *Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Extraction Result\n\n")
	fmt.Fprintf(&b, "- **Document type:** %s", run.DocumentType)
	if run.Hinted {
		b.WriteString(" (hinted)")
	} else {
		fmt.Fprintf(&b, " (confidence %.2f)", run.ClassConfidence)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- **Fields filled:** %d\n", run.Filled())
	fmt.Fprintf(&b, "- **Bank:** v%d `%s`\n", run.BankVersion, shortFingerprint(run.BankFingerprint))
	if run.Truncated {
		b.WriteString("- **Input truncated**\n")
	}
	b.WriteString("\n")

	for _, spec := range model.Schema() {
		var rows []string
		for _, f := range spec.Fields {
			v, _ := run.Result.Get(spec.Name, f.ID)
			if v.IsEmpty() && !r.ShowEmpty {
				continue
			}
			rows = append(rows, fmt.Sprintf("| %s | %s | %.2f | %s |",
				f.ID, escapeCell(formatValue(v.Value)), v.Confidence, strings.Join(v.Rules, ", ")))
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle(spec.Name))
		b.WriteString("| Field | Value | Confidence | Rules |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, row := range rows {
			b.WriteString(row)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(run.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, s := range run.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary writes a short human summary of a run
func (r *Renderer) Summary(w io.Writer, run *Run) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
	fmt.Fprintln(w, "  Extraction Summary")
	fmt.Fprintln(w, divider)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Document type:  %s", run.DocumentType)
	if run.Hinted {
		fmt.Fprintln(w, " (hinted)")
	} else {
		fmt.Fprintf(w, " (%.2f)\n", run.ClassConfidence)
	}
	fmt.Fprintf(w, "  Fields filled:  %d\n", run.Filled())
	fmt.Fprintf(w, "  Signals:        %d\n", len(run.Signals))
	if run.Cached {
		fmt.Fprintln(w, "  Cached:         yes")
	}
	fmt.Fprintln(w)

	for _, spec := range model.Schema() {
		for _, f := range spec.Fields {
			v, _ := run.Result.Get(spec.Name, f.ID)
			if v.IsEmpty() {
				continue
			}
			fmt.Fprintf(w, "  %-38s %-32s %.2f\n", model.FieldPath(spec.Name, f.ID), clip(formatValue(v.Value), 32), v.Confidence)
		}
	}
	fmt.Fprintln(w)
}

// ReportMarkdown writes an effectiveness report
func (r *Renderer) ReportMarkdown(w io.Writer, rep model.EffectivenessReport) error {
	var b strings.Builder
	b.WriteString("# Rule Effectiveness\n\n")
	fmt.Fprintf(&b, "- **Generated:** %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Bank:** `%s`\n", shortFingerprint(rep.BankFingerprint))
	fmt.Fprintf(&b, "- **Training records:** %d\n\n", rep.TrainingRecords)

	b.WriteString("## Rules\n\n")
	b.WriteString("| Rule | Field | Strategy | Weight | Success | Failure | Accuracy |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, s := range rep.Rules {
		acc := "-"
		if s.SuccessCount+s.FailureCount > 0 {
			acc = fmt.Sprintf("%.0f%%", s.DerivedAccuracy*100)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %d | %d | %s |\n",
			s.RuleID, model.FieldPath(s.Section, s.Field), s.Strategy, s.Weight, s.SuccessCount, s.FailureCount, acc)
	}
	b.WriteString("\n")

	if len(rep.CoverageGaps) > 0 {
		b.WriteString("## Coverage Gaps\n\n")
		b.WriteString("Corrections no rule could have produced. Consider authoring a rule for these fields.\n\n")
		for _, g := range rep.CoverageGaps {
			types := make([]string, len(g.DocumentTypes))
			for i, t := range g.DocumentTypes {
				types[i] = string(t)
			}
			fmt.Fprintf(&b, "- **%s**: %d correction(s) across %s", g.FieldPath, g.Occurrences, strings.Join(types, ", "))
			if len(g.Examples) > 0 {
				ex := make([]string, len(g.Examples))
				for i, e := range g.Examples {
					ex[i] = fmt.Sprintf("%q", formatValue(e))
				}
				fmt.Fprintf(&b, " (e.g. %s)", strings.Join(ex, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(rep.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, s := range rep.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", s.Type, s.Severity, s.Description)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile creates path, including missing directories, and fills it with render
func WriteFile(path string, render func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close file: %w", cerr)
		}
	}()
	return render(f)
}

func formatValue(v any) string {
	switch val := model.CanonicalValue(v).(type) {
	case nil:
		return "-"
	case string:
		return val
	case []string:
		return strings.Join(val, "; ")
	default:
		return fmt.Sprint(val)
	}
}

func sectionTitle(s model.Section) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
