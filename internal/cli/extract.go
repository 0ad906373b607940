package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/pipeline"
)

var (
	outJSON   string
	outMD     string
	docType   string
	timeout   time.Duration
	showEmpty bool
	quiet     bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Extract structured fields from a single document",
	Long: `Extract reads one document (plain text or HTML) and:
- Classifies its document type, or trusts --type
- Splits it into schema sections
- Runs every pattern rule for every field
- Keeps the highest-confidence value per field with the rules that produced it

Fields nothing matched are reported with no value and zero confidence.

Example:
  intake extract referral.txt
  intake extract assessment.html --type OT_ASSESSMENT --json result.json --md result.md
  cat note.txt | intake extract - --json -`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&outJSON, "json", "", `output JSON path ("-" for stdout)`)
	extractCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	extractCmd.Flags().StringVar(&docType, "type", "", "document type hint ("+typeList()+")")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for reading the document")
	extractCmd.Flags().BoolVar(&showEmpty, "show-empty", false, "list empty fields in Markdown output")
	extractCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the summary")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	loader := pipeline.NewLoader(int64(a.cfg.Extraction.MaxInputBytes))
	doc, err := loader.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Document: %s (%s, %d bytes)\n", doc.Subject, doc.ContentType, doc.Bytes)
	}

	run := a.pipeline.Process(doc.Text, model.DocumentType(docType))
	if doc.Truncated {
		run.Truncated = true
	}

	return writeRun(cmd.OutOrStdout(), run)
}

// writeRun renders a run to the requested outputs. The summary goes to stdout unless
// JSON is being written there.
func writeRun(stdout io.Writer, run *pipeline.Run) error {
	r := pipeline.NewRenderer(showEmpty)

	switch outJSON {
	case "":
	case "-":
		if err := r.JSON(stdout, run); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	default:
		if err := pipeline.WriteFile(outJSON, func(w io.Writer) error { return r.JSON(w, run) }); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}

	if outMD != "" {
		if err := pipeline.WriteFile(outMD, func(w io.Writer) error { return r.Markdown(w, run) }); err != nil {
			return fmt.Errorf("write Markdown: %w", err)
		}
	}

	if !quiet && outJSON != "-" {
		r.Summary(stdout, run)
	}
	return nil
}

func typeList() string {
	var s string
	for i, t := range model.DocumentTypes() {
		if i > 0 {
			s += ", "
		}
		s += string(t)
	}
	return s
}
