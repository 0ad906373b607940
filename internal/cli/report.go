package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/pipeline"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show rule effectiveness and coverage gaps",
	Long: `Report summarises what training has taught the rule bank:
- per-rule weight, success and failure counts and derived accuracy
- fields reviewers keep correcting that no rule can produce (coverage gaps)
- rules that have decayed or keep getting corrected

Reports read the durable store, so run with --store sqlite.

Example:
  intake report --store sqlite
  intake report --store sqlite --json report.json --md report.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&outJSON, "json", "", `output JSON path ("-" for stdout)`)
	reportCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (default: Markdown to stdout)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rep, err := a.pipeline.Report(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	r := pipeline.NewRenderer(false)
	out := cmd.OutOrStdout()

	switch outJSON {
	case "":
	case "-":
		return r.JSON(out, rep)
	default:
		if err := pipeline.WriteFile(outJSON, func(w io.Writer) error { return r.JSON(w, rep) }); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}

	if outMD != "" {
		if err := pipeline.WriteFile(outMD, func(w io.Writer) error { return r.ReportMarkdown(w, rep) }); err != nil {
			return fmt.Errorf("write Markdown: %w", err)
		}
		return nil
	}
	return r.ReportMarkdown(out, rep)
}
