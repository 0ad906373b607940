package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/patterns"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and export the pattern rule bank",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules with their current weights",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		bank := a.pipeline.Bank()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Bank v%d %s (%d rules)\n\n", bank.Version(), bank.Fingerprint(), bank.Len())

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tFIELD\tSTRATEGY\tWEIGHT\tSUCCESS\tFAILURE")
		for _, r := range a.pipeline.Rules() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%d\n",
				r.ID, r.Path(), r.Strategy.Kind, r.Weight, r.SuccessCount, r.FailureCount)
		}
		return tw.Flush()
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the trained rule bank as a rule definition file",
	Long: `Export writes the current rules, including trained weights and document
type affinities, in the same YAML format --rules reads. Without a file the
rules are written to stdout.

Example:
  intake rules export --store sqlite trained-rules.yaml
  intake extract referral.txt --rules trained-rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		data, err := patterns.MarshalRules(a.pipeline.Rules())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write rules: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Exported %d rules to %s\n", a.pipeline.Bank().Len(), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesExportCmd)
}
