package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/pipeline"
	"github.com/ppiankov/intake/internal/training"
)

var (
	originalPath  string
	correctedPath string
	sourcePath    string
	recordJSON    bool
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Record a reviewer correction and adjust the rules involved",
	Long: `Train compares an extraction with a reviewer's corrected values, stores a
training record and moves the weights of the rules involved:
- rules that produced a wrong value lose weight
- rules that would have produced the corrected value gain weight
- a correction no rule could have produced is reported as a coverage gap

--original accepts the JSON written by "intake extract --json" or a bare result.
--corrected holds only the fields the reviewer changed, by section:

  {"demographics": {"name": "Jane Doe"}}

Without --source the rules cannot be re-run, so attribution only blames the
rules recorded on the original value.

Use --store sqlite so records and weights outlive the process.

Example:
  intake train --original result.json --corrected fix.json --source referral.txt --store sqlite`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&originalPath, "original", "", "original extraction JSON (required)")
	trainCmd.Flags().StringVar(&correctedPath, "corrected", "", "corrected values JSON (required)")
	trainCmd.Flags().StringVar(&sourcePath, "source", "", "source document the extraction came from")
	trainCmd.Flags().StringVar(&docType, "type", "", "document type (default: the type recorded in --original)")
	trainCmd.Flags().BoolVar(&recordJSON, "json", false, "print the training record as JSON")
	_ = trainCmd.MarkFlagRequired("original")
	_ = trainCmd.MarkFlagRequired("corrected")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	original, recordedType, err := readOriginal(originalPath)
	if err != nil {
		return err
	}
	var corrected model.Correction
	if err := readJSON(correctedPath, &corrected); err != nil {
		return err
	}

	dt := recordedType
	if docType != "" {
		if dt, err = model.ParseDocumentType(docType); err != nil {
			return err
		}
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !a.durable() {
		fmt.Fprintln(os.Stderr, "Warning: memory store in use, this correction is lost when the command exits (use --store sqlite)")
	}

	var opts []training.Option
	if sourcePath != "" {
		doc, err := pipeline.NewLoader(int64(a.cfg.Extraction.MaxInputBytes)).Load(ctx, sourcePath)
		if err != nil {
			return fmt.Errorf("load source: %w", err)
		}
		text, _ := a.pipeline.Normalize(doc.Text)
		opts = append(opts, training.WithSourceText(text))
	}

	rec, err := a.pipeline.TrainWithCorrection(ctx, original, corrected, dt, opts...)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	out := cmd.OutOrStdout()
	if recordJSON {
		return pipeline.NewRenderer(false).JSON(out, rec)
	}

	fmt.Fprintf(out, "✓ Stored training record %s (%s)\n", rec.ID, rec.DocumentType)
	paths := make([]string, 0, len(rec.Diff))
	for p := range rec.Diff {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	gaps := make(map[string]bool)
	for _, g := range rec.CoverageGaps() {
		gaps[g] = true
	}
	for _, p := range paths {
		d := rec.Diff[p]
		attr := rec.Attribution[p]
		fmt.Fprintf(out, "  %s: %v -> %v\n", p, d.OldValue, d.NewValue)
		switch {
		case gaps[p]:
			fmt.Fprintln(out, "      coverage gap: no rule produces the corrected value")
		default:
			if len(attr.Failed) > 0 {
				fmt.Fprintf(out, "      penalised: %v\n", attr.Failed)
			}
			if len(attr.Succeeded) > 0 {
				fmt.Fprintf(out, "      rewarded:  %v\n", attr.Succeeded)
			}
		}
		if attr.Unverified {
			fmt.Fprintln(out, "      source text unavailable, alternatives not checked")
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(out, "  No field differed from the original, rules unchanged")
	}
	return nil
}

// readOriginal accepts either a full run (as written by extract --json) or a bare result
func readOriginal(path string) (model.ExtractionResult, model.DocumentType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read original: %w", err)
	}

	var run pipeline.Run
	if err := json.Unmarshal(data, &run); err == nil && run.Result != nil {
		dt := run.DocumentType
		if dt == "" {
			dt = model.DocTypeUnknown
		}
		return run.Result, dt, nil
	}

	var result model.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, "", fmt.Errorf("decode original %s: %w", path, err)
	}
	return result, model.DocTypeUnknown, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
