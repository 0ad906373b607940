package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/pipeline"
	"github.com/ppiankov/intake/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	writeMD      bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file|directory>",
	Short: "Extract many documents in parallel",
	Long: `Batch processes many documents concurrently:
- Read document paths from a list file (one per line, # comments allowed),
  or collect .txt, .md and .html files under a directory
- Process documents in parallel with a configurable worker count
- Throttle per source directory so one folder cannot starve the rest
- Write a JSON result (and optionally Markdown) per document

Example:
  intake batch inbox/
  intake batch documents.list --concurrency 8 --output-dir ./results
  intake batch inbox/ --type REFERRAL --md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./intake-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&docType, "type", "", "document type hint applied to every document")
	batchCmd.Flags().BoolVar(&writeMD, "md", false, "also write a Markdown result per document")
	batchCmd.Flags().BoolVar(&showEmpty, "show-empty", false, "list empty fields in Markdown output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !cmd.Flags().Changed("concurrency") && a.cfg.Concurrency.Workers > 0 {
		concurrency = a.cfg.Concurrency.Workers
	}

	paths, err := batchInputs(input)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", divider)
	fmt.Fprintf(os.Stderr, "  Intake Batch Processing\n")
	fmt.Fprintf(os.Stderr, "%s\n", divider)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s (%d documents)\n", input, len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(a.pipeline, concurrency,
		a.cfg.Concurrency.RequestsPerSecond, a.cfg.Concurrency.BurstSize, int64(a.cfg.Extraction.MaxInputBytes))
	results := processor.ProcessPaths(ctx, paths, model.DocumentType(docType))

	renderer := pipeline.NewRenderer(showEmpty)
	used := make(map[string]int)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := uniqueName(used, sanitizeFilename(result.Subject))
		jsonPath := filepath.Join(outputDir, slug+".json")
		if err := pipeline.WriteFile(jsonPath, func(w io.Writer) error { return renderer.JSON(w, result.Run) }); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if writeMD {
			mdPath := filepath.Join(outputDir, slug+".md")
			if err := pipeline.WriteFile(mdPath, func(w io.Writer) error { return renderer.Markdown(w, result.Run) }); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
				continue
			}
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%s, %d fields)\n", result.Subject, result.Run.DocumentType, result.Run.Filled())
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", divider)
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "%s\n", divider)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d documents failed", failureCount)
	}
	return nil
}

// batchInputs expands a directory into its documents, or reads a list file
func batchInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("batch input: %w", err)
	}
	if info.IsDir() {
		return worker.CollectDocuments(input)
	}
	return worker.ReadPathsFromFile(input)
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	).Replace(s)
	s = strings.Trim(s, ".")

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// uniqueName suffixes repeated names, so two referral.txt files in different folders keep both results
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, n+1)
}
