package worker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/pipeline"
)

// Processor extracts a result from document text
type Processor interface {
	Process(text string, hint model.DocumentType) *pipeline.Run
}

// DocumentJob loads and processes one document
type DocumentJob struct {
	Path      string
	Hint      model.DocumentType
	Loader    *pipeline.Loader
	Limiter   *Limiter
	Processor Processor
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Path); err != nil {
			return &DocumentResult{Path: j.Path, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	doc, err := j.Loader.Load(ctx, j.Path)
	if err != nil {
		return &DocumentResult{Path: j.Path, Error: err}
	}

	run := j.Processor.Process(doc.Text, j.Hint)
	if doc.Truncated {
		run.Truncated = true
	}
	return &DocumentResult{
		Path:    j.Path,
		Subject: doc.Subject,
		Run:     run,
	}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Path    string
	Subject string
	Run     *pipeline.Run
	Error   error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many documents concurrently
type BatchProcessor struct {
	processor Processor
	pool      *Pool
	limiter   *Limiter
	loader    *pipeline.Loader
}

// NewBatchProcessor creates a batch processor. rps <= 0 disables throttling.
func NewBatchProcessor(processor Processor, workers int, rps float64, burst int, maxBytes int64) *BatchProcessor {
	return &BatchProcessor{
		processor: processor,
		pool:      NewPool(workers),
		limiter:   NewLimiter(rps, burst),
		loader:    pipeline.NewLoader(maxBytes),
	}
}

// ProcessPaths processes documents concurrently. Results keep the order of paths.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string, hint model.DocumentType) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = &DocumentJob{
			Path:      p,
			Hint:      hint,
			Loader:    b.loader,
			Limiter:   b.limiter,
			Processor: b.processor,
		}
	}

	results := b.pool.Run(ctx, jobs)

	out := make([]*DocumentResult, len(results))
	for i, r := range results {
		if dr, ok := r.(*DocumentResult); ok {
			out[i] = dr
			continue
		}
		out[i] = &DocumentResult{Path: paths[i], Error: r.GetError()}
	}
	return out
}

// ProcessFile reads document paths from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listFile string, hint model.DocumentType) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listFile)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}
	return b.ProcessPaths(ctx, paths, hint), nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line != "-" && !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return paths, nil
}

var documentExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// CollectDocuments walks dir and returns the document files in it, sorted
func CollectDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if documentExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
