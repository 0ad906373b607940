package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/intake/internal/normalize"
)

// Document is raw input read from disk or stdin
type Document struct {
	Source      string // path, or "-" for stdin
	Subject     string // human-readable name derived from the path
	Text        string
	ContentType string // text/html or text/plain
	Bytes       int64
	Truncated   bool
	ModifiedAt  time.Time
}

// Loader reads documents with a size limit
type Loader struct {
	maxBytes int64
	stdin    io.Reader
}

// NewLoader creates a loader. maxBytes <= 0 means no limit.
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes, stdin: os.Stdin}
}

// Load reads one document. "-" reads stdin.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Document{Source: source, Subject: subjectFromPath(source)}
	var r io.Reader
	if source == "-" {
		r = l.stdin
		doc.Subject = "stdin"
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", source)
		}
		doc.ModifiedAt = info.ModTime().UTC()
		r = f
	}

	if l.maxBytes > 0 {
		// one extra byte tells a file of exactly maxBytes from a longer one
		r = io.LimitReader(r, l.maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if l.maxBytes > 0 && int64(len(body)) > l.maxBytes {
		body = body[:l.maxBytes]
		doc.Truncated = true
	}

	doc.Text = string(body)
	doc.Bytes = int64(len(body))
	doc.ContentType = contentType(source, doc.Text)
	return doc, nil
}

func contentType(source, text string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	}
	if normalize.LooksLikeHTML(text) {
		return "text/html"
	}
	return "text/plain"
}

// subjectFromPath turns a file name like "smith_jane-referral.txt" into "smith jane referral"
func subjectFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
