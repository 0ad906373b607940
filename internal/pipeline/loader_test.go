package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smith_jane-referral.txt")
	if err := os.WriteFile(path, []byte("Name: Jane Smith\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewLoader(0).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if doc.Text != "Name: Jane Smith\n" {
		t.Errorf("Unexpected text %q", doc.Text)
	}
	if doc.Subject != "smith jane referral" {
		t.Errorf("Unexpected subject %q", doc.Subject)
	}
	if doc.ContentType != "text/plain" {
		t.Errorf("Expected text/plain, got %s", doc.ContentType)
	}
	if doc.Truncated || doc.ModifiedAt.IsZero() {
		t.Errorf("Unexpected metadata %+v", doc)
	}
}

func TestLoader_Limit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 20)), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewLoader(10).Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Truncated || doc.Bytes != 10 {
		t.Errorf("Expected truncation to 10 bytes, got %d truncated=%v", doc.Bytes, doc.Truncated)
	}

	exact, err := NewLoader(20).Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if exact.Truncated {
		t.Error("File of exactly the limit should not be truncated")
	}
}

func TestLoader_HTMLAndStdin(t *testing.T) {
	l := NewLoader(0)
	l.stdin = strings.NewReader("<html><body><p>Name: Jane Doe</p></body></html>")

	doc, err := l.Load(context.Background(), "-")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Subject != "stdin" || doc.ContentType != "text/html" {
		t.Errorf("Unexpected stdin document %+v", doc)
	}
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(0)
	if _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := l.Load(context.Background(), t.TempDir()); err == nil {
		t.Error("Expected error for directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "-"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
