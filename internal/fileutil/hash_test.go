package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

func TestHashFileMatchesContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.go")
	content := []byte("package a\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if want := parser.HashContent(content); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	changed, err := WriteIfChangedTracked(path, []byte("{}"))
	if err != nil || !changed {
		t.Fatalf("expected first write to change the file, got %v %v", changed, err)
	}
	changed, err = WriteIfChangedTracked(path, []byte("{}"))
	if err != nil || changed {
		t.Fatalf("expected identical write to be skipped, got %v %v", changed, err)
	}
}

func TestWriteIfChangedReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := WriteIfChanged(path, []byte("old")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := WriteIfChanged(path, []byte("new")); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "new" {
		t.Fatalf("expected replaced content, got %q %v", got, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %v %v", entries, err)
	}
}
