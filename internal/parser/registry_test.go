package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skelly-dev/codegraph/internal/ignore"
)

type mockExtractor struct {
	lang string
	exts []string
}

func (m mockExtractor) Language() string {
	return m.lang
}

func (m mockExtractor) Extensions() []string {
	return m.exts
}

func (m mockExtractor) Extract(filename string, content []byte, mode ExtractMode) (*FileSymbols, error) {
	return &FileSymbols{
		Path: filename,
		Symbols: []Symbol{
			{Name: "mock", Kind: SymbolFunction, Signature: "func mock()", Line: 3, EndLine: 5},
			{Name: "Mock", Kind: SymbolStruct, Signature: "type Mock struct", Line: 1, EndLine: 1},
		},
		References: []Reference{
			{Name: "helper", Kind: RefCall, Line: 4},
			{Name: "helper", Kind: RefCall, Line: 4},
		},
		Imports: []string{"fmt", " fmt ", ""},
	}, nil
}

func TestRegistryExtractorForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(mockExtractor{lang: "mock", exts: []string{".mock"}})

	e, ok := r.ExtractorForFile("demo.MOCK")
	if !ok {
		t.Fatalf("expected extractor for .MOCK extension")
	}
	if e.Language() != "mock" {
		t.Fatalf("expected language mock, got %s", e.Language())
	}
	if _, ok := r.ExtractorForFile("demo.txt"); ok {
		t.Fatalf("expected no extractor for .txt")
	}
}

func TestWalkSourcesRespectsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockExtractor{lang: "mock", exts: []string{".mock"}})
	r.Register(mockExtractor{lang: "other", exts: []string{".other"}})

	mustWriteFile(t, filepath.Join(root, "keep.mock"), "ok")
	mustWriteFile(t, filepath.Join(root, "skip", "ignored.mock"), "x")
	mustWriteFile(t, filepath.Join(root, "skip", "include.mock"), "y")
	mustWriteFile(t, filepath.Join(root, "node_modules", "dep.mock"), "z")
	mustWriteFile(t, filepath.Join(root, "lang.other"), "o")
	mustWriteFile(t, filepath.Join(root, "readme.txt"), "t")

	matcher := ignore.NewMatcher([]string{"skip/*", "!skip/include.mock"})
	files, issues := r.WalkSources(root, matcher, func(lang string) bool { return lang == "mock" })
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}

	want := []string{"keep.mock", "skip/include.mock"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d (%v)", len(want), len(files), files)
	}
	for i := range want {
		if files[i].RelPath != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
		if files[i].Language != "mock" {
			t.Fatalf("expected language mock, got %s", files[i].Language)
		}
	}
}

func TestExtractFileNormalizesAndHonorsMode(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.mock")
	mustWriteFile(t, path, "content")

	r := NewRegistry()
	r.Register(mockExtractor{lang: "mock", exts: []string{".mock"}})

	full, err := r.ExtractFile(path, "a.mock", ModeFull)
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if len(full.References) != 1 {
		t.Fatalf("expected duplicate references collapsed, got %d", len(full.References))
	}
	if len(full.Imports) != 1 || full.Imports[0] != "fmt" {
		t.Fatalf("expected normalized imports [fmt], got %v", full.Imports)
	}
	if full.Symbols[0].Name != "Mock" {
		t.Fatalf("expected symbols sorted by line, got %s first", full.Symbols[0].Name)
	}
	if full.Hash == "" || full.Language != "mock" {
		t.Fatalf("expected hash and language set, got %q %q", full.Hash, full.Language)
	}

	symbolsOnly, err := r.ExtractFile(path, "a.mock", ModeSymbolsOnly)
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if len(symbolsOnly.References) != 0 {
		t.Fatalf("expected references dropped in symbols-only mode, got %d", len(symbolsOnly.References))
	}

	unsupported, err := r.ExtractFile(filepath.Join(root, "x.txt"), "x.txt", ModeFull)
	if err != nil || unsupported != nil {
		t.Fatalf("expected nil, nil for unsupported file, got %v, %v", unsupported, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
