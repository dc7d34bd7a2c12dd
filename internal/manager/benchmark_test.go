package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/parser"
)

func BenchmarkIndexAll_MediumRepo(b *testing.B) {
	root := b.TempDir()
	createSyntheticGoRepo(b, root, 250)
	extractors := languages.NewDefaultRegistry()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := newBenchManager(b, extractors, root)
		if _, err := m.IndexAll(ctx); err != nil {
			b.Fatalf("IndexAll: %v", err)
		}
		if m.Stats().Graph.Files != 250 {
			b.Fatalf("expected 250 indexed files, got %d", m.Stats().Graph.Files)
		}
	}
}

func BenchmarkRelatedFilesSkeleton_MediumRepo(b *testing.B) {
	root := b.TempDir()
	createSyntheticGoRepo(b, root, 250)
	ctx := context.Background()
	m := newBenchManager(b, languages.NewDefaultRegistry(), root)
	if _, err := m.IndexAll(ctx); err != nil {
		b.Fatalf("IndexAll: %v", err)
	}

	seeds := []string{filepath.ToSlash(filepath.Join("pkg0", "file_000.go"))}
	tokens := 0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := m.RelatedFilesSkeleton(ctx, seeds, DefaultMaxTokens, DefaultMaxDepth)
		if err != nil {
			b.Fatalf("RelatedFilesSkeleton: %v", err)
		}
		tokens = 0
		for _, sk := range out.Skeletons {
			tokens += sk.Tokens
		}
	}
	b.StopTimer()
	b.ReportMetric(float64(tokens), "tokens/query")
}

func newBenchManager(tb testing.TB, extractors *parser.Registry, root string) *Manager {
	tb.Helper()
	m, err := New(extractors, Options{
		Root:   root,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	return m
}

// createSyntheticGoRepo writes files that each call into the next file of
// the same package, so every file has an internal edge.
func createSyntheticGoRepo(tb testing.TB, root string, files int) {
	tb.Helper()

	for i := 0; i < files; i++ {
		dir := filepath.Join(root, fmt.Sprintf("pkg%d", i%10))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			tb.Fatalf("mkdir failed: %v", err)
		}

		next := i + 10
		if next >= files {
			next = i % 10
		}
		filePath := filepath.Join(dir, fmt.Sprintf("file_%03d.go", i))
		src := fmt.Sprintf(`package pkg%d

func Func%d() int {
	return helper%d() + Func%d()
}

func helper%d() int {
	return %d
}
`, i%10, i, i, next, i, i)

		if err := os.WriteFile(filePath, []byte(src), 0o644); err != nil {
			tb.Fatalf("write failed: %v", err)
		}
	}
}
