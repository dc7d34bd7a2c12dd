package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

type fakeTarget struct {
	root string

	mu      sync.Mutex
	indexed []string
	removed []string
}

func (f *fakeTarget) Root() string { return f.root }

func (f *fakeTarget) Ignored(rel string, isDir bool) bool {
	return strings.HasPrefix(rel, "vendor")
}

func (f *fakeTarget) Supported(path string) bool { return strings.HasSuffix(path, ".go") }

func (f *fakeTarget) IndexFile(_ context.Context, path string) (graph.Delta, []parser.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, filepath.Base(path))
	return graph.Delta{}, nil, nil
}

func (f *fakeTarget) RemoveFile(path string) (graph.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, filepath.Base(path))
	return graph.Delta{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeTarget) wasRemoved(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.removed {
		if r == name {
			return true
		}
	}
	return false
}

func waitBatch(t *testing.T, batches <-chan []Change, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-batches:
			for _, c := range batch {
				if filepath.Base(c.Path) == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcherIndexesAndRemoves(t *testing.T) {
	root := t.TempDir()
	target := &fakeTarget{root: root}
	batches := make(chan []Change, 16)

	w, err := New(target, Options{
		Debounce: 20 * time.Millisecond,
		OnBatch:  sendBatch(batches),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(root, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitBatch(t, batches, "main.go")

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !target.wasRemoved("main.go") {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for main.go removal")
		}
		time.Sleep(10 * time.Millisecond)
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.indexed) == 0 || target.indexed[0] != "main.go" {
		t.Fatalf("expected main.go indexed, got %v", target.indexed)
	}
	for _, name := range target.indexed {
		if name == "notes.txt" {
			t.Fatalf("unsupported file was indexed")
		}
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	target := &fakeTarget{root: root}
	batches := make(chan []Change, 16)

	w, err := New(target, Options{
		Debounce: 20 * time.Millisecond,
		OnBatch:  sendBatch(batches),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	dir := filepath.Join(root, "pkg")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "lib.go"), []byte("package pkg\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitBatch(t, batches, "lib.go")
}

func TestApplyUsesDiskState(t *testing.T) {
	root := t.TempDir()
	target := &fakeTarget{root: root}
	var got []parser.Issue
	w := &Watcher{target: target, root: root, logger: discardLogger(), onBatch: func(_ []Change, issues []parser.Issue) { got = issues }}

	present := filepath.Join(root, "a.go")
	if err := os.WriteFile(present, []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.apply(context.Background(), []Change{
		{Path: present, Op: OpRename},
		{Path: filepath.Join(root, "gone.go"), Op: OpWrite},
	})

	if len(target.indexed) != 1 || target.indexed[0] != "a.go" {
		t.Fatalf("expected a.go indexed, got %v", target.indexed)
	}
	if len(target.removed) != 1 || target.removed[0] != "gone.go" {
		t.Fatalf("expected gone.go removed, got %v", target.removed)
	}
	if len(got) != 0 {
		t.Fatalf("expected no issues, got %v", got)
	}
}

func TestDedupeKeepsLatest(t *testing.T) {
	now := time.Now()
	out := dedupe([]Change{
		{Path: "a", Op: OpCreate, Time: now},
		{Path: "b", Op: OpWrite, Time: now},
		{Path: "a", Op: OpRemove, Time: now.Add(time.Millisecond)},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(out))
	}
	if out[0].Path != "a" || out[0].Op != OpRemove {
		t.Fatalf("expected latest change for a first, got %+v", out[0])
	}
	if out[1].Path != "b" {
		t.Fatalf("expected b second, got %+v", out[1])
	}
}

func TestIgnoredDirectoriesAreSkipped(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "vendor", "x"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w, err := New(&fakeTarget{root: root}, Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer w.Stop()
	if err := w.addRecursive(root); err != nil {
		t.Fatalf("addRecursive: %v", err)
	}
	for _, p := range w.fsw.WatchList() {
		if strings.Contains(p, "vendor") {
			t.Fatalf("ignored directory watched: %s", p)
		}
	}
}

func TestOpString(t *testing.T) {
	if OpRename.String() != "rename" || Op(42).String() != "unknown" {
		t.Fatalf("unexpected op names")
	}
}

func sendBatch(batches chan []Change) func([]Change, []parser.Issue) {
	return func(c []Change, _ []parser.Issue) {
		select {
		case batches <- c:
		default:
		}
	}
}
