package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/state"
)

// RefreshSummary reports what an incremental refresh did.
type RefreshSummary struct {
	Indexed   int         `json:"indexed"`
	Removed   int         `json:"removed"`
	Unchanged int         `json:"unchanged"`
	Delta     graph.Delta `json:"delta"`
}

// IndexFile re-extracts one primary file and replaces everything the store
// held for it. A file that no longer exists is removed. A file that fails
// to extract ends up with zero symbols and a parse-failure issue.
func (m *Manager) IndexFile(ctx context.Context, path string) (graph.Delta, []parser.Issue, error) {
	rel, abs, err := m.relative(path)
	if err != nil {
		return graph.Delta{}, nil, err
	}
	ctx, span := tracer.Start(ctx, "manager.IndexFile", trace.WithAttributes(
		attribute.String("file", rel),
	))
	defer span.End()

	if m.matcher.ShouldIgnore(rel, false) {
		return graph.Delta{}, nil, nil
	}

	unlock := m.lockFile(rel)
	defer unlock()

	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		m.mu.Lock()
		m.touchLocked(rel)
		delta := m.removeLocked(rel)
		m.mu.Unlock()
		return delta, nil, nil
	}

	fs, issue := m.extract(abs, rel)
	if fs == nil {
		return graph.Delta{}, nil, nil
	}

	m.mu.Lock()
	m.touchLocked(rel)
	delta := m.store.ReplaceFile(fs)
	m.recordLocked(fs, issue)
	m.mu.Unlock()

	issues := make([]parser.Issue, 0, 1)
	failures := 0
	if issue != nil {
		issues = append(issues, *issue)
		failures = 1
	}
	recordIndexed(ctx, 1, failures)
	span.SetAttributes(
		attribute.Int("delta.added", len(delta.Added)),
		attribute.Int("delta.removed", len(delta.Removed)),
	)
	m.logger.Debug("indexed file",
		slog.String("file", rel),
		slog.Int("added", len(delta.Added)),
		slog.Int("removed", len(delta.Removed)))
	return delta, issues, nil
}

// RemoveFile drops a primary file's symbols and edges.
func (m *Manager) RemoveFile(path string) (graph.Delta, error) {
	rel, _, err := m.relative(path)
	if err != nil {
		return graph.Delta{}, err
	}
	unlock := m.lockFile(rel)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(rel)
	return m.removeLocked(rel), nil
}

// IndexAll walks the primary root and indexes every supported file with a
// worker pool. Extraction failures are returned as issues and do not stop
// the run; only cancellation does.
func (m *Manager) IndexAll(ctx context.Context) ([]parser.Issue, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "manager.IndexAll", trace.WithAttributes(
		attribute.String("root", m.root),
	))
	defer span.End()

	m.setStatus(Status{Phase: PhaseInitializing})
	m.mu.RLock()
	since := m.writes
	before := m.store.Files()
	m.mu.RUnlock()

	sources, issues := m.extractors.WalkSources(m.root, m.matcher, nil)
	m.progress(0, len(sources), "")

	results, fileIssues, err := m.extractAll(ctx, sources, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.setStatus(Status{Phase: PhaseFailed, Reason: err.Error()})
		return nil, fmt.Errorf("failed to index %s: %w", m.root, err)
	}

	current := make(map[string]bool, len(results))
	for _, fs := range results {
		current[fs.Path] = true
	}

	missing := make([]string, 0)
	for _, file := range before {
		if !current[file] {
			missing = append(missing, file)
		}
	}

	m.mu.Lock()
	results, removed := m.staleFilterLocked(since, results, missing)
	kept, keptIssues := state.NewState(), make(map[string][]parser.Issue)
	for file, rev := range m.touched {
		if rev > since {
			if fs, ok := m.state.Files[file]; ok {
				kept.Files[file] = fs
			}
			if pending, ok := m.fileIssues[file]; ok {
				keptIssues[file] = pending
			}
		}
	}
	m.store.Apply(results, removed)
	m.state = kept
	m.fileIssues = keptIssues
	for _, fs := range results {
		m.recordLocked(fs, fileIssues[fs.Path])
	}
	m.mu.Unlock()

	for _, issue := range fileIssues {
		issues = append(issues, *issue)
	}
	parser.SortIssues(issues)

	m.saveState()
	m.setStatus(Status{Phase: PhaseReady})

	recordIndexed(ctx, len(results), len(fileIssues))
	recordIndexRun(ctx, "full", time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("index.files", len(results)),
		attribute.Int("index.issues", len(issues)),
	)
	m.logger.Info("indexed primary project",
		slog.String("root", m.root),
		slog.Int("files", len(results)),
		slog.Int("issues", len(issues)),
		slog.Duration("duration", time.Since(start)))
	return issues, nil
}

// Refresh re-indexes only files whose content hash changed since the last
// index and removes files that disappeared.
func (m *Manager) Refresh(ctx context.Context) (RefreshSummary, []parser.Issue, error) {
	if phase := m.Status().Phase; phase != PhaseReady {
		return RefreshSummary{}, nil, fmt.Errorf("%w: %s", ErrNotReady, phase)
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "manager.Refresh")
	defer span.End()

	m.mu.RLock()
	since := m.writes
	m.mu.RUnlock()

	sources, issues := m.extractors.WalkSources(m.root, m.matcher, nil)
	hashes := make(map[string]string, len(sources))
	current := make(map[string]bool, len(sources))
	for _, src := range sources {
		hash, err := fileutil.HashFile(src.Path)
		if err != nil {
			issues = append(issues, parser.Issue{
				File:     src.RelPath,
				Language: src.Language,
				Kind:     parser.IssueParseFailure,
				Severity: "warning",
				Message:  fmt.Sprintf("failed to hash file: %v", err),
			})
			continue
		}
		hashes[src.RelPath] = hash
		current[src.RelPath] = true
	}

	m.mu.RLock()
	changed := m.state.ChangedFiles(hashes)
	deleted := m.state.DeletedFiles(current)
	m.mu.RUnlock()

	wanted := make(map[string]bool, len(changed))
	for _, file := range changed {
		wanted[file] = true
	}
	toIndex := make([]parser.SourceFile, 0, len(changed))
	for _, src := range sources {
		if wanted[src.RelPath] {
			toIndex = append(toIndex, src)
		}
	}

	results, fileIssues, err := m.extractAll(ctx, toIndex, false)
	if err != nil {
		span.RecordError(err)
		return RefreshSummary{}, nil, fmt.Errorf("failed to refresh %s: %w", m.root, err)
	}

	m.mu.Lock()
	results, deleted = m.staleFilterLocked(since, results, deleted)
	delta := m.store.Apply(results, deleted)
	for _, fs := range results {
		m.recordLocked(fs, fileIssues[fs.Path])
	}
	for _, file := range deleted {
		m.state.RemoveFile(file)
		delete(m.fileIssues, file)
	}
	m.mu.Unlock()

	for _, issue := range fileIssues {
		issues = append(issues, *issue)
	}
	parser.SortIssues(issues)
	m.saveState()

	summary := RefreshSummary{
		Indexed:   len(results),
		Removed:   len(deleted),
		Unchanged: len(hashes) - len(changed),
		Delta:     delta,
	}
	recordIndexed(ctx, len(results), len(fileIssues))
	recordIndexRun(ctx, "incremental", time.Since(start).Seconds())
	m.logger.Info("refreshed primary project",
		slog.Int("indexed", summary.Indexed),
		slog.Int("removed", summary.Removed),
		slog.Int("unchanged", summary.Unchanged))
	return summary, issues, nil
}

// Bootstrap indexes the primary project and builds every configured
// auxiliary catalog in parallel.
func (m *Manager) Bootstrap(ctx context.Context) ([]parser.Issue, error) {
	var (
		g             errgroup.Group
		primaryIssues []parser.Issue
		projectIssues []parser.Issue
	)
	g.Go(func() error {
		issues, err := m.IndexAll(ctx)
		primaryIssues = issues
		return err
	})
	g.Go(func() error {
		projectIssues = m.BuildAll(ctx)
		return nil
	})
	err := g.Wait()

	issues := append(primaryIssues, projectIssues...)
	return issues, err
}

// extractAll runs the extractors over sources with a bounded pool. Every
// supported file yields a result; failures yield an empty one plus an issue.
func (m *Manager) extractAll(ctx context.Context, sources []parser.SourceFile, track bool) ([]*parser.FileSymbols, map[string]*parser.Issue, error) {
	results := make([]*parser.FileSymbols, len(sources))
	issues := make([]*parser.Issue, len(sources))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unlock := m.lockFile(src.RelPath)
			results[i], issues[i] = m.extract(src.Path, src.RelPath)
			unlock()
			if track {
				m.progress(int(processed.Add(1)), len(sources), src.RelPath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]*parser.FileSymbols, 0, len(results))
	failed := make(map[string]*parser.Issue)
	for i, fs := range results {
		if fs == nil {
			continue
		}
		out = append(out, fs)
		if issues[i] != nil {
			failed[fs.Path] = issues[i]
		}
	}
	return out, failed, nil
}

// extract returns nil, nil for unsupported files.
func (m *Manager) extract(abs, rel string) (*parser.FileSymbols, *parser.Issue) {
	lang, ok := m.extractors.LanguageForFile(abs)
	if !ok {
		return nil, nil
	}
	fs, err := m.extractors.ExtractFile(abs, rel, parser.ModeFull)
	if err != nil {
		m.logger.Warn("failed to extract file",
			slog.String("file", rel),
			slog.String("language", lang),
			slog.String("error", err.Error()))
		return &parser.FileSymbols{Path: rel, Language: lang}, &parser.Issue{
			File:     rel,
			Language: lang,
			Kind:     parser.IssueParseFailure,
			Severity: "warning",
			Message:  err.Error(),
		}
	}
	if fs == nil {
		return nil, nil
	}
	parser.AssignIDs("", fs)
	return fs, nil
}

// touchLocked marks rel as written by a single-file update. Callers hold
// m.mu.
func (m *Manager) touchLocked(rel string) {
	m.writes++
	m.touched[rel] = m.writes
}

// staleFilterLocked drops batch results for files that IndexFile or
// RemoveFile wrote after the batch started at since, and keeps only
// removals for files that are still absent from disk and were not written
// since. Callers hold m.mu.
func (m *Manager) staleFilterLocked(since uint64, results []*parser.FileSymbols, removals []string) ([]*parser.FileSymbols, []string) {
	fresh := make([]*parser.FileSymbols, 0, len(results))
	for _, fs := range results {
		if m.touched[fs.Path] > since {
			m.logger.Debug("skipping batch result superseded by a newer write", slog.String("file", fs.Path))
			continue
		}
		fresh = append(fresh, fs)
	}
	gone := make([]string, 0, len(removals))
	for _, file := range removals {
		if m.touched[file] > since {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(file))); err == nil {
			continue
		}
		gone = append(gone, file)
	}
	return fresh, gone
}

// recordLocked updates per-file bookkeeping. Callers hold m.mu.
func (m *Manager) recordLocked(fs *parser.FileSymbols, issue *parser.Issue) {
	if issue != nil {
		m.fileIssues[fs.Path] = []parser.Issue{*issue}
	} else {
		delete(m.fileIssues, fs.Path)
	}
	m.state.SetFile(fs.Path, fs.Hash, fs.Language, len(fs.Symbols))
}

// removeLocked drops a file everywhere. Callers hold m.mu.
func (m *Manager) removeLocked(rel string) graph.Delta {
	delete(m.fileIssues, rel)
	m.state.RemoveFile(rel)
	if !m.store.HasFile(rel) {
		return graph.Delta{}
	}
	return m.store.RemoveFile(rel)
}

// SaveState writes the file hash snapshot to dir.
func (m *Manager) SaveState(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.Save(dir); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (m *Manager) saveState() {
	if m.opts.StateDir == "" {
		return
	}
	if err := m.SaveState(m.opts.StateDir); err != nil {
		m.logger.Warn("failed to persist index state", slog.String("error", err.Error()))
	}
}
