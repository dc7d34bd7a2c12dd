// Package watch re-indexes primary files as they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

const (
	DefaultDebounce   = 100 * time.Millisecond
	defaultBufferSize = 1000
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return "unknown"
}

// Change is one debounced file event.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Target is what the watcher keeps up to date. *manager.Manager satisfies it.
type Target interface {
	Root() string
	Ignored(relPath string, isDir bool) bool
	Supported(path string) bool
	IndexFile(ctx context.Context, path string) (graph.Delta, []parser.Issue, error)
	RemoveFile(path string) (graph.Delta, error)
}

// Options configures a Watcher.
type Options struct {
	Debounce   time.Duration
	BufferSize int
	Logger     *slog.Logger
	// OnBatch, when set, is called after each batch has been applied.
	OnBatch func(changes []Change, issues []parser.Issue)
}

// Watcher batches fsnotify events under the target root and applies them
// with IndexFile and RemoveFile. Batches are applied from one goroutine.
type Watcher struct {
	target   Target
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onBatch  func([]Change, []parser.Issue)

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

func New(target Target, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		target:   target,
		root:     target.Root(),
		fsw:      fsw,
		debounce: opts.Debounce,
		logger:   logger,
		onBatch:  opts.OnBatch,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the root and every non-ignored directory below it. It
// returns once the watches are registered; events are handled until ctx
// is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	w.logger.Info("watching primary root", slog.String("root", w.root))
	return nil
}

// Stop ends watching and waits for the pending batch to be applied.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.wg.Wait()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	return w.target.Ignored(filepath.ToSlash(rel), isDir)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.ignored(event.Name, true) {
						if err := w.addRecursive(event.Name); err != nil {
							w.logger.Warn("failed to watch new directory",
								slog.String("dir", event.Name),
								slog.String("error", err.Error()))
						}
					}
					continue
				}
			}
			if !w.target.Supported(event.Name) || w.ignored(event.Name, false) {
				continue
			}
			change := Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("dropped file change, buffer full", slog.String("file", event.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	}
	return OpWrite
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var (
		batch  []Change
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if len(batch) > 0 {
			w.apply(ctx, dedupe(batch))
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// apply decides from the disk rather than the event op, since editors
// often save through a rename.
func (w *Watcher) apply(ctx context.Context, changes []Change) {
	// A cancelled ctx still lets the final batch through.
	ctx = context.WithoutCancel(ctx)
	var issues []parser.Issue
	for _, change := range changes {
		if _, err := os.Stat(change.Path); errors.Is(err, os.ErrNotExist) {
			if _, err := w.target.RemoveFile(change.Path); err != nil {
				w.logger.Warn("failed to remove file", slog.String("file", change.Path), slog.String("error", err.Error()))
			}
			continue
		}
		_, fileIssues, err := w.target.IndexFile(ctx, change.Path)
		if err != nil {
			w.logger.Warn("failed to index file", slog.String("file", change.Path), slog.String("error", err.Error()))
			continue
		}
		issues = append(issues, fileIssues...)
	}
	w.logger.Debug("applied file changes", slog.Int("changes", len(changes)), slog.Int("issues", len(issues)))
	if w.onBatch != nil {
		w.onBatch(changes, issues)
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
