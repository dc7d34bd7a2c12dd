// Package manager owns the primary symbol store, the supplementary
// registry and the cross-project resolver, and serves every query over
// them. Queries share a read lock; indexing and registry rebuilds take the
// write lock only to merge already extracted results.
package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/ignore"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/resolve"
	"github.com/skelly-dev/codegraph/internal/search"
	"github.com/skelly-dev/codegraph/internal/state"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

var (
	ErrNotReady        = errors.New("graph is not ready")
	ErrFileOutsideRoot = errors.New("file is outside the primary root")
	ErrUnknownProject  = errors.New("unknown auxiliary project")
)

// Options configures a Manager.
type Options struct {
	Root         string
	Ignore       []string
	Workers      int
	Projects     []supplementary.ProjectConfig
	CacheSize    int
	Redistribute bool   // skeleton budget redistribution
	StateDir     string // when set, file hashes are saved here after indexing
	Logger       *slog.Logger
}

// Manager is the single owner of graph state. Create one per root with New.
type Manager struct {
	root       string
	opts       Options
	logger     *slog.Logger
	extractors *parser.Registry
	matcher    *ignore.Matcher

	mu       sync.RWMutex
	store    *graph.Store
	registry *supplementary.Registry
	projects map[string]supplementary.ProjectConfig
	state    *state.State

	// writes counts single-file updates; touched holds the count at each
	// path's latest IndexFile or RemoveFile. Batch runs compare against it.
	writes  uint64
	touched map[string]uint64

	fileIssues    map[string][]parser.Issue
	projectIssues map[string][]parser.Issue

	resolver *resolve.Resolver
	flight   singleflight.Group
	crossMu  sync.Mutex
	cross    crossSnapshot

	searchMu sync.Mutex
	search   searchSnapshot

	statusMu sync.RWMutex
	status   Status

	locksMu   sync.Mutex
	fileLocks map[string]*sync.Mutex
}

type searchSnapshot struct {
	key   string
	index *search.Index
}

type crossSnapshot struct {
	key    string
	result resolve.Result
}

// New creates a manager for the primary root. Nothing is indexed until
// IndexAll, Bootstrap or IndexFile is called.
func New(extractors *parser.Registry, opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", opts.Root, err)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	matcher, err := ignore.ForRoot(root, opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}
	resolver, err := resolve.New(opts.CacheSize, logger)
	if err != nil {
		return nil, err
	}

	projects := make(map[string]supplementary.ProjectConfig, len(opts.Projects))
	for _, cfg := range opts.Projects {
		projects[cfg.Name] = cfg
	}

	return &Manager{
		root:          root,
		opts:          opts,
		logger:        logger,
		extractors:    extractors,
		matcher:       matcher,
		store:         graph.NewStore(),
		registry:      supplementary.NewRegistry(),
		projects:      projects,
		state:         state.NewState(),
		touched:       make(map[string]uint64),
		fileIssues:    make(map[string][]parser.Issue),
		projectIssues: make(map[string][]parser.Issue),
		resolver:      resolver,
		fileLocks:     make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the absolute primary root.
func (m *Manager) Root() string { return m.root }

// Ignored reports whether a primary path is excluded from indexing.
func (m *Manager) Ignored(relPath string, isDir bool) bool {
	return m.matcher.ShouldIgnore(relPath, isDir)
}

// Supported reports whether some extractor handles the file.
func (m *Manager) Supported(path string) bool {
	_, ok := m.extractors.ExtractorForFile(path)
	return ok
}

// Diagnostics returns every outstanding issue: per-file extraction
// failures, project configuration errors and ambiguous resolutions from
// the latest cross-project pass.
func (m *Manager) Diagnostics() []parser.Issue {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]parser.Issue, 0)
	for _, issues := range m.fileIssues {
		out = append(out, issues...)
	}
	for _, issues := range m.projectIssues {
		out = append(out, issues...)
	}
	m.crossMu.Lock()
	out = append(out, m.cross.result.Issues...)
	m.crossMu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// relative maps a path given by a caller to the primary root. Relative
// paths are taken as relative to the root.
func (m *Manager) relative(path string) (rel, abs string, err error) {
	abs = path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.root, path)
	}
	abs = filepath.Clean(abs)
	r, err := filepath.Rel(m.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", ErrFileOutsideRoot, path)
	}
	return filepath.ToSlash(r), abs, nil
}

// lockFile serializes work on one primary file and returns the unlock.
func (m *Manager) lockFile(rel string) func() {
	m.locksMu.Lock()
	l, ok := m.fileLocks[rel]
	if !ok {
		l = &sync.Mutex{}
		m.fileLocks[rel] = l
	}
	m.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}
