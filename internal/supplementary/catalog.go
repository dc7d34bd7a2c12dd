// Package supplementary builds read-only symbol catalogs for auxiliary
// projects. A catalog keeps declarations indexed by FQN, name and file;
// it holds no references, bodies or edges.
package supplementary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/skelly-dev/codegraph/internal/ignore"
	"github.com/skelly-dev/codegraph/internal/parser"
)

var tracer = otel.Tracer("codegraph.supplementary")

var (
	ErrProjectDisabled    = errors.New("project is disabled")
	ErrProjectRootMissing = errors.New("project root does not exist")
)

// ProjectConfig describes one auxiliary project.
type ProjectConfig struct {
	Name      string   `json:"name"`
	Root      string   `json:"root"`
	Enabled   bool     `json:"enabled"`
	Priority  int      `json:"priority"`            // higher wins FQN collisions
	Languages []string `json:"languages,omitempty"` // empty allows every supported language
}

// AllowsLanguage reports whether lang passes the project's allow-list.
func (c ProjectConfig) AllowsLanguage(lang string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, allowed := range c.Languages {
		if strings.EqualFold(strings.TrimSpace(allowed), lang) {
			return true
		}
	}
	return false
}

// SymbolInfo is a declaration from an auxiliary project.
type SymbolInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	FQN       string            `json:"fqn"`
	Kind      parser.SymbolKind `json:"kind"`
	Signature string            `json:"signature,omitempty"`
	File      string            `json:"file"`
	Line      int               `json:"line"`
	EndLine   int               `json:"end_line"`
	Parent    string            `json:"parent,omitempty"`
	Params    int               `json:"params,omitempty"`
	Project   string            `json:"project"`
}

// Namespace returns the FQN prefix that encloses the symbol.
func (s SymbolInfo) Namespace() string {
	if idx := strings.LastIndex(s.FQN, "."); idx != -1 {
		return s.FQN[:idx]
	}
	return ""
}

// AsSymbol converts the catalog entry back to the shared symbol shape.
func (s SymbolInfo) AsSymbol() parser.Symbol {
	return parser.Symbol{
		ID:        s.ID,
		Name:      s.Name,
		Kind:      s.Kind,
		FQN:       s.FQN,
		Signature: s.Signature,
		File:      s.File,
		Line:      s.Line,
		EndLine:   s.EndLine,
		Parent:    s.Parent,
		Project:   s.Project,
		Params:    s.Params,
	}
}

func infoFromSymbol(sym parser.Symbol) SymbolInfo {
	fqn := sym.FQN
	if fqn == "" {
		fqn = qualify(sym.Project, sym.Parent, sym.Name)
	}
	return SymbolInfo{
		ID:        sym.ID,
		Name:      sym.Name,
		FQN:       fqn,
		Kind:      sym.Kind,
		Signature: sym.Signature,
		File:      sym.File,
		Line:      sym.Line,
		EndLine:   sym.EndLine,
		Parent:    sym.Parent,
		Params:    sym.Params,
		Project:   sym.Project,
	}
}

// FileInfo is what a catalog remembers about a file besides its symbols.
type FileInfo struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Imports  []string `json:"imports,omitempty"`
}

// Catalog is the immutable symbol index of one auxiliary project.
type Catalog struct {
	Config ProjectConfig

	byFQN    map[string]SymbolInfo
	byName   map[string][]SymbolInfo
	byFile   map[string][]SymbolInfo
	byParent map[string][]SymbolInfo
	files    map[string]FileInfo
	symbols  int
	duration time.Duration
}

// BuildStats reports the size of a built catalog.
type BuildStats struct {
	Project     string        `json:"project"`
	FileCount   int           `json:"file_count"`
	SymbolCount int           `json:"symbol_count"`
	Duration    time.Duration `json:"duration"`
}

func (c *Catalog) Stats() BuildStats {
	return BuildStats{
		Project:     c.Config.Name,
		FileCount:   len(c.files),
		SymbolCount: c.symbols,
		Duration:    c.duration,
	}
}

// NewCatalog indexes already extracted files. Symbols must carry IDs and
// the project tag; later duplicates of an FQN lose to the first by file
// then line.
func NewCatalog(cfg ProjectConfig, files []*parser.FileSymbols) *Catalog {
	c := &Catalog{
		Config:   cfg,
		byFQN:    make(map[string]SymbolInfo),
		byName:   make(map[string][]SymbolInfo),
		byFile:   make(map[string][]SymbolInfo),
		byParent: make(map[string][]SymbolInfo),
		files:    make(map[string]FileInfo),
	}

	sorted := make([]*parser.FileSymbols, 0, len(files))
	for _, fs := range files {
		if fs != nil {
			sorted = append(sorted, fs)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, fs := range sorted {
		c.files[fs.Path] = FileInfo{Path: fs.Path, Language: fs.Language, Imports: fs.Imports}
		for _, sym := range fs.Symbols {
			info := infoFromSymbol(sym)
			c.symbols++
			c.byFile[fs.Path] = append(c.byFile[fs.Path], info)
			c.byName[info.Name] = append(c.byName[info.Name], info)
			if info.Parent != "" {
				c.byParent[info.Parent] = append(c.byParent[info.Parent], info)
			}
			if _, exists := c.byFQN[info.FQN]; !exists {
				c.byFQN[info.FQN] = info
			}
		}
	}
	return c
}

// BuildOptions tunes catalog extraction.
type BuildOptions struct {
	Workers int
	Ignore  []string
	Logger  *slog.Logger
}

// Build enumerates the project's supported files and extracts them in
// symbols-only mode. Files that fail to extract are reported as issues and
// skipped. A missing root or disabled project is an error.
func Build(ctx context.Context, extractors *parser.Registry, cfg ProjectConfig, opts BuildOptions) (*Catalog, []parser.Issue, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return nil, nil, fmt.Errorf("%w: %s", ErrProjectDisabled, cfg.Name)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrProjectRootMissing, cfg.Name, cfg.Root)
	}

	ctx, span := tracer.Start(ctx, "supplementary.Build", trace.WithAttributes(
		attribute.String("project.name", cfg.Name),
	))
	defer span.End()
	start := time.Now()

	matcher, err := ignore.ForRoot(cfg.Root, opts.Ignore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("failed to load ignore rules for %s: %w", cfg.Name, err)
	}

	sources, issues := extractors.WalkSources(cfg.Root, matcher, cfg.AllowsLanguage)
	for i := range issues {
		issues[i].Project = cfg.Name
	}

	results := make([]*parser.FileSymbols, len(sources))
	fileIssues := make([]*parser.Issue, len(sources))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fs, err := extractors.ExtractFile(src.Path, src.RelPath, parser.ModeSymbolsOnly)
			if err != nil {
				fileIssues[i] = &parser.Issue{
					File:     src.RelPath,
					Language: src.Language,
					Project:  cfg.Name,
					Kind:     parser.IssueParseFailure,
					Severity: "warning",
					Message:  err.Error(),
				}
				return nil
			}
			if fs == nil {
				return nil
			}
			parser.AssignIDs(cfg.Name, fs)
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	for _, issue := range fileIssues {
		if issue != nil {
			logger.Warn("failed to extract auxiliary file",
				slog.String("project", cfg.Name),
				slog.String("file", issue.File),
				slog.String("error", issue.Message))
			issues = append(issues, *issue)
		}
	}
	parser.SortIssues(issues)

	catalog := NewCatalog(cfg, results)
	catalog.duration = time.Since(start)

	stats := catalog.Stats()
	span.SetAttributes(
		attribute.Int("project.file_count", stats.FileCount),
		attribute.Int("project.symbol_count", stats.SymbolCount),
	)
	logger.Info("built auxiliary catalog",
		slog.String("project", cfg.Name),
		slog.Int("files", stats.FileCount),
		slog.Int("symbols", stats.SymbolCount),
		slog.Duration("duration", stats.Duration))
	return catalog, issues, nil
}

// BuildAll builds every project in parallel. Projects that are disabled or
// misconfigured are reported once as configuration issues and left out.
func BuildAll(ctx context.Context, extractors *parser.Registry, cfgs []ProjectConfig, opts BuildOptions) ([]*Catalog, []parser.Issue) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalogs := make([]*Catalog, len(cfgs))
	perProject := make([][]parser.Issue, len(cfgs))

	var g errgroup.Group
	for i, cfg := range cfgs {
		g.Go(func() error {
			catalog, issues, err := Build(ctx, extractors, cfg, opts)
			if err != nil {
				logger.Warn("skipping auxiliary project",
					slog.String("project", cfg.Name),
					slog.String("error", err.Error()))
				issues = append(issues, ConfigurationIssue(cfg.Name, err))
			}
			catalogs[i] = catalog
			perProject[i] = issues
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Catalog, 0, len(cfgs))
	for _, c := range catalogs {
		if c != nil {
			out = append(out, c)
		}
	}
	issues := make([]parser.Issue, 0)
	for _, projectIssues := range perProject {
		issues = append(issues, projectIssues...)
	}
	return out, issues
}

// ConfigurationIssue wraps a project setup error as a diagnostic.
func ConfigurationIssue(project string, err error) parser.Issue {
	severity := "error"
	if errors.Is(err, ErrProjectDisabled) {
		severity = "warning"
	}
	return parser.Issue{
		Project:  project,
		Kind:     parser.IssueConfigurationError,
		Severity: severity,
		Message:  err.Error(),
	}
}

// AbsRoot returns the project root as an absolute, cleaned path.
func (c ProjectConfig) AbsRoot() string {
	if abs, err := filepath.Abs(c.Root); err == nil {
		return abs
	}
	return filepath.Clean(c.Root)
}

func qualify(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ".")
}
