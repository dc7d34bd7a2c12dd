package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/resolve"
	"github.com/skelly-dev/codegraph/internal/search"
	"github.com/skelly-dev/codegraph/internal/skeleton"
	"github.com/skelly-dev/codegraph/internal/supplementary"
	"github.com/skelly-dev/codegraph/internal/traverse"
)

// Related-files skeleton bounds.
const (
	DefaultMaxTokens = 4000
	MinMaxTokens     = 100
	MaxMaxTokens     = 20000
	DefaultMaxDepth  = 3
	MaxMaxDepth      = 10
)

// strongConfidence separates strong cross-project relationships from weak ones.
const strongConfidence = 0.5

// Definitions lists every declaration of a name.
type Definitions struct {
	Primary   []parser.Symbol            `json:"primary"`
	Auxiliary []supplementary.SymbolInfo `json:"auxiliary"`
	// Suggestions holds near matches when neither side has an exact one.
	Suggestions []search.Result `json:"suggestions,omitempty"`
}

// References gathers the uses of a name inside the primary project and
// the cross-project edges that touch it.
type References struct {
	Internal []parser.Reference         `json:"internal"`
	Cross    []resolve.CrossProjectEdge `json:"cross_project"`
	Summary  ReferenceSummary           `json:"summary"`
}

type ReferenceSummary struct {
	Internal          int      `json:"internal"`
	CrossProject      int      `json:"cross_project"`
	Strong            int      `json:"strong"`
	BoundariesCrossed []string `json:"boundaries_crossed"`
}

// RelatedSkeletons is the combined result of related_files and skeletons.
type RelatedSkeletons struct {
	Related   traverse.Result          `json:"related"`
	Skeletons []skeleton.FileSkeleton `json:"skeletons"`
	MaxTokens int                      `json:"max_tokens"`
	MaxDepth  int                      `json:"max_depth"`
}

// Stats summarizes every component.
type Stats struct {
	Status   Status              `json:"status"`
	Graph    graph.Stats         `json:"graph"`
	Registry supplementary.Stats `json:"registry"`
	Resolver resolve.Metrics     `json:"resolver"`
	Issues   int                 `json:"issues"`
}

// FindDefinitions looks a name up in the primary store and the registry.
// A dotted name is also tried as an FQN.
func (m *Manager) FindDefinitions(name string) Definitions {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := Definitions{
		Primary:   m.store.LookupByName(name),
		Auxiliary: m.registry.LookupName(name),
	}
	if strings.Contains(name, ".") {
		seen := make(map[string]bool, len(defs.Primary))
		for _, sym := range defs.Primary {
			seen[sym.ID] = true
		}
		for _, sym := range m.store.LookupByFQN(name) {
			if !seen[sym.ID] {
				defs.Primary = append(defs.Primary, sym)
			}
		}
		if info, ok := m.registry.LookupFQN(name); ok {
			defs.Auxiliary = append([]supplementary.SymbolInfo{info}, defs.Auxiliary...)
		}
	}
	if len(defs.Primary) == 0 && len(defs.Auxiliary) == 0 {
		defs.Suggestions = m.searchIndexLocked().Search(name, maxSuggestions)
	}
	return defs
}

const maxSuggestions = 5

// searchIndexLocked returns the suggestion index for the current store and
// registry generations, rebuilding it when either has changed. Callers hold
// m.mu.
func (m *Manager) searchIndexLocked() *search.Index {
	key := fmt.Sprintf("%d/%d", m.store.Generation(), m.registry.Generation())

	m.searchMu.Lock()
	defer m.searchMu.Unlock()
	if m.search.index != nil && m.search.key == key {
		return m.search.index
	}

	docs := make([]search.Document, 0)
	for _, file := range m.store.Files() {
		for _, sym := range m.store.SymbolsInFile(file) {
			docs = append(docs, search.Document{
				ID:        sym.ID,
				Name:      sym.Name,
				Kind:      sym.Kind.String(),
				Signature: sym.Signature,
				File:      sym.File,
				Line:      sym.Line,
				Doc:       sym.Doc,
			})
		}
	}
	for _, project := range m.registry.Projects() {
		for _, info := range m.registry.SymbolsInProject(project.Name) {
			docs = append(docs, search.Document{
				ID:        project.Name + ":" + info.ID,
				Name:      info.Name,
				Kind:      info.Kind.String(),
				Signature: info.Signature,
				File:      info.File,
				Project:   info.Project,
				Line:      info.Line,
			})
		}
	}
	m.search = searchSnapshot{key: key, index: search.Build(docs)}
	return m.search.index
}

// FindReferences returns internal references to name plus the
// cross-project edges whose source reference or target is name.
func (m *Manager) FindReferences(ctx context.Context, name string) References {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := References{
		Internal: m.store.ReferencesTo(name),
		Cross:    make([]resolve.CrossProjectEdge, 0),
	}
	projects := make(map[string]bool)
	for _, edge := range m.crossEdgesLocked(ctx).Edges {
		if edge.Reference != name && edge.TargetName != name && edge.TargetFQN != name {
			continue
		}
		refs.Cross = append(refs.Cross, edge)
		projects[edge.TargetProject] = true
		if edge.Confidence > strongConfidence {
			refs.Summary.Strong++
		}
	}
	refs.Summary.Internal = len(refs.Internal)
	refs.Summary.CrossProject = len(refs.Cross)
	refs.Summary.BoundariesCrossed = make([]string, 0, len(projects))
	for project := range projects {
		refs.Summary.BoundariesCrossed = append(refs.Summary.BoundariesCrossed, project)
	}
	sort.Strings(refs.Summary.BoundariesCrossed)
	return refs
}

// CrossProjectEdges returns the current cross-project overlay. It is
// computed once per store and registry generation; concurrent callers
// share one computation.
func (m *Manager) CrossProjectEdges(ctx context.Context) resolve.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.crossEdgesLocked(ctx)
}

// crossEdgesLocked requires at least the read lock.
func (m *Manager) crossEdgesLocked(ctx context.Context) resolve.Result {
	key := fmt.Sprintf("%d/%d", m.store.Generation(), m.registry.Generation())

	m.crossMu.Lock()
	if m.cross.key == key {
		result := m.cross.result
		m.crossMu.Unlock()
		return result
	}
	m.crossMu.Unlock()

	value, _, _ := m.flight.Do(key, func() (any, error) {
		result := m.resolver.Resolve(ctx, m.store, m.registry)
		m.crossMu.Lock()
		m.cross = crossSnapshot{key: key, result: result}
		m.crossMu.Unlock()
		return result, nil
	})
	return value.(resolve.Result)
}

// RelatedFiles walks outward from seeds. Seeds are primary paths (relative
// to the root or absolute), absolute paths inside an auxiliary root, or
// "project:path" for auxiliary files.
func (m *Manager) RelatedFiles(ctx context.Context, seeds []string, maxDepth int) (traverse.Result, error) {
	ctx, span := tracer.Start(ctx, "manager.RelatedFiles")
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	refs, err := m.fileRefsLocked(seeds)
	if err != nil {
		return traverse.Result{}, err
	}
	cross := traverse.IndexCrossEdges(m.crossEdgesLocked(ctx).Edges)
	result := traverse.RelatedFiles(ctx, m.store, cross, refs, maxDepth)
	span.SetAttributes(attribute.Int("seeds", len(refs)))
	return result, nil
}

// Skeletons renders the files within budget tokens; budget <= 0 is unlimited.
func (m *Manager) Skeletons(ctx context.Context, files []string, budget int) ([]skeleton.FileSkeleton, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs, err := m.fileRefsLocked(files)
	if err != nil {
		return nil, err
	}
	return m.skeletonsLocked(ctx, refs, budget), nil
}

// RelatedFilesSkeleton runs RelatedFiles then Skeletons over the result.
// maxTokens is clamped to [MinMaxTokens, MaxMaxTokens] (0 selects the
// default) and maxDepth to [0, MaxMaxDepth].
func (m *Manager) RelatedFilesSkeleton(ctx context.Context, seeds []string, maxTokens, maxDepth int) (RelatedSkeletons, error) {
	maxTokens = ClampTokens(maxTokens)
	maxDepth = ClampDepth(maxDepth)

	m.mu.RLock()
	defer m.mu.RUnlock()

	refs, err := m.fileRefsLocked(seeds)
	if err != nil {
		return RelatedSkeletons{}, err
	}
	cross := traverse.IndexCrossEdges(m.crossEdgesLocked(ctx).Edges)
	related := traverse.RelatedFiles(ctx, m.store, cross, refs, maxDepth)

	files := make([]traverse.FileRef, 0, len(related.Primary)+len(related.Auxiliary))
	for _, path := range related.Primary {
		files = append(files, traverse.FileRef{Path: path})
	}
	files = append(files, related.Auxiliary...)

	return RelatedSkeletons{
		Related:   related,
		Skeletons: m.skeletonsLocked(ctx, files, maxTokens),
		MaxTokens: maxTokens,
		MaxDepth:  maxDepth,
	}, nil
}

// ClampTokens applies the related-files skeleton token bounds.
func ClampTokens(n int) int {
	switch {
	case n == 0:
		return DefaultMaxTokens
	case n < MinMaxTokens:
		return MinMaxTokens
	case n > MaxMaxTokens:
		return MaxMaxTokens
	}
	return n
}

// ClampDepth bounds a traversal depth to [0, MaxMaxDepth].
func ClampDepth(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxMaxDepth:
		return MaxMaxDepth
	}
	return n
}

// Subgraph returns primary symbols reachable from definitions of name.
func (m *Manager) Subgraph(name string, maxDepth int) []parser.Symbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Subgraph(name, ClampDepth(maxDepth))
}

// Stats reports sizes and counters of every component.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	stats := Stats{
		Status:   m.Status(),
		Graph:    m.store.Stats(),
		Registry: m.registry.Stats(),
		Resolver: m.resolver.Metrics(),
	}
	m.mu.RUnlock()
	stats.Issues = len(m.Diagnostics())
	return stats
}

// ResolverMetrics returns the resolver cache counters.
func (m *Manager) ResolverMetrics() resolve.Metrics {
	return m.resolver.Metrics()
}

// ClearResolverCache drops cached classifications and the current overlay.
func (m *Manager) ClearResolverCache() {
	m.resolver.ClearCache()
	m.crossMu.Lock()
	m.cross = crossSnapshot{}
	m.crossMu.Unlock()
}

func (m *Manager) fileRefsLocked(paths []string) ([]traverse.FileRef, error) {
	out := make([]traverse.FileRef, 0, len(paths))
	for _, path := range paths {
		ref, err := m.fileRefLocked(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (m *Manager) fileRefLocked(path string) (traverse.FileRef, error) {
	if project, rest, ok := strings.Cut(path, ":"); ok && m.registry.HasProject(project) {
		return traverse.FileRef{Project: project, Path: filepath.ToSlash(strings.TrimPrefix(rest, "/"))}, nil
	}
	rel, _, err := m.relative(path)
	if err == nil {
		return traverse.FileRef{Path: rel}, nil
	}
	if filepath.IsAbs(path) {
		if project, auxRel, ok := m.registry.ProjectForFile(filepath.Clean(path)); ok {
			return traverse.FileRef{Project: project, Path: auxRel}, nil
		}
	}
	return traverse.FileRef{}, err
}

func (m *Manager) skeletonsLocked(ctx context.Context, refs []traverse.FileRef, budget int) []skeleton.FileSkeleton {
	cross := m.crossEdgesLocked(ctx)
	annotations := make(map[string]skeleton.Annotation)
	for _, edge := range cross.Edges {
		from := annotations[edge.From]
		if edge.Method == resolve.MethodStructural {
			from.Structural = true
		} else {
			from.ResolvedSource = true
		}
		annotations[edge.From] = from

		to := annotations[edge.To]
		to.CrossReferenced = true
		annotations[edge.To] = to
	}

	files := make([]skeleton.File, 0, len(refs))
	for _, ref := range refs {
		files = append(files, m.skeletonFileLocked(ref))
	}
	return skeleton.Synthesize(ctx, files, budget, skeleton.Options{
		Redistribute: m.opts.Redistribute,
		Annotations:  annotations,
	})
}

func (m *Manager) skeletonFileLocked(ref traverse.FileRef) skeleton.File {
	if !ref.IsPrimary() {
		info, _ := m.registry.File(ref.Project, ref.Path)
		symbols := make([]parser.Symbol, 0)
		for _, sym := range m.registry.SymbolsInFile(ref.Project, ref.Path) {
			symbols = append(symbols, sym.AsSymbol())
		}
		return skeleton.File{
			Path:     ref.Path,
			Project:  ref.Project,
			Language: info.Language,
			Imports:  info.Imports,
			Symbols:  symbols,
		}
	}

	if fs, ok := m.store.File(ref.Path); ok {
		return skeleton.File{
			Path:     ref.Path,
			Language: fs.Language,
			Imports:  fs.Imports,
			Symbols:  m.store.SymbolsInFile(ref.Path),
		}
	}

	// not indexed yet: extract on the fly without touching the store
	file := skeleton.File{Path: ref.Path}
	if fs, _ := m.extract(filepath.Join(m.root, filepath.FromSlash(ref.Path)), ref.Path); fs != nil {
		file.Language = fs.Language
		file.Imports = fs.Imports
		file.Symbols = fs.Symbols
	}
	return file
}
