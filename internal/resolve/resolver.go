package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

// Confidence weights.
const (
	baseNameConfidence = 0.6
	importBonus        = 0.15
	containerBonus     = 0.1
	arityBonus         = 0.1
	maxNameConfidence  = 0.95

	weightSupertype = 0.6
	weightConstruct = 0.35
	weightReturns   = 0.25
	weightMemberUse = 0.2
	weightSignature = 0.1
)

// DefaultCacheSize bounds the structural classification cache.
const DefaultCacheSize = 1024

// Primary is the read side of the primary symbol store.
type Primary interface {
	Generation() uint64
	Files() []string
	File(path string) (*parser.FileSymbols, bool)
	LookupByName(name string) []parser.Symbol
	HasFQN(fqn string) bool
	IsUnresolved(ref parser.Reference) bool
	UnresolvedReferences() []parser.Reference
}

// Auxiliary is the read side of the supplementary registry.
type Auxiliary interface {
	Generation() uint64
	LookupFQN(fqn string) (supplementary.SymbolInfo, bool)
	LookupName(name string) []supplementary.SymbolInfo
	Members(project, typeName string) []supplementary.SymbolInfo
}

// Result is the outcome of a resolution run.
type Result struct {
	Edges      []CrossProjectEdge `json:"edges"`
	Unresolved []Unresolved       `json:"unresolved"`
	Issues     []parser.Issue     `json:"issues,omitempty"`
}

// Metrics reports structural cache usage.
type Metrics struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Queries     int64 `json:"queries"`
	CacheSize   int   `json:"cache_size"`
}

// Resolver produces cross-project edges. It is safe for concurrent use;
// its only state is the classification cache.
type Resolver struct {
	cache  *lru.Cache[string, []CrossProjectEdge]
	logger *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	queries atomic.Int64
}

// New creates a resolver with a classification cache of cacheSize entries.
func New(cacheSize int, logger *slog.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []CrossProjectEdge](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &Resolver{cache: cache, logger: logger}, nil
}

// Resolve runs both passes over every unresolved primary reference.
func (r *Resolver) Resolve(ctx context.Context, primary Primary, aux Auxiliary) Result {
	ctx, span := tracer.Start(ctx, "resolve.Resolve")
	defer span.End()

	result := r.ResolveUnresolvedReferences(ctx, primary.UnresolvedReferences(), primary, aux)
	result.Edges = append(result.Edges, r.ClassifyPairs(ctx, primary, aux)...)
	sortEdges(result.Edges)

	span.SetAttributes(
		attribute.Int("resolve.edges", len(result.Edges)),
		attribute.Int("resolve.unresolved", len(result.Unresolved)),
	)
	return result
}

// ResolveUnresolvedReferences matches each reference against the
// auxiliary registry: exact FQN first, then a unique bare-name candidate.
// References that still match a primary symbol are skipped. Two or more
// candidates remaining after import filtering leave the reference
// unresolved.
func (r *Resolver) ResolveUnresolvedReferences(ctx context.Context, refs []parser.Reference, primary Primary, aux Auxiliary) Result {
	r.queries.Add(1)

	ordered := append([]parser.Reference(nil), refs...)
	sortReferences(ordered)

	result := Result{
		Edges:      make([]CrossProjectEdge, 0),
		Unresolved: make([]Unresolved, 0),
	}
	ambiguous, noMatch := 0, 0
	for _, ref := range ordered {
		if ref.Kind == parser.RefImport || !primary.IsUnresolved(ref) {
			continue
		}
		fs, _ := primary.File(ref.File)

		if ref.FQN != "" {
			if info, ok := aux.LookupFQN(ref.FQN); ok {
				result.Edges = append(result.Edges, referenceEdge(ref, info, 1.0, MethodExactFQN))
				continue
			}
		}

		candidates := compatible(ref, aux.LookupName(ref.Name))
		if len(candidates) == 0 {
			noMatch++
			result.Unresolved = append(result.Unresolved, unresolved(ref, ReasonNoMatch, 0))
			continue
		}

		best, score, tied := pickCandidate(ref, fs, candidates)
		if tied > 1 {
			ambiguous++
			result.Unresolved = append(result.Unresolved, unresolved(ref, ReasonAmbiguous, tied))
			result.Issues = append(result.Issues, parser.Issue{
				File:     ref.File,
				Kind:     parser.IssueAmbiguousResolution,
				Severity: "warning",
				Message:  fmt.Sprintf("line %d: %s matches %d auxiliary symbols (%s)", ref.Line, ref.Name, tied, describe(candidates)),
			})
			continue
		}
		result.Edges = append(result.Edges, referenceEdge(ref, best, score, MethodNameHeuristic))
	}

	sortEdges(result.Edges)
	recordOutcomes(ctx, len(result.Edges), noMatch, ambiguous)
	if ambiguous > 0 {
		r.logger.Debug("ambiguous cross-project references left unresolved", slog.Int("count", ambiguous))
	}
	return result
}

// ClassifyPairs inspects primary symbols that share a name with an
// auxiliary symbol and emits an edge for every pair where a structural
// pattern fires in the primary symbol's span.
func (r *Resolver) ClassifyPairs(ctx context.Context, primary Primary, aux Auxiliary) []CrossProjectEdge {
	_, span := tracer.Start(ctx, "resolve.ClassifyPairs", trace.WithAttributes(
		attribute.Int64("primary.generation", int64(primary.Generation())),
		attribute.Int64("auxiliary.generation", int64(aux.Generation())),
	))
	defer span.End()

	names := make(map[string]bool)
	for _, file := range primary.Files() {
		fs, _ := primary.File(file)
		for _, sym := range fs.Symbols {
			if classifiable(sym.Kind) {
				names[sym.Name] = true
			}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	edges := make([]CrossProjectEdge, 0)
	for _, name := range sorted {
		edges = append(edges, r.classifyName(ctx, name, primary, aux)...)
	}
	sortEdges(edges)
	return edges
}

func (r *Resolver) classifyName(ctx context.Context, name string, primary Primary, aux Auxiliary) []CrossProjectEdge {
	key := fmt.Sprintf("%d/%d/%s", primary.Generation(), aux.Generation(), name)
	if cached, ok := r.cache.Get(key); ok {
		r.hits.Add(1)
		recordCacheLookup(ctx, true)
		return cached
	}
	r.misses.Add(1)
	recordCacheLookup(ctx, false)

	edges := make([]CrossProjectEdge, 0)
	candidates := aux.LookupName(name)
	if len(candidates) > 0 {
		for _, sym := range primary.LookupByName(name) {
			if !classifiable(sym.Kind) {
				continue
			}
			fs, ok := primary.File(sym.File)
			if !ok {
				continue
			}
			for _, cand := range candidates {
				if !classifiable(cand.Kind) {
					continue
				}
				if edge, ok := classifyPair(sym, fs, cand, primary, aux); ok {
					edges = append(edges, edge)
				}
			}
		}
	}
	r.cache.Add(key, edges)
	return edges
}

// Metrics returns cache counters.
func (r *Resolver) Metrics() Metrics {
	return Metrics{
		CacheHits:   r.hits.Load(),
		CacheMisses: r.misses.Load(),
		Queries:     r.queries.Load(),
		CacheSize:   r.cache.Len(),
	}
}

// ClearCache drops cached classifications and resets the counters.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
	r.hits.Store(0)
	r.misses.Store(0)
	r.queries.Store(0)
}

// compatible drops candidates whose kind cannot be the target of ref.
func compatible(ref parser.Reference, candidates []supplementary.SymbolInfo) []supplementary.SymbolInfo {
	out := make([]supplementary.SymbolInfo, 0, len(candidates))
	for _, cand := range candidates {
		switch {
		case ref.Kind.IsSupertype(), ref.Kind == parser.RefConstruct:
			if !cand.Kind.IsType() {
				continue
			}
		case ref.Kind == parser.RefCall:
			if !cand.Kind.IsCallable() && !cand.Kind.IsType() {
				continue
			}
		}
		out = append(out, cand)
	}
	return out
}

// pickCandidate narrows candidates to those whose namespace the file
// imports, when any are. A single survivor is returned with its context
// score; otherwise the count of remaining candidates is returned and the
// reference stays unresolved.
func pickCandidate(ref parser.Reference, fs *parser.FileSymbols, candidates []supplementary.SymbolInfo) (supplementary.SymbolInfo, float64, int) {
	imported := make([]supplementary.SymbolInfo, 0, len(candidates))
	for _, cand := range candidates {
		if importsNamespace(fs, cand) {
			imported = append(imported, cand)
		}
	}
	kept, isImported := candidates, false
	if len(imported) > 0 {
		kept, isImported = imported, true
	}
	if len(kept) != 1 {
		return supplementary.SymbolInfo{}, 0, len(kept)
	}
	return kept[0], nameScore(ref, kept[0], isImported), 1
}

func nameScore(ref parser.Reference, cand supplementary.SymbolInfo, imported bool) float64 {
	score := baseNameConfidence
	if imported {
		score += importBonus
	}
	if ref.Qualifier != "" && cand.Parent != "" && lastSegment(ref.Qualifier) == cand.Parent {
		score += containerBonus
	}
	if ref.Kind == parser.RefCall && cand.Kind.IsCallable() && ref.Arity == cand.Params {
		score += arityBonus
	}
	return math.Min(math.Round(score*100)/100, maxNameConfidence)
}

// importsNamespace reports whether the file imports the package, module
// or namespace that declares cand.
func importsNamespace(fs *parser.FileSymbols, cand supplementary.SymbolInfo) bool {
	if fs == nil {
		return false
	}
	ns := cand.Namespace()
	if ns == "" {
		return false
	}
	targets := make([]string, 0, len(fs.Imports)+len(fs.ImportAliases))
	targets = append(targets, fs.Imports...)
	for _, target := range fs.ImportAliases {
		targets = append(targets, strings.Replace(target, "#", ".", 1))
	}
	for _, imp := range targets {
		imp = strings.Trim(strings.TrimSpace(imp), `"'`)
		if imp == "" {
			continue
		}
		if imp == ns || strings.HasPrefix(ns, imp+".") || strings.HasPrefix(imp, ns+".") {
			return true
		}
		if dotted := strings.ReplaceAll(imp, "/", "."); dotted != imp && (dotted == ns || strings.HasPrefix(ns, dotted+".")) {
			return true
		}
		if idx := strings.LastIndex(imp, "/"); idx != -1 {
			base := imp[idx+1:]
			if base == ns || strings.HasPrefix(ns, base+".") {
				return true
			}
		}
	}
	return false
}

func referenceEdge(ref parser.Reference, info supplementary.SymbolInfo, confidence float64, method Method) CrossProjectEdge {
	return CrossProjectEdge{
		From:          ref.From,
		FromFile:      ref.File,
		Line:          ref.Line,
		Reference:     ref.Name,
		To:            info.ID,
		TargetName:    info.Name,
		TargetFQN:     info.FQN,
		TargetFile:    info.File,
		TargetProject: info.Project,
		Relationship:  referenceRelationship(ref.Kind, info.Kind),
		Confidence:    confidence,
		Method:        method,
	}
}

func referenceRelationship(ref parser.ReferenceKind, target parser.SymbolKind) Relationship {
	if ref.IsSupertype() {
		if target == parser.SymbolInterface {
			return RelImplementation
		}
		return RelInheritance
	}
	return RelUsage
}

func unresolved(ref parser.Reference, reason string, candidates int) Unresolved {
	return Unresolved{
		File:       ref.File,
		Line:       ref.Line,
		Name:       ref.Name,
		FQN:        ref.FQN,
		From:       ref.From,
		Reason:     reason,
		Candidates: candidates,
	}
}

func describe(candidates []supplementary.SymbolInfo) string {
	parts := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		parts = append(parts, cand.Project+":"+cand.FQN)
	}
	return strings.Join(parts, ", ")
}

func classifiable(kind parser.SymbolKind) bool {
	return kind.IsType() || kind.IsCallable()
}

func lastSegment(chain string) string {
	if idx := strings.LastIndex(chain, "."); idx != -1 {
		return chain[idx+1:]
	}
	return chain
}

func sortReferences(refs []parser.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Kind < b.Kind
	})
}

func sortEdges(edges []CrossProjectEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromFile != b.FromFile {
			return a.FromFile < b.FromFile
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Method < b.Method
	})
}
