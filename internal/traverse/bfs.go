// Package traverse walks the primary graph outward from a set of seed
// files. Auxiliary files are reached by a single boundary hop over a
// cross-project edge and are never expanded further.
package traverse

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/resolve"
)

var tracer = otel.Tracer("codegraph.traverse")

// FileRef names a file in a project. An empty Project is the primary project.
type FileRef struct {
	Project string `json:"project,omitempty"`
	Path    string `json:"path"`
}

func (f FileRef) IsPrimary() bool { return f.Project == "" }

// Result holds two disjoint file sets in visit order.
type Result struct {
	Primary   []string  `json:"primary"`
	Auxiliary []FileRef `json:"auxiliary"`
}

// Graph is the part of the symbol store the walk reads.
type Graph interface {
	SymbolsInFile(file string) []parser.Symbol
	EdgesOf(id string) []graph.Edge
	Symbol(id string) (parser.Symbol, error)
}

// CrossEdges indexes cross-project edges by the primary file they leave.
type CrossEdges map[string][]resolve.CrossProjectEdge

// IndexCrossEdges groups edges by source file. Unrelated pairs carry no
// relationship and are dropped.
func IndexCrossEdges(edges []resolve.CrossProjectEdge) CrossEdges {
	out := make(CrossEdges)
	for _, edge := range edges {
		if edge.Relationship == resolve.RelUnrelated || edge.TargetFile == "" {
			continue
		}
		out[edge.FromFile] = append(out[edge.FromFile], edge)
	}
	return out
}

// RelatedFiles runs a breadth-first walk from seeds up to maxDepth hops.
// Depth 0 returns the seeds alone. Seeds already tagged with an auxiliary
// project are reported as auxiliary and not expanded.
func RelatedFiles(ctx context.Context, g Graph, cross CrossEdges, seeds []FileRef, maxDepth int) Result {
	_, span := tracer.Start(ctx, "traverse.RelatedFiles")
	defer span.End()

	if maxDepth < 0 {
		maxDepth = 0
	}

	result := Result{Primary: make([]string, 0), Auxiliary: make([]FileRef, 0)}
	visited := make(map[string]bool)
	boundary := make(map[FileRef]bool)

	type queueItem struct {
		file  string
		depth int
	}
	queue := make([]queueItem, 0)

	for _, seed := range sortedRefs(seeds) {
		if !seed.IsPrimary() {
			if !boundary[seed] {
				boundary[seed] = true
				result.Auxiliary = append(result.Auxiliary, seed)
			}
			continue
		}
		if visited[seed.Path] {
			continue
		}
		visited[seed.Path] = true
		result.Primary = append(result.Primary, seed.Path)
		queue = append(queue, queueItem{file: seed.Path, depth: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}

		for _, next := range neighborFiles(g, current.file) {
			if visited[next] {
				continue
			}
			visited[next] = true
			result.Primary = append(result.Primary, next)
			queue = append(queue, queueItem{file: next, depth: current.depth + 1})
		}

		for _, ref := range boundaryFiles(cross[current.file]) {
			if boundary[ref] {
				continue
			}
			boundary[ref] = true
			result.Auxiliary = append(result.Auxiliary, ref)
		}
	}

	span.SetAttributes(
		attribute.Int("traverse.max_depth", maxDepth),
		attribute.Int("traverse.primary", len(result.Primary)),
		attribute.Int("traverse.auxiliary", len(result.Auxiliary)),
	)
	return result
}

// neighborFiles returns the files of every symbol one internal edge away
// from a symbol in file, in either direction, sorted.
func neighborFiles(g Graph, file string) []string {
	seen := make(map[string]bool)
	for _, sym := range g.SymbolsInFile(file) {
		for _, edge := range g.EdgesOf(sym.ID) {
			other := edge.To
			if other == sym.ID {
				other = edge.From
			}
			target, err := g.Symbol(other)
			if err != nil || target.File == file {
				continue
			}
			seen[target.File] = true
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func boundaryFiles(edges []resolve.CrossProjectEdge) []FileRef {
	seen := make(map[FileRef]bool)
	for _, edge := range edges {
		seen[FileRef{Project: edge.TargetProject, Path: edge.TargetFile}] = true
	}
	out := make([]FileRef, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	return sortedRefs(out)
}

func sortedRefs(refs []FileRef) []FileRef {
	out := append([]FileRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		return out[i].Path < out[j].Path
	})
	return out
}
