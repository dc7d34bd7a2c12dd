package graph

import (
	"reflect"
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

func TestScopedResolutionAndAmbiguity(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{
		file("a.go", "app",
			[]parser.Symbol{
				{Name: "helper", Kind: parser.SymbolFunction, Line: 1, EndLine: 3},
				{Name: "run", Kind: parser.SymbolFunction, Line: 10, EndLine: 20},
			},
			[]parser.Reference{
				{Name: "helper", Line: 11},
				{Name: "onlyB", Line: 12},
				{Name: "dup", Line: 13},
			}),
		file("lib/b.go", "lib",
			[]parser.Symbol{
				{Name: "helper", Kind: parser.SymbolFunction, Line: 2, EndLine: 2},
				{Name: "onlyB", Kind: parser.SymbolFunction, Line: 3, EndLine: 3},
				{Name: "dup", Kind: parser.SymbolFunction, Line: 4, EndLine: 4},
			}, nil),
		file("lib/c.go", "lib",
			[]parser.Symbol{
				{Name: "dup", Kind: parser.SymbolFunction, Line: 5, EndLine: 5},
			}, nil),
	}, nil)

	if len(s.Nodes) != 6 {
		t.Fatalf("expected 6 nodes, got %d", len(s.Nodes))
	}

	run := findSymbol(t, s, "a.go", "run")
	helper := findSymbol(t, s, "a.go", "helper")
	onlyB := findSymbol(t, s, "lib/b.go", "onlyB")

	out := s.Nodes[run.ID].OutEdges
	if len(out) != 2 {
		t.Fatalf("expected 2 edges from run, got %+v", out)
	}
	confidence := map[string]string{}
	for _, e := range out {
		confidence[e.To] = e.Confidence
	}
	if confidence[helper.ID] != ConfidenceResolved {
		t.Fatalf("expected helper edge resolved, got %q", confidence[helper.ID])
	}
	if confidence[onlyB.ID] != ConfidenceHeuristic {
		t.Fatalf("expected onlyB edge heuristic, got %q", confidence[onlyB.ID])
	}
	if in := s.Nodes[helper.ID].InEdges; len(in) != 1 || in[0].From != run.ID {
		t.Fatalf("expected helper to have run as caller, got %+v", in)
	}
}

func TestReplaceFileIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{callerFile(), calleeFile()}, nil)

	symbolsBefore := snapshotSymbols(s)
	edgesBefore := snapshotEdges(s)

	delta := s.ReplaceFile(callerFile())
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Fatalf("expected empty delta on unchanged re-index, got %+v", delta)
	}
	s.ReplaceFile(calleeFile())

	if got := snapshotSymbols(s); !reflect.DeepEqual(got, symbolsBefore) {
		t.Fatalf("symbols changed after re-index:\nbefore %v\nafter  %v", symbolsBefore, got)
	}
	if got := snapshotEdges(s); !reflect.DeepEqual(got, edgesBefore) {
		t.Fatalf("edges changed after re-index:\nbefore %v\nafter  %v", edgesBefore, got)
	}
}

func TestReplaceFileDropsStaleSymbols(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{callerFile(), calleeFile()}, nil)

	edited := file("svc/store.go", "svc",
		[]parser.Symbol{{Name: "Persist", Kind: parser.SymbolFunction, Line: 7, EndLine: 9}}, nil)
	delta := s.ReplaceFile(edited)

	if len(delta.Added) != 1 || len(delta.Removed) != 1 {
		t.Fatalf("expected one added and one removed id, got %+v", delta)
	}
	if len(s.LookupByName("Persist")) != 1 {
		t.Fatalf("expected no stale duplicate of Persist, got %+v", s.LookupByName("Persist"))
	}

	save := findSymbol(t, s, "svc/service.go", "Save")
	edges := s.EdgesOf(save.ID)
	if len(edges) != 1 || edges[0].To != delta.Added[0] {
		t.Fatalf("expected caller relinked to the moved symbol, got %+v", edges)
	}
}

func TestRemoveFileDropsEdges(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{callerFile(), calleeFile()}, nil)

	delta := s.RemoveFile("svc/store.go")
	if len(delta.Removed) != 1 {
		t.Fatalf("expected one removed id, got %+v", delta)
	}
	save := findSymbol(t, s, "svc/service.go", "Save")
	if edges := s.EdgesOf(save.ID); len(edges) != 0 {
		t.Fatalf("expected edges to removed file dropped, got %+v", edges)
	}
	if s.HasFile("svc/store.go") {
		t.Fatalf("expected file removed")
	}
	unresolved := s.UnresolvedReferences()
	if len(unresolved) != 1 || unresolved[0].Name != "Persist" {
		t.Fatalf("expected Persist to become unresolved, got %+v", unresolved)
	}
}

func TestNewDefinitionMakesReferenceAmbiguous(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{
		file("x/a.go", "a", []parser.Symbol{{Name: "run", Kind: parser.SymbolFunction, Line: 1, EndLine: 5}},
			[]parser.Reference{{Name: "shared", Line: 2}}),
		file("y/b.go", "b", []parser.Symbol{{Name: "shared", Kind: parser.SymbolFunction, Line: 1, EndLine: 1}}, nil),
	}, nil)

	run := findSymbol(t, s, "x/a.go", "run")
	if len(s.EdgesOf(run.ID)) != 1 {
		t.Fatalf("expected run -> shared edge")
	}

	s.ReplaceFile(file("z/c.go", "c", []parser.Symbol{{Name: "shared", Kind: parser.SymbolFunction, Line: 1, EndLine: 1}}, nil))
	if edges := s.EdgesOf(run.ID); len(edges) != 0 {
		t.Fatalf("expected ambiguous reference to drop its edge, got %+v", edges)
	}
}

func TestSubgraphFollowsOutgoingEdges(t *testing.T) {
	s := NewStore()
	s.Apply([]*parser.FileSymbols{
		file("a.go", "app",
			[]parser.Symbol{
				{Name: "A", Kind: parser.SymbolFunction, Line: 1, EndLine: 3},
				{Name: "B", Kind: parser.SymbolFunction, Line: 5, EndLine: 7},
				{Name: "C", Kind: parser.SymbolFunction, Line: 9, EndLine: 9},
			},
			[]parser.Reference{{Name: "B", Line: 2}, {Name: "C", Line: 6}}),
	}, nil)

	names := func(symbols []parser.Symbol) []string {
		out := make([]string, 0, len(symbols))
		for _, sym := range symbols {
			out = append(out, sym.Name)
		}
		return out
	}
	if got := names(s.Subgraph("A", 1)); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("expected [A B] at depth 1, got %v", got)
	}
	if got := names(s.Subgraph("A", 5)); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected [A B C] at depth 5, got %v", got)
	}
}

func callerFile() *parser.FileSymbols {
	return file("svc/service.go", "svc",
		[]parser.Symbol{
			{Name: "Service", Kind: parser.SymbolStruct, Line: 3, EndLine: 5},
			{Name: "Save", Kind: parser.SymbolMethod, Parent: "Service", Line: 7, EndLine: 10},
		},
		[]parser.Reference{{Name: "Persist", FQN: "svc.Persist", Line: 8}})
}

func calleeFile() *parser.FileSymbols {
	return file("svc/store.go", "svc",
		[]parser.Symbol{{Name: "Persist", Kind: parser.SymbolFunction, FQN: "svc.Persist", Line: 3, EndLine: 5}}, nil)
}

func file(path, namespace string, symbols []parser.Symbol, refs []parser.Reference) *parser.FileSymbols {
	fs := &parser.FileSymbols{
		Path:       path,
		Namespace:  namespace,
		Symbols:    append([]parser.Symbol(nil), symbols...),
		References: append([]parser.Reference(nil), refs...),
	}
	parser.AssignIDs("", fs)
	return fs
}

func findSymbol(t *testing.T, s *Store, path, name string) parser.Symbol {
	t.Helper()
	for _, sym := range s.SymbolsInFile(path) {
		if sym.Name == name {
			return sym
		}
	}
	t.Fatalf("symbol %s not found in %s", name, path)
	return parser.Symbol{}
}

func snapshotSymbols(s *Store) []string {
	out := make([]string, 0)
	for _, file := range s.Files() {
		for _, sym := range s.SymbolsInFile(file) {
			out = append(out, sym.ID)
		}
	}
	return out
}

func snapshotEdges(s *Store) []Edge {
	out := make([]Edge, 0)
	for _, file := range s.Files() {
		for _, sym := range s.SymbolsInFile(file) {
			out = append(out, s.EdgesOf(sym.ID)...)
		}
	}
	return out
}
