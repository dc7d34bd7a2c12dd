package traverse

import (
	"context"
	"reflect"
	"testing"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/resolve"
)

func TestDepthZeroReturnsSeedsOnly(t *testing.T) {
	store, cross := chain()
	got := RelatedFiles(context.Background(), store, cross, []FileRef{{Path: "b.go"}}, 0)
	if !reflect.DeepEqual(got.Primary, []string{"b.go"}) || len(got.Auxiliary) != 0 {
		t.Fatalf("expected only the seed, got %+v", got)
	}
}

func TestWalkFollowsEdgesBothWays(t *testing.T) {
	store, cross := chain()
	got := RelatedFiles(context.Background(), store, cross, []FileRef{{Path: "b.go"}}, 1)
	if !reflect.DeepEqual(got.Primary, []string{"b.go", "a.go", "c.go"}) {
		t.Fatalf("expected caller and callee files, got %v", got.Primary)
	}
	want := []FileRef{{Project: "contracts", Path: "Repo.cs"}}
	if !reflect.DeepEqual(got.Auxiliary, want) {
		t.Fatalf("expected one boundary file, got %+v", got.Auxiliary)
	}
}

func TestBoundaryHopNeedsRemainingDepth(t *testing.T) {
	store, cross := chain()

	shallow := RelatedFiles(context.Background(), store, cross, []FileRef{{Path: "a.go"}}, 1)
	if !reflect.DeepEqual(shallow.Primary, []string{"a.go", "b.go"}) || len(shallow.Auxiliary) != 0 {
		t.Fatalf("expected no boundary hop at depth 1 from a.go, got %+v", shallow)
	}

	deep := RelatedFiles(context.Background(), store, cross, []FileRef{{Path: "a.go"}}, 2)
	if !reflect.DeepEqual(deep.Primary, []string{"a.go", "b.go", "c.go"}) {
		t.Fatalf("expected full chain at depth 2, got %v", deep.Primary)
	}
	if len(deep.Auxiliary) != 1 || deep.Auxiliary[0].Project != "contracts" {
		t.Fatalf("expected contracts boundary file, got %+v", deep.Auxiliary)
	}
}

func TestAuxiliarySeedIsNotExpanded(t *testing.T) {
	store, cross := chain()
	seed := FileRef{Project: "contracts", Path: "Repo.cs"}
	got := RelatedFiles(context.Background(), store, cross, []FileRef{seed}, 5)
	if len(got.Primary) != 0 || !reflect.DeepEqual(got.Auxiliary, []FileRef{seed}) {
		t.Fatalf("expected auxiliary seed alone, got %+v", got)
	}
}

func TestWalkIsDeterministic(t *testing.T) {
	store, cross := chain()
	seeds := []FileRef{{Path: "c.go"}, {Path: "a.go"}}
	first := RelatedFiles(context.Background(), store, cross, seeds, 3)
	for i := 0; i < 5; i++ {
		if got := RelatedFiles(context.Background(), store, cross, seeds, 3); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, got)
		}
	}
	if !reflect.DeepEqual(first.Primary, []string{"a.go", "c.go", "b.go"}) {
		t.Fatalf("expected sorted seeds then discovered files, got %v", first.Primary)
	}
}

func TestIndexCrossEdgesDropsUnrelated(t *testing.T) {
	cross := IndexCrossEdges([]resolve.CrossProjectEdge{
		{FromFile: "a.go", TargetProject: "p", TargetFile: "x.go", Relationship: resolve.RelUsage},
		{FromFile: "a.go", TargetProject: "p", TargetFile: "y.go", Relationship: resolve.RelUnrelated},
	})
	if len(cross["a.go"]) != 1 || cross["a.go"][0].TargetFile != "x.go" {
		t.Fatalf("expected unrelated edge dropped, got %+v", cross)
	}
}

// chain builds a.go -> b.go -> c.go with b.go also reaching contracts/Repo.cs.
func chain() (*graph.Store, CrossEdges) {
	store := graph.NewStore()
	store.Apply([]*parser.FileSymbols{
		file("a.go", "A", "B"),
		file("b.go", "B", "C"),
		file("c.go", "C", ""),
	}, nil)
	b := store.LookupByName("B")[0]
	cross := IndexCrossEdges([]resolve.CrossProjectEdge{{
		From:          b.ID,
		FromFile:      "b.go",
		TargetProject: "contracts",
		TargetFile:    "Repo.cs",
		TargetName:    "IRepo",
		Relationship:  resolve.RelImplementation,
		Confidence:    0.75,
		Method:        resolve.MethodNameHeuristic,
	}})
	return store, cross
}

func file(path, name, calls string) *parser.FileSymbols {
	fs := &parser.FileSymbols{
		Path:    path,
		Symbols: []parser.Symbol{{Name: name, Kind: parser.SymbolFunction, Line: 1, EndLine: 5}},
	}
	if calls != "" {
		fs.References = []parser.Reference{{Name: calls, Kind: parser.RefCall, Line: 2}}
	}
	parser.AssignIDs("", fs)
	return fs
}
