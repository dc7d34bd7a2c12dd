package supplementary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// lineExtractor reads "kind name fqn [parent]" lines.
type lineExtractor struct {
	lang string
	ext  string
}

func (e lineExtractor) Language() string     { return e.lang }
func (e lineExtractor) Extensions() []string { return []string{e.ext} }

func (e lineExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	if strings.HasPrefix(string(content), "!fail") {
		return nil, fmt.Errorf("syntax error")
	}
	fs := &parser.FileSymbols{Path: filename}
	for i, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		kind, ok := parser.ParseSymbolKind(fields[0])
		if !ok {
			continue
		}
		sym := parser.Symbol{Name: fields[1], FQN: fields[2], Kind: kind, Line: i + 1, EndLine: i + 1}
		if len(fields) > 3 {
			sym.Parent = fields[3]
		}
		fs.Symbols = append(fs.Symbols, sym)
	}
	if mode == parser.ModeFull {
		fs.References = []parser.Reference{{Name: "ignored", Line: 1}}
	}
	return fs, nil
}

func testExtractors() *parser.Registry {
	r := parser.NewRegistry()
	r.Register(lineExtractor{lang: "csharp", ext: ".cs"})
	r.Register(lineExtractor{lang: "python", ext: ".py"})
	return r
}

func TestBuildCatalogsSymbolsAndSkipsBuildDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Repo.cs"), "interface IUserRepository Contracts.IUserRepository\nmethod Save Contracts.IUserRepository.Save IUserRepository\n")
	writeFile(t, filepath.Join(root, "bin", "Debug", "Generated.cs"), "class Generated Contracts.Generated\n")
	writeFile(t, filepath.Join(root, "scripts", "tool.py"), "func tool scripts.tool\n")
	writeFile(t, filepath.Join(root, "Broken.cs"), "!fail\n")

	cfg := ProjectConfig{Name: "contracts", Root: root, Enabled: true, Priority: 10, Languages: []string{"csharp"}}
	catalog, issues, err := Build(context.Background(), testExtractors(), cfg, BuildOptions{Workers: 2})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	stats := catalog.Stats()
	if stats.FileCount != 1 || stats.SymbolCount != 2 {
		t.Fatalf("expected 1 file and 2 symbols, got %+v", stats)
	}
	if len(issues) != 1 || issues[0].Kind != parser.IssueParseFailure || issues[0].File != "Broken.cs" {
		t.Fatalf("expected one parse failure for Broken.cs, got %+v", issues)
	}

	r := NewRegistry()
	r.Put(catalog)
	info, ok := r.LookupFQN("Contracts.IUserRepository")
	if !ok || info.Project != "contracts" || info.Kind != parser.SymbolInterface {
		t.Fatalf("unexpected FQN lookup result %+v (found=%v)", info, ok)
	}
	if info.ID == "" || !strings.HasPrefix(info.ID, "contracts::") {
		t.Fatalf("expected project-tagged id, got %q", info.ID)
	}
	if members := r.Members("contracts", "IUserRepository"); len(members) != 1 || members[0].Name != "Save" {
		t.Fatalf("expected Save as member, got %+v", members)
	}
	if !r.ContainsFile("contracts", "Repo.cs") || r.ContainsFile("contracts", "bin/Debug/Generated.cs") {
		t.Fatalf("expected only Repo.cs to be cataloged")
	}
}

func TestBuildRejectsDisabledAndMissingProjects(t *testing.T) {
	_, _, err := Build(context.Background(), testExtractors(), ProjectConfig{Name: "off", Root: t.TempDir()}, BuildOptions{})
	if !errors.Is(err, ErrProjectDisabled) {
		t.Fatalf("expected ErrProjectDisabled, got %v", err)
	}

	missing := ProjectConfig{Name: "gone", Root: filepath.Join(t.TempDir(), "nope"), Enabled: true}
	_, _, err = Build(context.Background(), testExtractors(), missing, BuildOptions{})
	if !errors.Is(err, ErrProjectRootMissing) {
		t.Fatalf("expected ErrProjectRootMissing, got %v", err)
	}
}

func TestBuildAllReportsConfigurationErrorsOnce(t *testing.T) {
	good := t.TempDir()
	writeFile(t, filepath.Join(good, "a.cs"), "class A Lib.A\n")

	catalogs, issues := BuildAll(context.Background(), testExtractors(), []ProjectConfig{
		{Name: "lib", Root: good, Enabled: true},
		{Name: "gone", Root: filepath.Join(good, "missing"), Enabled: true},
	}, BuildOptions{})

	if len(catalogs) != 1 || catalogs[0].Config.Name != "lib" {
		t.Fatalf("expected only lib to build, got %d catalogs", len(catalogs))
	}
	if len(issues) != 1 || issues[0].Kind != parser.IssueConfigurationError || issues[0].Project != "gone" {
		t.Fatalf("expected one configuration issue for gone, got %+v", issues)
	}
}

func TestPriorityWinsFQNCollisions(t *testing.T) {
	low := NewCatalog(ProjectConfig{Name: "low", Enabled: true, Priority: 50}, []*parser.FileSymbols{
		catalogFile("low", "util/Helper.cs",
			parser.Symbol{Name: "Helper", FQN: "Low.Helper", Kind: parser.SymbolClass, Line: 1},
			parser.Symbol{Name: "Shared", FQN: "Common.Shared", Kind: parser.SymbolClass, Line: 5}),
	})
	high := NewCatalog(ProjectConfig{Name: "high", Enabled: true, Priority: 100}, []*parser.FileSymbols{
		catalogFile("high", "Helper.cs",
			parser.Symbol{Name: "Helper", FQN: "High.Helper", Kind: parser.SymbolClass, Line: 3},
			parser.Symbol{Name: "Shared", FQN: "Common.Shared", Kind: parser.SymbolClass, Line: 9}),
	})

	r := NewRegistry()
	r.Put(low) // registered first
	r.Put(high)

	if info, ok := r.LookupFQN("High.Helper"); !ok || info.Project != "high" {
		t.Fatalf("expected High.Helper from high, got %+v", info)
	}
	if info, ok := r.LookupFQN("Common.Shared"); !ok || info.Project != "high" {
		t.Fatalf("expected collision won by priority 100, got %+v", info)
	}

	helpers := r.LookupName("Helper")
	if len(helpers) != 2 || helpers[0].Project != "high" || helpers[1].Project != "low" {
		t.Fatalf("expected both Helpers tagged by project, got %+v", helpers)
	}

	generation := r.Generation()
	if !r.Remove("high") {
		t.Fatalf("expected high to be removed")
	}
	if r.Generation() == generation {
		t.Fatalf("expected generation to change after remove")
	}
	if info, ok := r.LookupFQN("Common.Shared"); !ok || info.Project != "low" {
		t.Fatalf("expected low to serve the FQN after high is gone, got %+v", info)
	}
	if stats := r.Stats(); stats.Projects != 1 || stats.Symbols != 2 || stats.ByKind["class"] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestProjectForFilePrefersDeepestRoot(t *testing.T) {
	base := t.TempDir()
	outer := NewCatalog(ProjectConfig{Name: "outer", Root: base, Enabled: true}, nil)
	inner := NewCatalog(ProjectConfig{Name: "inner", Root: filepath.Join(base, "inner"), Enabled: true}, nil)

	r := NewRegistry()
	r.Put(outer)
	r.Put(inner)

	project, rel, ok := r.ProjectForFile(filepath.Join(base, "inner", "pkg", "a.cs"))
	if !ok || project != "inner" || rel != "pkg/a.cs" {
		t.Fatalf("expected inner pkg/a.cs, got %q %q %v", project, rel, ok)
	}
	if _, _, ok := r.ProjectForFile(filepath.Join(t.TempDir(), "x.cs")); ok {
		t.Fatalf("expected no project for an unrelated path")
	}
}

func catalogFile(project, path string, symbols ...parser.Symbol) *parser.FileSymbols {
	fs := &parser.FileSymbols{Path: path, Language: "csharp", Symbols: symbols}
	parser.AssignIDs(project, fs)
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLookupNameOrdersByPriorityThenFile(t *testing.T) {
	catalog := func(project string, priority int, paths ...string) *Catalog {
		files := make([]*parser.FileSymbols, 0, len(paths))
		for _, path := range paths {
			fs := &parser.FileSymbols{Path: path, Symbols: []parser.Symbol{
				{Name: "Run", Kind: parser.SymbolFunction, FQN: project + "." + strings.TrimSuffix(path, ".go") + ".Run", Line: 1, EndLine: 2},
			}}
			parser.AssignIDs(project, fs)
			files = append(files, fs)
		}
		return NewCatalog(ProjectConfig{Name: project, Root: "/aux/" + project, Enabled: true, Priority: priority}, files)
	}

	r := NewRegistry()
	r.Put(catalog("low", 1, "a.go"))
	r.Put(catalog("high", 9, "z.go", "b.go"))

	var got []string
	for _, info := range r.LookupName("Run") {
		got = append(got, info.Project+":"+info.File)
	}
	want := []string{"high:b.go", "high:z.go", "low:a.go"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
