package languages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

const goServiceSource = `package service

import (
	"context"

	repo "example.com/contracts/storage"
)

type Store interface {
	Save(ctx context.Context, id string) error
}

type Service struct {
	repo.Base
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

func (s *Service) Save(ctx context.Context, a, b string) error {
	repo.Validate(a)
	return s.store.Save(ctx, b)
}
`

func TestGoDeclarations(t *testing.T) {
	file, err := NewGoExtractor().Extract("service/service.go", []byte(goServiceSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if file.Namespace != "service" {
		t.Fatalf("expected package service, got %q", file.Namespace)
	}
	if len(file.Imports) != 2 || file.Imports[1] != "example.com/contracts/storage" {
		t.Fatalf("unexpected imports %v", file.Imports)
	}

	if store := findSymbol(t, file, "Store"); store.Kind != parser.SymbolInterface || store.FQN != "service.Store" {
		t.Fatalf("unexpected interface %+v", store)
	}
	if svc := findSymbol(t, file, "Service"); svc.Kind != parser.SymbolStruct {
		t.Fatalf("unexpected struct %+v", svc)
	}
	if field := findSymbol(t, file, "store"); field.Kind != parser.SymbolField || field.Parent != "Service" {
		t.Fatalf("unexpected field %+v", field)
	}
	if ctor := findSymbol(t, file, "NewService"); ctor.Kind != parser.SymbolFunction || ctor.Params != 1 {
		t.Fatalf("unexpected constructor %+v", ctor)
	}

	var method *parser.Symbol
	for i := range file.Symbols {
		if file.Symbols[i].Name == "Save" && file.Symbols[i].Parent == "Service" {
			method = &file.Symbols[i]
		}
	}
	if method == nil || method.Kind != parser.SymbolMethod || method.FQN != "service.Service.Save" || method.Params != 3 {
		t.Fatalf("unexpected method %+v", method)
	}
}

func TestGoReferences(t *testing.T) {
	file, err := NewGoExtractor().Extract("service/service.go", []byte(goServiceSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	bases := refsOfKind(file, parser.RefInheritance)
	if len(bases) != 1 || bases[0].Name != "Base" || bases[0].FQN != "storage.Base" {
		t.Fatalf("expected embedded repo.Base, got %+v", bases)
	}
	constructs := refsOfKind(file, parser.RefConstruct)
	if len(constructs) != 1 || constructs[0].Name != "Service" || constructs[0].FQN != "service.Service" {
		t.Fatalf("expected Service literal, got %+v", constructs)
	}

	var validate, save *parser.Reference
	calls := refsOfKind(file, parser.RefCall)
	for i := range calls {
		switch calls[i].Name {
		case "Validate":
			validate = &calls[i]
		case "Save":
			save = &calls[i]
		}
	}
	if validate == nil || validate.FQN != "storage.Validate" || validate.Qualifier != "repo" {
		t.Fatalf("expected aliased package call, got %+v", validate)
	}
	if save == nil || save.FQN != "" || save.Arity != 2 {
		t.Fatalf("expected receiver call without FQN, got %+v", save)
	}
}

func TestGoParamCount(t *testing.T) {
	file, err := NewGoExtractor().Extract("x.go", []byte("package x\n\nfunc F(a, b int, c string, _ ...any) {}\n"), parser.ModeSymbolsOnly)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if f := findSymbol(t, file, "F"); f.Params != 4 {
		t.Fatalf("expected 4 params, got %d", f.Params)
	}
	if len(file.References) != 0 {
		t.Fatalf("expected no references in symbols-only mode")
	}
}

func TestGoFixtureFile(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "worker.go"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	file, err := NewGoExtractor().Extract("fixtures/worker.go", content, parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if svc := findSymbol(t, file, "Service"); svc.Kind != parser.SymbolInterface {
		t.Fatalf("unexpected interface %+v", svc)
	}
	if worker := findSymbol(t, file, "Worker"); worker.Kind != parser.SymbolStruct {
		t.Fatalf("unexpected struct %+v", worker)
	}
	found := false
	for _, sym := range file.Symbols {
		if sym.Name == "Run" && sym.Parent == "Worker" && sym.Kind == parser.SymbolMethod {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Worker.Run method in %+v", file.Symbols)
	}

	want := map[string]string{
		"logStart": "fixtures.logStart",
		"helper":   "fixtures.helper",
		"Println":  "fmt.Println",
	}
	for _, ref := range refsOfKind(file, parser.RefCall) {
		if fqn, ok := want[ref.Name]; ok && ref.FQN == fqn {
			delete(want, ref.Name)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing calls %v in %+v", want, file.References)
	}
}
