package languages

import (
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

const userServiceSource = `using Contracts;
using Repo = Contracts.Storage.IRepository;

namespace App.Services
{
    public class UserService : IUserRepository
    {
        private readonly Cache _cache;

        public string Name { get; set; }

        public User Find(int id, bool cached)
        {
            var user = new User(id);
            _cache.Store(user);
            return Contracts.Users.Normalize(user);
        }
    }

    public enum Role { Admin, Guest }
}
`

func TestCSharpTypesMembersAndNamespace(t *testing.T) {
	file, err := NewCSharpExtractor().Extract("src/UserService.cs", []byte(userServiceSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if file.Namespace != "App.Services" {
		t.Fatalf("expected namespace App.Services, got %q", file.Namespace)
	}
	if len(file.Imports) != 2 || file.Imports[0] != "Contracts" || file.Imports[1] != "Contracts.Storage.IRepository" {
		t.Fatalf("unexpected imports %v", file.Imports)
	}
	if file.ImportAliases["Repo"] != "Contracts.Storage.IRepository" {
		t.Fatalf("expected using alias, got %v", file.ImportAliases)
	}

	cls := findSymbol(t, file, "UserService")
	if cls.Kind != parser.SymbolClass || cls.FQN != "App.Services.UserService" {
		t.Fatalf("unexpected class %+v", cls)
	}
	find := findSymbol(t, file, "Find")
	if find.Kind != parser.SymbolMethod || find.Parent != "UserService" || find.Params != 2 {
		t.Fatalf("unexpected method %+v", find)
	}
	if find.FQN != "App.Services.UserService.Find" {
		t.Fatalf("unexpected method FQN %q", find.FQN)
	}
	if name := findSymbol(t, file, "Name"); name.Kind != parser.SymbolField {
		t.Fatalf("expected property as field, got %+v", name)
	}
	if cache := findSymbol(t, file, "_cache"); cache.Kind != parser.SymbolField {
		t.Fatalf("expected field, got %+v", cache)
	}
	if role := findSymbol(t, file, "Role"); role.Kind != parser.SymbolEnum {
		t.Fatalf("expected enum, got %+v", role)
	}
	if admin := findSymbol(t, file, "Admin"); admin.Kind != parser.SymbolConstant || admin.Parent != "Role" {
		t.Fatalf("expected enum member, got %+v", admin)
	}
}

func TestCSharpReferences(t *testing.T) {
	file, err := NewCSharpExtractor().Extract("src/UserService.cs", []byte(userServiceSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	bases := refsOfKind(file, parser.RefInheritance)
	if len(bases) != 1 || bases[0].Name != "IUserRepository" {
		t.Fatalf("expected IUserRepository base, got %+v", bases)
	}
	constructs := refsOfKind(file, parser.RefConstruct)
	if len(constructs) != 1 || constructs[0].Name != "User" || constructs[0].Arity != 1 {
		t.Fatalf("expected new User(id), got %+v", constructs)
	}

	var store, normalize *parser.Reference
	calls := refsOfKind(file, parser.RefCall)
	for i := range calls {
		switch calls[i].Name {
		case "Store":
			store = &calls[i]
		case "Normalize":
			normalize = &calls[i]
		}
	}
	if store == nil || store.Qualifier != "_cache" || store.FQN != "" {
		t.Fatalf("expected receiver call without FQN, got %+v", store)
	}
	if normalize == nil || normalize.FQN != "Contracts.Users.Normalize" {
		t.Fatalf("expected qualified call FQN, got %+v", normalize)
	}
	if imports := refsOfKind(file, parser.RefImport); len(imports) != 2 {
		t.Fatalf("expected 2 import references, got %+v", imports)
	}
}

func TestCSharpFileScopedNamespaceSymbolsOnly(t *testing.T) {
	file, err := NewCSharpExtractor().Extract("IUserRepository.cs", []byte(`namespace Contracts;

public interface IUserRepository
{
    User Find(int id);
}
`), parser.ModeSymbolsOnly)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if file.Namespace != "Contracts" {
		t.Fatalf("expected namespace Contracts, got %q", file.Namespace)
	}
	iface := findSymbol(t, file, "IUserRepository")
	if iface.Kind != parser.SymbolInterface || iface.FQN != "Contracts.IUserRepository" {
		t.Fatalf("unexpected interface %+v", iface)
	}
	if len(file.References) != 0 {
		t.Fatalf("expected no references in symbols-only mode, got %+v", file.References)
	}
}

func TestQualifiedFQN(t *testing.T) {
	cases := []struct{ qualifier, want string }{
		{"", ""},
		{"_repo", ""},
		{"this", ""},
		{"Contracts.Users", "Contracts.Users.Find"},
	}
	for _, tc := range cases {
		if got := qualifiedFQN(tc.qualifier, "Find"); got != tc.want {
			t.Fatalf("qualifiedFQN(%q) = %q, want %q", tc.qualifier, got, tc.want)
		}
	}
}
