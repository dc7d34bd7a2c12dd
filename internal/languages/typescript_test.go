package languages

import (
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

func TestTypeScriptClassImportsAndReferences(t *testing.T) {
	file, err := NewTypeScriptExtractor().Extract("app/service.ts", []byte(`import { Repository as Repo, Logger } from "./contracts";
import * as util from "../shared/util";

/** Serves users. */
export class UserService extends Base implements Repo<User> {
  private cache: Map<string, User>;

  save(user: User): Promise<void> {
    this.validate(user);
    util.log("saved");
    return new Logger().write(user);
  }

  validate = (user: User) => true;
}
`), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if file.Language != "typescript" || file.Namespace != "app.service" {
		t.Fatalf("unexpected language/module %q/%q", file.Language, file.Namespace)
	}
	if len(file.Imports) != 2 || file.Imports[0] != "./contracts" || file.Imports[1] != "../shared/util" {
		t.Fatalf("unexpected imports %#v", file.Imports)
	}
	if got := file.ImportAliases["Repo"]; got != "app.contracts#Repository" {
		t.Fatalf("expected Repo=>app.contracts#Repository, got %q", got)
	}
	if got := file.ImportAliases["util"]; got != "shared.util" {
		t.Fatalf("expected namespace import util=>shared.util, got %q", got)
	}

	class := findSymbol(t, file, "UserService")
	if class.Kind != parser.SymbolClass || class.FQN != "app.service.UserService" || class.Doc != "Serves users." {
		t.Fatalf("unexpected class symbol %+v", class)
	}
	save := findSymbol(t, file, "save")
	if save.Kind != parser.SymbolMethod || save.Parent != "UserService" || save.Params != 1 {
		t.Fatalf("unexpected method symbol %+v", save)
	}
	if save.Signature != "save(user: User): Promise<void>" {
		t.Fatalf("unexpected method signature %q", save.Signature)
	}
	if validate := findSymbol(t, file, "validate"); validate.Kind != parser.SymbolMethod || validate.Parent != "UserService" {
		t.Fatalf("expected arrow-function field to be a method, got %+v", validate)
	}
	if cache := findSymbol(t, file, "cache"); cache.Kind != parser.SymbolField {
		t.Fatalf("expected cache field, got %+v", cache)
	}

	supers := append(refsOfKind(file, parser.RefInheritance), refsOfKind(file, parser.RefImplementation)...)
	if len(supers) != 2 {
		t.Fatalf("expected extends and implements references, got %+v", supers)
	}
	if supers[0].Name != "Base" || supers[0].FQN != "app.service.Base" {
		t.Fatalf("unexpected extends reference %+v", supers[0])
	}
	if supers[1].Name != "Repo" || supers[1].FQN != "app.contracts.Repository" {
		t.Fatalf("expected implements to resolve through the alias, got %+v", supers[1])
	}

	calls := map[string]parser.Reference{}
	for _, ref := range refsOfKind(file, parser.RefCall) {
		calls[ref.Name] = ref
	}
	if got := calls["validate"]; got.Qualifier != "this" || got.FQN != "app.service.UserService.validate" {
		t.Fatalf("expected this.validate bound to the class, got %+v", got)
	}
	if got := calls["log"]; got.FQN != "shared.util.log" || got.Arity != 1 {
		t.Fatalf("expected util.log through the namespace import, got %+v", got)
	}

	constructs := refsOfKind(file, parser.RefConstruct)
	if len(constructs) != 1 || constructs[0].FQN != "app.contracts.Logger" {
		t.Fatalf("expected new Logger() through the named import, got %+v", constructs)
	}
}

func TestJavaScriptArrowFunctionsAndHeritage(t *testing.T) {
	file, err := NewTypeScriptExtractor().Extract("src/widget.js", []byte(`const add = (a, b) => a + b;

class Widget extends Base {
  render() {
    return add(1, 2);
  }
}
`), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if file.Language != "javascript" {
		t.Fatalf("expected javascript, got %q", file.Language)
	}

	add := findSymbol(t, file, "add")
	if add.Kind != parser.SymbolFunction || add.Params != 2 || add.Signature != "const add = (a, b) =>" {
		t.Fatalf("unexpected arrow function %+v", add)
	}

	supers := refsOfKind(file, parser.RefInheritance)
	if len(supers) != 1 || supers[0].Name != "Base" {
		t.Fatalf("expected Widget to extend Base, got %+v", supers)
	}
	calls := refsOfKind(file, parser.RefCall)
	if len(calls) != 1 || calls[0].FQN != "src.widget.add" || calls[0].Arity != 2 {
		t.Fatalf("expected render to call add, got %+v", calls)
	}
}

func TestTypeScriptSymbolsOnly(t *testing.T) {
	file, err := NewTypeScriptExtractor().Extract("contracts/index.ts", []byte(`export interface IUserRepository extends Repository<User> {
  save(user: User): Promise<void>;
  readonly name: string;
}

export type UserId = string;

export enum Role { Admin, User }
`), parser.ModeSymbolsOnly)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(file.References) != 0 {
		t.Fatalf("expected no references in symbols-only mode, got %+v", file.References)
	}
	if file.Namespace != "contracts" {
		t.Fatalf("expected index file to name its directory, got %q", file.Namespace)
	}

	iface := findSymbol(t, file, "IUserRepository")
	if iface.Kind != parser.SymbolInterface || iface.FQN != "contracts.IUserRepository" {
		t.Fatalf("unexpected interface %+v", iface)
	}
	save := findSymbol(t, file, "save")
	if save.Parent != "IUserRepository" || save.FQN != "contracts.IUserRepository.save" {
		t.Fatalf("unexpected interface method %+v", save)
	}
	if save.Signature != "save(user: User): Promise<void>" {
		t.Fatalf("unexpected interface method signature %q", save.Signature)
	}
	if alias := findSymbol(t, file, "UserId"); alias.Signature != "type UserId" {
		t.Fatalf("unexpected type alias %+v", alias)
	}
	if role := findSymbol(t, file, "Role"); role.Kind != parser.SymbolEnum {
		t.Fatalf("unexpected enum %+v", role)
	}
}

func TestJSModuleNames(t *testing.T) {
	cases := map[string]string{
		"src/index.ts":         "src",
		"index.ts":             "",
		"a/b.service.ts":       "a.b.service",
		"components/App.tsx":   "components.App",
		"lib\\legacy\\util.js": "lib.legacy.util",
	}
	for input, want := range cases {
		if got := jsModuleName(input); got != want {
			t.Fatalf("jsModuleName(%q) = %q, want %q", input, got, want)
		}
	}
	if got := jsResolveModule("app/service.ts", "../shared/util"); got != "shared.util" {
		t.Fatalf("unexpected relative module %q", got)
	}
	if got := jsResolveModule("app/service.ts", "@scope/pkg"); got != "@scope.pkg" {
		t.Fatalf("unexpected package module %q", got)
	}
}
