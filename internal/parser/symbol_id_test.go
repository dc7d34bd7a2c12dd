package parser

import "testing"

func TestStableSymbolIDIsDeterministic(t *testing.T) {
	sym := Symbol{Name: "Save", Kind: SymbolMethod, Line: 12, Signature: "void Save()"}

	primary := StableSymbolID("", "src/UserService.cs", sym)
	if primary != "src/UserService.cs|12|method|Save" {
		t.Fatalf("unexpected primary id %q", primary)
	}
	if again := StableSymbolID("", "src/UserService.cs", sym); again != primary {
		t.Fatalf("expected identical ids, got %q and %q", primary, again)
	}

	sym.Signature = "void Save(User u)"
	if changed := StableSymbolID("", "src/UserService.cs", sym); changed != primary {
		t.Fatalf("signature must not affect the id, got %q", changed)
	}

	aux := StableSymbolID("contracts", "src/UserService.cs", sym)
	if aux == primary {
		t.Fatalf("expected project to change the id")
	}
}

func TestAssignIDsLinksParentsAndReferenceOwners(t *testing.T) {
	fs := &FileSymbols{
		Path: "svc.cs",
		Symbols: []Symbol{
			{Name: "UserService", Kind: SymbolClass, Line: 1, EndLine: 10},
			{Name: "Save", Kind: SymbolMethod, Parent: "UserService", Line: 3, EndLine: 6},
		},
		References: []Reference{
			{Name: "IUserRepository", Kind: RefImplementation, Line: 1},
			{Name: "Persist", Kind: RefCall, Line: 4},
			{Name: "Stray", Kind: RefUsage, Line: 20},
		},
	}

	AssignIDs("", fs)

	class, method := fs.Symbols[0], fs.Symbols[1]
	if method.ParentID != class.ID {
		t.Fatalf("expected method parent %q, got %q", class.ID, method.ParentID)
	}
	if fs.References[0].From != class.ID {
		t.Fatalf("expected class to own the base-type reference, got %q", fs.References[0].From)
	}
	if fs.References[1].From != method.ID {
		t.Fatalf("expected method to own the call, got %q", fs.References[1].From)
	}
	if fs.References[2].From != "" {
		t.Fatalf("expected no owner outside any span, got %q", fs.References[2].From)
	}
	if method.File != "svc.cs" || fs.References[1].File != "svc.cs" {
		t.Fatalf("expected file paths to be stamped")
	}
}
