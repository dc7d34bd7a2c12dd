package languages

import (
	"testing"

	"github.com/skelly-dev/codegraph/internal/parser"
)

const rubyBillingSource = `require "json"
require_relative "lib/tax"

module Billing
  # Issues invoices.
  class Invoice < Base::Record
    include Comparable

    def total(items, rate)
      sum = compute(items)
      Tax::Rules.apply(sum, rate)
      self.round(sum)
    end

    def self.build(attrs)
      Line.new(attrs)
    end
  end
end
`

func TestRubyDeclarations(t *testing.T) {
	file, err := NewRubyExtractor().Extract("billing/invoice.rb", []byte(rubyBillingSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if file.Namespace != "Billing" {
		t.Fatalf("expected namespace Billing, got %q", file.Namespace)
	}
	if len(file.Imports) != 2 || file.Imports[0] != "json" || file.Imports[1] != "lib/tax" {
		t.Fatalf("unexpected imports %#v", file.Imports)
	}
	if got := file.ImportAliases["tax"]; got != "lib/tax" {
		t.Fatalf("expected tax alias, got %q", got)
	}

	if mod := findSymbol(t, file, "Billing"); mod.Kind != parser.SymbolModule {
		t.Fatalf("unexpected module %+v", mod)
	}
	invoice := findSymbol(t, file, "Invoice")
	if invoice.Kind != parser.SymbolClass || invoice.FQN != "Billing.Invoice" || invoice.Doc != "Issues invoices." {
		t.Fatalf("unexpected class %+v", invoice)
	}
	if invoice.Signature != "class Invoice < Base::Record" {
		t.Fatalf("unexpected class signature %q", invoice.Signature)
	}

	total := findSymbol(t, file, "total")
	if total.Kind != parser.SymbolMethod || total.Parent != "Invoice" || total.Params != 2 || total.FQN != "Billing.Invoice.total" {
		t.Fatalf("unexpected method %+v", total)
	}
	if total.Signature != "def total(items, rate)" {
		t.Fatalf("unexpected method signature %q", total.Signature)
	}
	if build := findSymbol(t, file, "build"); build.Signature != "def self.build(attrs)" || build.Parent != "Invoice" {
		t.Fatalf("unexpected singleton method %+v", build)
	}
}

func TestRubyReferences(t *testing.T) {
	file, err := NewRubyExtractor().Extract("billing/invoice.rb", []byte(rubyBillingSource), parser.ModeFull)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	supers := refsOfKind(file, parser.RefInheritance)
	if len(supers) != 2 {
		t.Fatalf("expected superclass and mixin, got %+v", supers)
	}
	if supers[0].Name != "Record" || supers[0].Qualifier != "Base" || supers[0].FQN != "Base.Record" {
		t.Fatalf("unexpected superclass reference %+v", supers[0])
	}
	if supers[1].Name != "Comparable" || supers[1].FQN != "Billing.Comparable" {
		t.Fatalf("unexpected mixin reference %+v", supers[1])
	}

	calls := map[string]parser.Reference{}
	for _, ref := range refsOfKind(file, parser.RefCall) {
		calls[ref.Name] = ref
	}
	if got := calls["compute"]; got.FQN != "Billing.Invoice.compute" || got.Arity != 1 {
		t.Fatalf("expected implicit self call, got %+v", got)
	}
	if got := calls["apply"]; got.Qualifier != "Tax.Rules" || got.FQN != "Tax.Rules.apply" || got.Arity != 2 {
		t.Fatalf("expected constant receiver call, got %+v", got)
	}
	if got := calls["round"]; got.FQN != "Billing.Invoice.round" {
		t.Fatalf("expected self.round bound to the class, got %+v", got)
	}

	constructs := refsOfKind(file, parser.RefConstruct)
	if len(constructs) != 1 || constructs[0].Name != "Line" || constructs[0].FQN != "Billing.Line" {
		t.Fatalf("expected Line.new construct, got %+v", constructs)
	}
}

func TestRubySymbolsOnly(t *testing.T) {
	file, err := NewRubyExtractor().Extract("billing/invoice.rb", []byte(rubyBillingSource), parser.ModeSymbolsOnly)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(file.References) != 0 {
		t.Fatalf("expected no references, got %+v", file.References)
	}
	if len(file.Symbols) != 4 {
		t.Fatalf("expected module, class and two methods, got %+v", file.Symbols)
	}
}
