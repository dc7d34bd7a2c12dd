package languages

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// RubyExtractor extracts Ruby declarations and references. Ruby constant
// paths ("Billing::Invoice") become dotted FQNs ("Billing.Invoice").
type RubyExtractor struct {
	trees *treeParser
}

// NewRubyExtractor creates a new Ruby extractor
func NewRubyExtractor() *RubyExtractor {
	return &RubyExtractor{trees: newTreeParser(ruby.GetLanguage())}
}

func (r *RubyExtractor) Language() string {
	return "ruby"
}

func (r *RubyExtractor) Extensions() []string {
	return []string{".rb", ".rake", ".gemspec"}
}

type rbFile struct {
	content []byte
	mode    parser.ExtractMode
	result  *parser.FileSymbols
}

// rbScope is the lexical nesting: module path plus the enclosing class.
type rbScope struct {
	module    string
	className string
}

func (s rbScope) container() string {
	return qualify(s.module, s.className)
}

func (r *RubyExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	tree, err := r.trees.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	f := &rbFile{
		content: content,
		mode:    mode,
		result: &parser.FileSymbols{
			Path:          filename,
			Language:      "ruby",
			Symbols:       make([]parser.Symbol, 0),
			Imports:       make([]string, 0),
			ImportAliases: make(map[string]string),
		},
	}

	r.extract(tree.RootNode(), f, rbScope{})
	return f.result, nil
}

func (r *RubyExtractor) extract(node *sitter.Node, f *rbFile, scope rbScope) {
	switch node.Type() {
	case "method":
		f.addMethod(node, scope, false)
		return

	case "singleton_method":
		f.addMethod(node, scope, true)
		return

	case "class":
		r.extractClass(node, f, scope)
		return

	case "module":
		r.extractModule(node, f, scope)
		return

	case "call", "method_call", "command":
		if f.extractRequire(node) {
			return
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		r.extract(node.NamedChild(i), f, scope)
	}
}

func (r *RubyExtractor) extractModule(node *sitter.Node, f *rbFile, scope rbScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	path := rubyConstantPath(nameNode.Content(f.content))
	_, name := splitQualifiedName(path)
	fqn := qualify(scope.container(), path)
	if f.result.Namespace == "" {
		f.result.Namespace = fqn
	}

	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolModule,
		FQN:       fqn,
		Signature: "module " + nameNode.Content(f.content),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    scope.className,
		Doc:       rubyComment(node, f.content),
	})

	inner := rbScope{module: fqn}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if sameNode(child, nameNode) {
			continue
		}
		r.extract(child, f, inner)
	}
}

func (r *RubyExtractor) extractClass(node *sitter.Node, f *rbFile, scope rbScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	path := rubyConstantPath(nameNode.Content(f.content))
	qualifier, name := splitQualifiedName(path)
	module := qualify(scope.container(), qualifier)

	superNode := node.ChildByFieldName("superclass")
	signature := "class " + nameNode.Content(f.content)
	if superNode != nil {
		signature += " " + collapse(superNode.Content(f.content))
	}
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolClass,
		FQN:       qualify(module, name),
		Signature: signature,
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    scope.className,
		Doc:       rubyComment(node, f.content),
	})

	inner := rbScope{module: module, className: name}
	if superNode != nil && f.mode == parser.ModeFull {
		if base := superNode.NamedChild(0); base != nil {
			f.addConstantRef(base, parser.RefInheritance, scope)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if sameNode(child, nameNode) || sameNode(child, superNode) {
			continue
		}
		r.extract(child, f, inner)
		if f.mode == parser.ModeFull {
			f.collectMixins(child, inner)
		}
	}
}

// collectMixins records "include Mod" and "extend Mod" in a class body as
// supertype references.
func (f *rbFile) collectMixins(node *sitter.Node, scope rbScope) {
	candidates := []*sitter.Node{node}
	if node.Type() == "body_statement" {
		candidates = candidates[:0]
		for i := 0; i < int(node.NamedChildCount()); i++ {
			candidates = append(candidates, node.NamedChild(i))
		}
	}
	for _, n := range candidates {
		switch n.Type() {
		case "call", "method_call", "command":
		default:
			continue
		}
		if n.ChildByFieldName("receiver") != nil {
			continue
		}
		method := rubyMethodName(n, f.content)
		if method != "include" && method != "extend" && method != "prepend" {
			continue
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			continue
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			f.addConstantRef(args.NamedChild(i), parser.RefInheritance, scope)
		}
	}
}

func (f *rbFile) addConstantRef(node *sitter.Node, kind parser.ReferenceKind, scope rbScope) {
	if node.Type() != "constant" && node.Type() != "scope_resolution" {
		return
	}
	path := rubyConstantPath(node.Content(f.content))
	qualifier, name := splitQualifiedName(path)
	f.result.References = append(f.result.References, parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		FQN:       rubyConstantFQN(scope, path),
		Kind:      kind,
		Line:      startLine(node),
		Column:    column(node),
	})
}

func (f *rbFile) addMethod(node *sitter.Node, scope rbScope, singleton bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(f.content)
	kind := parser.SymbolFunction
	if scope.className != "" || scope.module != "" {
		kind = parser.SymbolMethod
	}

	params := node.ChildByFieldName("parameters")
	signature := "def "
	if singleton {
		signature += "self."
	}
	signature += name
	if params != nil {
		signature += collapse(params.Content(f.content))
	}

	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(scope.container(), name),
		Signature: signature,
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    scope.className,
		Params:    countNamed(params),
		Doc:       rubyComment(node, f.content),
	})

	if f.mode != parser.ModeFull {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if sameNode(child, nameNode) || sameNode(child, params) {
			continue
		}
		f.collectCalls(child, scope)
	}
}

func (f *rbFile) collectCalls(body *sitter.Node, scope rbScope) {
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "method", "singleton_method", "class", "module":
			return false
		case "call", "method_call", "command", "command_call":
			f.addCall(n, scope)
		}
		return true
	})
}

func (f *rbFile) addCall(n *sitter.Node, scope rbScope) {
	name := rubyMethodName(n, f.content)
	if name == "" {
		return
	}
	arity := 0
	if args := n.ChildByFieldName("arguments"); args != nil {
		arity = countNamed(args)
	}

	receiver := n.ChildByFieldName("receiver")
	qualifier := ""
	if receiver != nil {
		qualifier = strings.TrimSpace(receiver.Content(f.content))
	}

	ref := parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		Kind:      parser.RefCall,
		Arity:     arity,
		Line:      startLine(n),
		Column:    column(n),
	}
	switch {
	case receiver == nil || qualifier == "self":
		ref.FQN = qualify(scope.container(), name)
	case receiver.Type() == "constant" || receiver.Type() == "scope_resolution":
		path := rubyConstantPath(qualifier)
		if name == "new" {
			// Foo::Bar.new constructs Bar
			ref.Kind = parser.RefConstruct
			ref.Qualifier, ref.Name = splitQualifiedName(path)
			ref.FQN = rubyConstantFQN(scope, path)
		} else {
			ref.Qualifier = path
			ref.FQN = qualify(rubyConstantFQN(scope, path), name)
		}
	}
	f.result.References = append(f.result.References, ref)
}

// extractRequire records require and require_relative calls as imports.
// It reports whether node was one.
func (f *rbFile) extractRequire(node *sitter.Node) bool {
	if node.ChildByFieldName("receiver") != nil {
		return false
	}
	method := rubyMethodName(node, f.content)
	if method != "require" && method != "require_relative" {
		return false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return true
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "string" {
			continue
		}
		imp := extractRubyString(arg.Content(f.content))
		if imp == "" {
			continue
		}
		f.result.Imports = append(f.result.Imports, imp)
		if alias := defaultImportAlias(imp); alias != "" {
			f.result.ImportAliases[alias] = imp
		}
		if f.mode == parser.ModeFull {
			f.result.References = append(f.result.References, parser.Reference{
				Name:   defaultImportAlias(imp),
				FQN:    imp,
				Kind:   parser.RefImport,
				Line:   startLine(node),
				Column: column(node),
			})
		}
	}
	return true
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Type() == b.Type() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func rubyMethodName(n *sitter.Node, content []byte) string {
	methodNode := n.ChildByFieldName("method")
	if methodNode == nil {
		methodNode = n.ChildByFieldName("name")
	}
	if methodNode == nil {
		return ""
	}
	return strings.TrimSpace(methodNode.Content(content))
}

// rubyConstantFQN qualifies a constant path written inside scope. A path
// starting with "::" is absolute.
func rubyConstantFQN(scope rbScope, path string) string {
	if strings.HasPrefix(path, ".") {
		return strings.TrimPrefix(path, ".")
	}
	if strings.Contains(path, ".") {
		return path
	}
	return qualify(scope.module, path)
}

// rubyConstantPath turns "A::B" into "A.B" and "::A" into ".A".
func rubyConstantPath(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "::", ".")
}

func rubyComment(node *sitter.Node, content []byte) string {
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" || endLine(prev) != startLine(node)-1 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(prev.Content(content), "#"))
}

func extractRubyString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		return s[1 : len(s)-1]
	}
	return s
}
