package languages

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// TypeScriptExtractor extracts TypeScript and JavaScript declarations and
// references. Files are tagged "typescript" or "javascript" by extension.
type TypeScriptExtractor struct {
	ts  *treeParser
	tsx *treeParser
	js  *treeParser
}

// NewTypeScriptExtractor creates a new TypeScript/JavaScript extractor
func NewTypeScriptExtractor() *TypeScriptExtractor {
	return &TypeScriptExtractor{
		ts:  newTreeParser(typescript.GetLanguage()),
		tsx: newTreeParser(tsx.GetLanguage()),
		js:  newTreeParser(javascript.GetLanguage()),
	}
}

func (t *TypeScriptExtractor) Language() string {
	return "typescript"
}

func (t *TypeScriptExtractor) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

var tsTypeKinds = map[string]parser.SymbolKind{
	"class_declaration":          parser.SymbolClass,
	"abstract_class_declaration": parser.SymbolClass,
	"interface_declaration":      parser.SymbolInterface,
	"enum_declaration":           parser.SymbolEnum,
	"type_alias_declaration":     parser.SymbolStruct,
}

type tsFile struct {
	content []byte
	module  string
	mode    parser.ExtractMode
	result  *parser.FileSymbols
}

func (t *TypeScriptExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	trees, lang := t.ts, "typescript"
	switch strings.ToLower(path.Ext(filename)) {
	case ".tsx":
		trees = t.tsx
	case ".js", ".jsx", ".mjs", ".cjs":
		trees, lang = t.js, "javascript"
	}

	tree, err := trees.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	f := &tsFile{
		content: content,
		module:  jsModuleName(filename),
		mode:    mode,
		result: &parser.FileSymbols{
			Path:          filename,
			Language:      lang,
			Symbols:       make([]parser.Symbol, 0),
			Imports:       make([]string, 0),
			ImportAliases: make(map[string]string),
		},
	}
	f.result.Namespace = f.module

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if child := root.NamedChild(i); child.Type() == "import_statement" {
			f.extractImport(child)
		}
	}
	t.extract(root, f, "")
	return f.result, nil
}

func (t *TypeScriptExtractor) extract(node *sitter.Node, f *tsFile, className string) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		f.addCallable(node, node.ChildByFieldName("name"), node, parser.SymbolFunction, "")
		return

	case "method_definition", "method_signature", "abstract_method_signature":
		f.addCallable(node, node.ChildByFieldName("name"), node, parser.SymbolMethod, className)
		return

	case "public_field_definition", "field_definition", "property_signature":
		f.addField(node, className)
		return

	case "lexical_declaration", "variable_declaration":
		f.extractVariables(node, className)
		return

	case "import_statement":
		return
	}

	if kind, ok := tsTypeKinds[node.Type()]; ok {
		t.extractType(node, f, kind)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		t.extract(node.NamedChild(i), f, className)
	}
}

func (t *TypeScriptExtractor) extractType(node *sitter.Node, f *tsFile, kind parser.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(f.content)
	body := node.ChildByFieldName("body")

	signature := headerText(node, body, f.content)
	if kind == parser.SymbolStruct {
		signature = "type " + name
	}
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(f.module, name),
		Signature: signature,
		Line:      startLine(node),
		EndLine:   endLine(node),
		Doc:       jsDocComment(node, f.content),
	})

	if f.mode == parser.ModeFull {
		f.extractHeritage(node)
	}
	if body == nil || kind == parser.SymbolStruct || kind == parser.SymbolEnum {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		t.extract(body.NamedChild(i), f, name)
	}
}

// extractHeritage records extends and implements clauses. The TypeScript
// grammar wraps them in extends_clause/implements_clause; the JavaScript
// grammar puts the base expression directly under class_heritage.
func (f *tsFile) extractHeritage(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_heritage":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				clause := child.NamedChild(j)
				switch clause.Type() {
				case "extends_clause":
					f.addSupertypes(clause, parser.RefInheritance)
				case "implements_clause":
					f.addSupertypes(clause, parser.RefImplementation)
				default:
					f.addSupertype(clause, parser.RefInheritance)
				}
			}
		case "extends_type_clause":
			f.addSupertypes(child, parser.RefInheritance)
		}
	}
}

func (f *tsFile) addSupertypes(clause *sitter.Node, kind parser.ReferenceKind) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		f.addSupertype(clause.NamedChild(i), kind)
	}
}

func (f *tsFile) addSupertype(node *sitter.Node, kind parser.ReferenceKind) {
	switch node.Type() {
	case "generic_type":
		if name := node.ChildByFieldName("name"); name != nil {
			node = name
		}
	case "identifier", "type_identifier", "member_expression", "nested_type_identifier":
	default:
		return
	}
	qualifier, name := splitQualifiedName(node.Content(f.content))
	if name == "" {
		return
	}
	f.result.References = append(f.result.References, parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		FQN:       qualifyThroughImports(f.result.ImportAliases, f.module, qualifier, name),
		Kind:      kind,
		Line:      startLine(node),
		Column:    column(node),
	})
}

// addCallable records a function or method. declNode spans the symbol;
// fn holds the parameters and body, which differ for arrow functions.
func (f *tsFile) addCallable(declNode, nameNode, fn *sitter.Node, kind parser.SymbolKind, className string) {
	if nameNode == nil {
		return
	}
	name := nameNode.Content(f.content)
	if kind == parser.SymbolFunction && className != "" {
		kind = parser.SymbolMethod
	}

	body := fn.ChildByFieldName("body")
	signature := strings.TrimSuffix(headerText(declNode, body, f.content), ";")
	params := countNamed(fn.ChildByFieldName("parameters"))
	if fn.ChildByFieldName("parameter") != nil {
		params = 1 // x => ...
	}
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(f.module, className, name),
		Signature: signature,
		Line:      startLine(declNode),
		EndLine:   endLine(declNode),
		Parent:    className,
		Params:    params,
		Doc:       jsDocComment(declNode, f.content),
	})

	if f.mode == parser.ModeFull {
		f.collectReferences(body, className)
	}
}

func (f *tsFile) addField(node *sitter.Node, className string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = node.ChildByFieldName("property")
	}
	if nameNode == nil || className == "" {
		return
	}
	if value := node.ChildByFieldName("value"); value != nil && isJSFunction(value) {
		f.addCallable(node, nameNode, value, parser.SymbolMethod, className)
		return
	}
	name := nameNode.Content(f.content)
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolField,
		FQN:       qualify(f.module, className, name),
		Signature: strings.TrimSuffix(collapse(node.Content(f.content)), ";"),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    className,
	})
}

// extractVariables indexes top-level and class-level declarations whose
// value is a function; other variables are not symbols.
func (f *tsFile) extractVariables(node *sitter.Node, className string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil || !isJSFunction(value) {
			if f.mode == parser.ModeFull {
				f.collectReferences(value, className)
			}
			continue
		}
		f.addCallable(node, child.ChildByFieldName("name"), value, parser.SymbolFunction, className)
	}
}

func (f *tsFile) collectReferences(body *sitter.Node, className string) {
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "class_declaration", "class":
			return false
		case "call_expression":
			name, qualifier := jsCallName(n.ChildByFieldName("function"), f.content)
			f.addReference(n, name, qualifier, parser.RefCall, className)
		case "new_expression":
			name, qualifier := jsCallName(n.ChildByFieldName("constructor"), f.content)
			f.addReference(n, name, qualifier, parser.RefConstruct, className)
		}
		return true
	})
}

func (f *tsFile) addReference(n *sitter.Node, name, qualifier string, kind parser.ReferenceKind, className string) {
	if name == "" {
		return
	}
	fqn := qualifyThroughImports(f.result.ImportAliases, f.module, qualifier, name)
	if qualifier == "this" && className != "" {
		fqn = qualify(f.module, className, name)
	}
	f.result.References = append(f.result.References, parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		FQN:       fqn,
		Kind:      kind,
		Arity:     countNamed(n.ChildByFieldName("arguments")),
		Line:      startLine(n),
		Column:    column(n),
	})
}

// extractImport binds default, namespace and named imports. Named imports
// map to "module#name"; default and namespace imports map to the module.
func (f *tsFile) extractImport(node *sitter.Node) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	spec := strings.Trim(source.Content(f.content), "\"'`")
	if spec == "" {
		return
	}
	module := jsResolveModule(f.result.Path, spec)
	f.result.Imports = append(f.result.Imports, spec)

	if clause := childOfType(node, "import_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			child := clause.NamedChild(i)
			switch child.Type() {
			case "identifier":
				f.result.ImportAliases[child.Content(f.content)] = module
			case "namespace_import":
				if alias := childOfType(child, "identifier"); alias != nil {
					f.result.ImportAliases[alias.Content(f.content)] = module
				}
			case "named_imports":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					specifier := child.NamedChild(j)
					if specifier.Type() != "import_specifier" {
						continue
					}
					imported := fieldText(specifier, "name", f.content)
					alias := fieldText(specifier, "alias", f.content)
					if alias == "" {
						alias = imported
					}
					if imported != "" {
						f.result.ImportAliases[alias] = module + "#" + imported
					}
				}
			}
		}
	}

	if f.mode == parser.ModeFull {
		f.result.References = append(f.result.References, parser.Reference{
			Name:   defaultImportAlias(spec),
			FQN:    module,
			Kind:   parser.RefImport,
			Line:   startLine(node),
			Column: column(node),
		})
	}
}

func isJSFunction(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func jsCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "member_expression":
		object := node.ChildByFieldName("object")
		property := node.ChildByFieldName("property")
		if property != nil {
			qualifierValue := ""
			if object != nil {
				qualifierValue = strings.TrimSpace(object.Content(content))
			}
			return property.Content(content), qualifierValue
		}
	case "subscript_expression":
		return jsCallName(node.ChildByFieldName("object"), content)
	case "parenthesized_expression":
		if inner := node.NamedChild(0); inner != nil {
			return jsCallName(inner, content)
		}
	case "non_null_expression":
		if inner := node.NamedChild(0); inner != nil {
			return jsCallName(inner, content)
		}
	}
	return "", ""
}

// jsDocComment returns the first line of a /** */ block directly above
// the declaration or its export statement.
func jsDocComment(node *sitter.Node, content []byte) string {
	target := node
	if parent := node.Parent(); parent != nil && parent.Type() == "export_statement" {
		target = parent
	}
	prev := target.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	text := prev.Content(content)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line != "" && !strings.HasPrefix(line, "@") {
			return line
		}
	}
	return ""
}

// jsModuleName derives a dotted module path from a relative file path;
// index files name their directory.
func jsModuleName(filename string) string {
	p := path.Clean(strings.ReplaceAll(filename, "\\", "/"))
	switch path.Ext(p) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		p = strings.TrimSuffix(p, path.Ext(p))
	}
	if base := path.Base(p); base == "index" {
		p = path.Dir(p)
	}
	if p == "." || p == "index" {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

// jsResolveModule maps an import specifier to the dotted module path used
// for FQNs. Relative specifiers resolve against the importing file.
func jsResolveModule(fromFile, spec string) string {
	if strings.HasPrefix(spec, ".") {
		dir := path.Dir(strings.ReplaceAll(fromFile, "\\", "/"))
		return jsModuleName(path.Join(dir, spec))
	}
	return strings.ReplaceAll(spec, "/", ".")
}
