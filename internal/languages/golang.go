package languages

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// GoExtractor extracts Go declarations and references
type GoExtractor struct {
	trees *treeParser
}

// NewGoExtractor creates a new Go extractor
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{trees: newTreeParser(golang.GetLanguage())}
}

func (g *GoExtractor) Language() string {
	return "go"
}

func (g *GoExtractor) Extensions() []string {
	return []string{".go"}
}

// goFile carries per-file state through the walk.
type goFile struct {
	content []byte
	pkg     string
	mode    parser.ExtractMode
	result  *parser.FileSymbols
	// alias -> package name used in FQNs
	packages map[string]string
}

func (g *GoExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	tree, err := g.trees.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	f := &goFile{
		content: content,
		mode:    mode,
		result: &parser.FileSymbols{
			Path:          filename,
			Language:      "go",
			Symbols:       make([]parser.Symbol, 0),
			Imports:       make([]string, 0),
			ImportAliases: make(map[string]string),
		},
		packages: make(map[string]string),
	}

	root := tree.RootNode()
	// package and imports first so references can be qualified
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_clause":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				f.pkg = strings.TrimSpace(child.NamedChild(j).Content(content))
			}
		case "import_declaration":
			g.extractImports(child, f)
		}
	}
	f.result.Namespace = f.pkg

	for i := 0; i < int(root.NamedChildCount()); i++ {
		g.extractDeclaration(root.NamedChild(i), f)
	}

	if mode == parser.ModeFull {
		g.collectReferences(root, f)
	}
	return f.result, nil
}

func (g *GoExtractor) extractDeclaration(node *sitter.Node, f *goFile) {
	switch node.Type() {
	case "function_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(f.content)
		f.add(parser.Symbol{
			Name:      name,
			Kind:      parser.SymbolFunction,
			FQN:       qualify(f.pkg, name),
			Signature: headerText(node, node.ChildByFieldName("body"), f.content),
			Line:      startLine(node),
			EndLine:   endLine(node),
			Params:    goParamCount(node.ChildByFieldName("parameters")),
		})

	case "method_declaration":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(f.content)
		receiver := receiverTypeName(node.ChildByFieldName("receiver"), f.content)
		f.add(parser.Symbol{
			Name:      name,
			Kind:      parser.SymbolMethod,
			FQN:       qualify(f.pkg, receiver, name),
			Signature: headerText(node, node.ChildByFieldName("body"), f.content),
			Line:      startLine(node),
			EndLine:   endLine(node),
			Parent:    receiver,
			Params:    goParamCount(node.ChildByFieldName("parameters")),
		})

	case "type_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			spec := node.NamedChild(i)
			if spec.Type() == "type_spec" || spec.Type() == "type_alias" {
				g.extractTypeSpec(spec, f)
			}
		}

	case "const_declaration", "var_declaration":
		kind := parser.SymbolConstant
		specType := "const_spec"
		if node.Type() == "var_declaration" {
			kind = parser.SymbolVariable
			specType = "var_spec"
		}
		walk(node, func(n *sitter.Node) bool {
			if n.Type() != specType {
				return true
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.FieldNameForChild(i) != "name" {
					continue
				}
				name := n.Child(i).Content(f.content)
				f.add(parser.Symbol{
					Name:      name,
					Kind:      kind,
					FQN:       qualify(f.pkg, name),
					Signature: collapse(n.Content(f.content)),
					Line:      startLine(n),
					EndLine:   endLine(n),
				})
			}
			return false
		})
	}
}

func (g *GoExtractor) extractTypeSpec(spec *sitter.Node, f *goFile) {
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(f.content)
	typeNode := spec.ChildByFieldName("type")

	kind := parser.SymbolStruct
	signature := "type " + name
	var body *sitter.Node
	if typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			signature += " struct"
			body = typeNode
		case "interface_type":
			kind = parser.SymbolInterface
			signature += " interface"
			body = typeNode
		default:
			signature += " " + collapse(typeNode.Content(f.content))
		}
	}

	f.add(parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(f.pkg, name),
		Signature: signature,
		Line:      startLine(spec),
		EndLine:   endLine(spec),
	})
	if body == nil {
		return
	}

	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "field_declaration":
			named := false
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.FieldNameForChild(i) != "name" {
					continue
				}
				named = true
				field := n.Child(i).Content(f.content)
				f.add(parser.Symbol{
					Name:      field,
					Kind:      parser.SymbolField,
					FQN:       qualify(f.pkg, name, field),
					Signature: collapse(n.Content(f.content)),
					Line:      startLine(n),
					EndLine:   endLine(n),
					Parent:    name,
				})
			}
			if !named {
				if typ := n.ChildByFieldName("type"); typ != nil {
					f.embed(typ)
				}
			}
			return false
		case "method_elem", "method_spec":
			method := n.ChildByFieldName("name")
			if method == nil {
				return false
			}
			methodName := method.Content(f.content)
			f.add(parser.Symbol{
				Name:      methodName,
				Kind:      parser.SymbolMethod,
				FQN:       qualify(f.pkg, name, methodName),
				Signature: collapse(n.Content(f.content)),
				Line:      startLine(n),
				EndLine:   endLine(n),
				Parent:    name,
				Params:    goParamCount(n.ChildByFieldName("parameters")),
			})
			return false
		case "type_elem", "constraint_elem", "interface_type_name":
			f.embed(n)
			return false
		}
		return true
	})
}

func (g *GoExtractor) collectReferences(root *sitter.Node, f *goFile) {
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			fnNode := n.ChildByFieldName("function")
			name, qualifier := goCallName(fnNode, f.content)
			if name != "" && !(qualifier == "" && goBuiltins[name]) {
				f.ref(parser.Reference{
					Name:      name,
					Qualifier: qualifier,
					FQN:       f.qualifyRef(qualifier, name),
					Kind:      parser.RefCall,
					Arity:     countNamed(n.ChildByFieldName("arguments")),
					Line:      startLine(n),
					Column:    column(n),
				})
			}
		case "composite_literal":
			if typ := n.ChildByFieldName("type"); typ != nil {
				qualifier, name := splitQualifiedName(typ.Content(f.content))
				if name != "" && isGoIdentifier(name) {
					f.ref(parser.Reference{
						Name:      name,
						Qualifier: qualifier,
						FQN:       f.qualifyRef(qualifier, name),
						Kind:      parser.RefConstruct,
						Line:      startLine(n),
						Column:    column(n),
					})
				}
			}
		case "qualified_type":
			qualifier, name := splitQualifiedName(n.Content(f.content))
			if _, imported := f.packages[qualifier]; imported {
				f.ref(parser.Reference{
					Name:      name,
					Qualifier: qualifier,
					FQN:       f.qualifyRef(qualifier, name),
					Kind:      parser.RefUsage,
					Line:      startLine(n),
					Column:    column(n),
				})
			}
		}
		return true
	})
}

func (g *GoExtractor) extractImports(node *sitter.Node, f *goFile) {
	walk(node, func(n *sitter.Node) bool {
		if n.Type() != "import_spec" {
			return true
		}
		importPath, alias := readGoImportSpec(n, f.content)
		if importPath == "" {
			return false
		}
		f.result.Imports = append(f.result.Imports, importPath)
		if alias != "" {
			f.result.ImportAliases[alias] = importPath
			f.packages[alias] = defaultImportAlias(importPath)
		}
		if f.mode == parser.ModeFull {
			f.ref(parser.Reference{
				Name:   defaultImportAlias(importPath),
				FQN:    importPath,
				Kind:   parser.RefImport,
				Line:   startLine(n),
				Column: column(n),
			})
		}
		return false
	})
}

func (f *goFile) add(sym parser.Symbol) {
	f.result.Symbols = append(f.result.Symbols, sym)
}

func (f *goFile) ref(ref parser.Reference) {
	if f.mode != parser.ModeFull {
		return
	}
	f.result.References = append(f.result.References, ref)
}

// embed records an embedded type as a base type of the enclosing declaration.
func (f *goFile) embed(n *sitter.Node) {
	raw := strings.TrimLeft(collapse(n.Content(f.content)), "*~")
	if idx := strings.Index(raw, "["); idx != -1 {
		raw = raw[:idx]
	}
	qualifier, name := splitQualifiedName(raw)
	if name == "" || !isGoIdentifier(name) {
		return
	}
	f.ref(parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		FQN:       f.qualifyRef(qualifier, name),
		Kind:      parser.RefInheritance,
		Line:      startLine(n),
		Column:    column(n),
	})
}

// qualifyRef expands an import alias to its package name; unqualified
// names belong to the current package. Other qualifiers are receivers
// whose type is unknown, so no FQN is produced.
func (f *goFile) qualifyRef(qualifier, name string) string {
	if qualifier == "" {
		return qualify(f.pkg, name)
	}
	if pkg, ok := f.packages[qualifier]; ok {
		return qualify(pkg, name)
	}
	return ""
}

// goParamCount counts declared parameters; "a, b int" is two.
func goParamCount(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		decl := params.NamedChild(i)
		if decl.Type() == "comment" {
			continue
		}
		names := 0
		for j := 0; j < int(decl.ChildCount()); j++ {
			if decl.FieldNameForChild(j) == "name" {
				names++
			}
		}
		if names == 0 {
			names = 1
		}
		count += names
	}
	return count
}

func receiverTypeName(receiver *sitter.Node, content []byte) string {
	if receiver == nil {
		return ""
	}
	raw := strings.Trim(collapse(receiver.Content(content)), "()")
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	typ := strings.TrimLeft(fields[len(fields)-1], "*")
	if idx := strings.Index(typ, "["); idx != -1 {
		typ = typ[:idx]
	}
	return typ
}

func goCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "selector_expression":
		operandNode := node.ChildByFieldName("operand")
		fieldNode := node.ChildByFieldName("field")
		if fieldNode != nil {
			qualifierValue := ""
			if operandNode != nil {
				qualifierValue = strings.TrimSpace(operandNode.Content(content))
			}
			return fieldNode.Content(content), qualifierValue
		}
	case "parenthesized_expression":
		if inner := node.NamedChild(0); inner != nil {
			return goCallName(inner, content)
		}
	case "index_expression", "generic_type", "type_instantiation_expression":
		if operand := node.ChildByFieldName("operand"); operand != nil {
			return goCallName(operand, content)
		}
		if typ := node.ChildByFieldName("type"); typ != nil {
			return goCallName(typ, content)
		}
	case "func_literal":
		return "", ""
	}

	qualifierValue, nameValue := splitQualifiedName(node.Content(content))
	if nameValue != "" && isGoIdentifier(nameValue) {
		return nameValue, qualifierValue
	}
	return "", ""
}

func readGoImportSpec(spec *sitter.Node, content []byte) (importPath, alias string) {
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return "", ""
	}

	importPath = strings.Trim(strings.TrimSpace(pathNode.Content(content)), "\"`")

	if aliasNode := spec.ChildByFieldName("name"); aliasNode != nil {
		alias = strings.TrimSpace(aliasNode.Content(content))
	}
	if alias == "_" || alias == "." {
		alias = ""
	}
	if alias == "" {
		alias = defaultImportAlias(importPath)
	}
	return importPath, alias
}

var goBuiltins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
	"string": true, "int": true, "int64": true, "uint32": true, "byte": true, "rune": true, "float64": true,
}

func isGoIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		if r > 127 {
			continue
		}
		return false
	}
	return true
}
