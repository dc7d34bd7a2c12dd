package languages

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// PythonExtractor extracts Python declarations and references
type PythonExtractor struct {
	trees *treeParser
}

// NewPythonExtractor creates a new Python extractor
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{trees: newTreeParser(python.GetLanguage())}
}

func (p *PythonExtractor) Language() string {
	return "python"
}

func (p *PythonExtractor) Extensions() []string {
	return []string{".py", ".pyw"}
}

type pyFile struct {
	content []byte
	module  string
	mode    parser.ExtractMode
	result  *parser.FileSymbols
}

func (p *PythonExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	tree, err := p.trees.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	f := &pyFile{
		content: content,
		module:  pythonModuleName(filename),
		mode:    mode,
		result: &parser.FileSymbols{
			Path:          filename,
			Language:      "python",
			Symbols:       make([]parser.Symbol, 0),
			Imports:       make([]string, 0),
			ImportAliases: make(map[string]string),
		},
	}
	f.result.Namespace = f.module

	root := tree.RootNode()
	p.extractImports(root, f)
	p.extractSymbols(root, f, "")
	return f.result, nil
}

func (p *PythonExtractor) extractSymbols(node *sitter.Node, f *pyFile, className string) {
	switch node.Type() {
	case "function_definition":
		p.extractFunction(node, f, className)
		return

	case "class_definition":
		p.extractClass(node, f)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.extractSymbols(node.NamedChild(i), f, className)
	}
}

func (p *PythonExtractor) extractFunction(node *sitter.Node, f *pyFile, className string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := nameNode.Content(f.content)
	kind := parser.SymbolFunction
	if className != "" {
		kind = parser.SymbolMethod
	}

	params := node.ChildByFieldName("parameters")
	arity := countNamed(params)
	if className != "" && arity > 0 {
		arity-- // self / cls
	}

	body := node.ChildByFieldName("body")
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(f.module, className, name),
		Signature: strings.TrimSuffix(headerText(node, body, f.content), ":"),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    className,
		Params:    arity,
		Doc:       leadingDocstring(body, f.content),
	})

	if f.mode == parser.ModeFull {
		p.collectCalls(body, f, className)
	}
}

func (p *PythonExtractor) extractClass(node *sitter.Node, f *pyFile) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := nameNode.Content(f.content)
	body := node.ChildByFieldName("body")
	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolClass,
		FQN:       qualify(f.module, name),
		Signature: strings.TrimSuffix(headerText(node, body, f.content), ":"),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Doc:       leadingDocstring(body, f.content),
	})

	if f.mode == parser.ModeFull {
		if supers := node.ChildByFieldName("superclasses"); supers != nil {
			for i := 0; i < int(supers.NamedChildCount()); i++ {
				base := supers.NamedChild(i)
				if base.Type() != "identifier" && base.Type() != "attribute" {
					continue
				}
				qualifier, baseName := splitQualifiedName(base.Content(f.content))
				f.result.References = append(f.result.References, parser.Reference{
					Name:      baseName,
					Qualifier: qualifier,
					FQN:       f.qualifyRef(qualifier, baseName),
					Kind:      parser.RefInheritance,
					Line:      startLine(base),
					Column:    column(base),
				})
			}
		}
	}

	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		p.extractSymbols(body.NamedChild(i), f, name)
	}
}

func (p *PythonExtractor) collectCalls(body *sitter.Node, f *pyFile, className string) {
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_definition", "class_definition":
			// nested definitions are not indexed; their calls belong to the outer symbol
			return true
		case "call":
			name, qualifier := pythonCallName(n.ChildByFieldName("function"), f.content)
			if name == "" {
				return true
			}
			fqn := f.qualifyRef(qualifier, name)
			if (qualifier == "self" || qualifier == "cls") && className != "" {
				fqn = qualify(f.module, className, name)
			}
			f.result.References = append(f.result.References, parser.Reference{
				Name:      name,
				Qualifier: qualifier,
				FQN:       fqn,
				Kind:      parser.RefCall,
				Arity:     countNamed(n.ChildByFieldName("arguments")),
				Line:      startLine(n),
				Column:    column(n),
			})
		}
		return true
	})
}

func (p *PythonExtractor) extractImports(root *sitter.Node, f *pyFile) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "import_statement":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				child := node.NamedChild(j)
				switch child.Type() {
				case "dotted_name":
					// "import a.b" binds a
					module := strings.TrimSpace(child.Content(f.content))
					head, _, _ := strings.Cut(module, ".")
					f.addImport(node, module, head, head)
				case "aliased_import":
					module, alias := splitAliasByAs(child.Content(f.content))
					f.addImport(node, module, alias, module)
				}
			}

		case "import_from_statement":
			moduleNode := node.ChildByFieldName("module_name")
			if moduleNode == nil {
				continue
			}
			module := strings.TrimSpace(moduleNode.Content(f.content))
			for j := 0; j < int(node.ChildCount()); j++ {
				if node.FieldNameForChild(j) != "name" {
					continue
				}
				child := node.Child(j)
				switch child.Type() {
				case "aliased_import":
					imported, alias := "", ""
					if nameNode := child.ChildByFieldName("name"); nameNode != nil {
						imported = strings.TrimSpace(nameNode.Content(f.content))
					}
					if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
						alias = strings.TrimSpace(aliasNode.Content(f.content))
					}
					f.addImport(node, module, alias, module+"#"+imported)
				case "dotted_name", "identifier":
					imported := strings.TrimSpace(child.Content(f.content))
					f.addImport(node, module, imported, module+"#"+imported)
				}
			}
		}
	}
}

func (f *pyFile) addImport(node *sitter.Node, module, alias, target string) {
	if module == "" {
		return
	}
	f.result.Imports = append(f.result.Imports, module)
	if alias != "" {
		f.result.ImportAliases[alias] = target
	}
	if f.mode == parser.ModeFull {
		f.result.References = append(f.result.References, parser.Reference{
			Name:   defaultImportAlias(strings.ReplaceAll(module, ".", "/")),
			FQN:    module,
			Kind:   parser.RefImport,
			Line:   startLine(node),
			Column: column(node),
		})
	}
}

func (f *pyFile) qualifyRef(qualifier, name string) string {
	return qualifyThroughImports(f.result.ImportAliases, f.module, qualifier, name)
}

func pythonCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "attribute":
		object := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if attr != nil {
			qualifierValue := ""
			if object != nil {
				qualifierValue = strings.TrimSpace(object.Content(content))
			}
			return attr.Content(content), qualifierValue
		}
	case "parenthesized_expression":
		if inner := node.NamedChild(0); inner != nil {
			return pythonCallName(inner, content)
		}
	case "subscript":
		return pythonCallName(node.ChildByFieldName("value"), content)
	}
	return "", ""
}

// pythonModuleName derives the dotted module path from a relative file path.
func pythonModuleName(filename string) string {
	p := strings.TrimSuffix(path.Clean(strings.ReplaceAll(filename, "\\", "/")), path.Ext(filename))
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" || p == "." {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

func leadingDocstring(body *sitter.Node, content []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	return extractDocstring(expr.Content(content))
}

func extractDocstring(s string) string {
	s = strings.TrimSpace(s)
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(quote) && strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) {
			s = s[len(quote) : len(s)-len(quote)]
			break
		}
	}
	// first line only
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
