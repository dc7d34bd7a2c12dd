package languages

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// CSharpExtractor extracts C# declarations and references
type CSharpExtractor struct {
	trees *treeParser
}

// NewCSharpExtractor creates a new C# extractor
func NewCSharpExtractor() *CSharpExtractor {
	return &CSharpExtractor{trees: newTreeParser(csharp.GetLanguage())}
}

func (c *CSharpExtractor) Language() string {
	return "csharp"
}

func (c *CSharpExtractor) Extensions() []string {
	return []string{".cs"}
}

var csharpTypeKinds = map[string]parser.SymbolKind{
	"class_declaration":     parser.SymbolClass,
	"record_declaration":    parser.SymbolClass,
	"struct_declaration":    parser.SymbolStruct,
	"interface_declaration": parser.SymbolInterface,
	"enum_declaration":      parser.SymbolEnum,
}

type csFile struct {
	content []byte
	mode    parser.ExtractMode
	result  *parser.FileSymbols
}

func (c *CSharpExtractor) Extract(filename string, content []byte, mode parser.ExtractMode) (*parser.FileSymbols, error) {
	tree, err := c.trees.parse(content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	f := &csFile{
		content: content,
		mode:    mode,
		result: &parser.FileSymbols{
			Path:          filename,
			Language:      "csharp",
			Symbols:       make([]parser.Symbol, 0),
			Imports:       make([]string, 0),
			ImportAliases: make(map[string]string),
		},
	}

	root := tree.RootNode()
	namespace := ""
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "file_scoped_namespace_declaration" {
			// members may be children or following siblings depending on grammar version
			namespace = fieldText(child, "name", content)
			f.result.Namespace = namespace
		}
		c.extract(child, f, namespace, "")
	}
	return f.result, nil
}

func (c *CSharpExtractor) extract(node *sitter.Node, f *csFile, namespace, typeName string) {
	switch node.Type() {
	case "using_directive":
		c.extractUsing(node, f)
		return

	case "namespace_declaration", "file_scoped_namespace_declaration":
		inner := fieldText(node, "name", f.content)
		if node.Type() == "namespace_declaration" {
			inner = qualify(namespace, inner)
		}
		if f.result.Namespace == "" {
			f.result.Namespace = inner
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c.extract(node.NamedChild(i), f, inner, "")
		}
		return

	case "declaration_list":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c.extract(node.NamedChild(i), f, namespace, typeName)
		}
		return

	case "method_declaration", "constructor_declaration":
		c.extractMethod(node, f, namespace, typeName)
		return

	case "property_declaration":
		name := fieldText(node, "name", f.content)
		if name == "" {
			return
		}
		f.result.Symbols = append(f.result.Symbols, parser.Symbol{
			Name:      name,
			Kind:      parser.SymbolField,
			FQN:       qualify(namespace, typeName, name),
			Signature: headerText(node, childOfType(node, "accessor_list"), f.content),
			Line:      startLine(node),
			EndLine:   endLine(node),
			Parent:    lastSegment(typeName),
		})
		return

	case "field_declaration":
		walk(node, func(n *sitter.Node) bool {
			if n.Type() != "variable_declarator" {
				return true
			}
			name := fieldText(n, "name", f.content)
			if name == "" {
				if id := childOfType(n, "identifier"); id != nil {
					name = id.Content(f.content)
				}
			}
			if name != "" {
				f.result.Symbols = append(f.result.Symbols, parser.Symbol{
					Name:      name,
					Kind:      parser.SymbolField,
					FQN:       qualify(namespace, typeName, name),
					Signature: strings.TrimSuffix(collapse(node.Content(f.content)), ";"),
					Line:      startLine(node),
					EndLine:   endLine(node),
					Parent:    lastSegment(typeName),
				})
			}
			return false
		})
		if f.mode == parser.ModeFull {
			c.collectReferences(node, f)
		}
		return
	}

	if kind, ok := csharpTypeKinds[node.Type()]; ok {
		c.extractType(node, kind, f, namespace, typeName)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		c.extract(node.NamedChild(i), f, namespace, typeName)
	}
}

func (c *CSharpExtractor) extractType(node *sitter.Node, kind parser.SymbolKind, f *csFile, namespace, outer string) {
	name := fieldText(node, "name", f.content)
	if name == "" {
		return
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		body = childOfType(node, "declaration_list")
	}
	if body == nil {
		body = childOfType(node, "enum_member_declaration_list")
	}

	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(namespace, outer, name),
		Signature: headerText(node, body, f.content),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    lastSegment(outer),
	})

	if f.mode == parser.ModeFull {
		if bases := childOfType(node, "base_list"); bases != nil {
			for i := 0; i < int(bases.NamedChildCount()); i++ {
				base := bases.NamedChild(i)
				if base.Type() == "primary_constructor_base_type" {
					if typ := base.NamedChild(0); typ != nil {
						base = typ
					}
				}
				c.baseReference(base, f)
			}
		}
	}

	if body == nil {
		return
	}
	nested := qualify(outer, name)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "enum_member_declaration" {
			member := fieldText(child, "name", f.content)
			if member == "" {
				continue
			}
			f.result.Symbols = append(f.result.Symbols, parser.Symbol{
				Name:      member,
				Kind:      parser.SymbolConstant,
				FQN:       qualify(namespace, nested, member),
				Signature: collapse(child.Content(f.content)),
				Line:      startLine(child),
				EndLine:   endLine(child),
				Parent:    name,
			})
			continue
		}
		c.extract(child, f, namespace, nested)
	}
}

func (c *CSharpExtractor) extractMethod(node *sitter.Node, f *csFile, namespace, typeName string) {
	name := fieldText(node, "name", f.content)
	if name == "" {
		return
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		body = childOfType(node, "block")
	}
	if body == nil {
		body = childOfType(node, "arrow_expression_clause")
	}

	kind := parser.SymbolMethod
	if typeName == "" {
		kind = parser.SymbolFunction
	}

	f.result.Symbols = append(f.result.Symbols, parser.Symbol{
		Name:      name,
		Kind:      kind,
		FQN:       qualify(namespace, typeName, name),
		Signature: strings.TrimSuffix(headerText(node, body, f.content), ";"),
		Line:      startLine(node),
		EndLine:   endLine(node),
		Parent:    lastSegment(typeName),
		Params:    countNamed(node.ChildByFieldName("parameters")),
	})

	if f.mode == parser.ModeFull {
		c.collectReferences(node, f)
	}
}

func (c *CSharpExtractor) collectReferences(node *sitter.Node, f *csFile) {
	walk(node, func(n *sitter.Node) bool {
		switch n.Type() {
		case "invocation_expression":
			name, qualifier := csharpCallName(n.ChildByFieldName("function"), f.content)
			if name == "" {
				return true
			}
			f.result.References = append(f.result.References, parser.Reference{
				Name:      name,
				Qualifier: qualifier,
				FQN:       qualifiedFQN(qualifier, name),
				Kind:      parser.RefCall,
				Arity:     countNamed(n.ChildByFieldName("arguments")),
				Line:      startLine(n),
				Column:    column(n),
			})
		case "object_creation_expression":
			typ := n.ChildByFieldName("type")
			if typ == nil {
				return true
			}
			qualifier, name := splitQualifiedName(stripGenerics(typ.Content(f.content)))
			if name == "" {
				return true
			}
			f.result.References = append(f.result.References, parser.Reference{
				Name:      name,
				Qualifier: qualifier,
				FQN:       qualifiedFQN(qualifier, name),
				Kind:      parser.RefConstruct,
				Arity:     countNamed(n.ChildByFieldName("arguments")),
				Line:      startLine(n),
				Column:    column(n),
			})
		}
		return true
	})
}

func (c *CSharpExtractor) baseReference(base *sitter.Node, f *csFile) {
	switch base.Type() {
	case "identifier", "qualified_name", "generic_name":
	default:
		return
	}
	qualifier, name := splitQualifiedName(stripGenerics(base.Content(f.content)))
	if name == "" {
		return
	}
	f.result.References = append(f.result.References, parser.Reference{
		Name:      name,
		Qualifier: qualifier,
		FQN:       qualifiedFQN(qualifier, name),
		Kind:      parser.RefInheritance,
		Line:      startLine(base),
		Column:    column(base),
	})
}

func (c *CSharpExtractor) extractUsing(node *sitter.Node, f *csFile) {
	raw := collapse(node.Content(f.content))
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "global "), ";")
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "using"))
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "static "))
	if raw == "" {
		return
	}

	alias := ""
	if left, right, ok := strings.Cut(raw, "="); ok {
		alias = strings.TrimSpace(left)
		raw = strings.TrimSpace(right)
	}
	f.result.Imports = append(f.result.Imports, raw)
	if alias != "" {
		f.result.ImportAliases[alias] = raw
	}
	if f.mode == parser.ModeFull {
		_, name := splitQualifiedName(raw)
		f.result.References = append(f.result.References, parser.Reference{
			Name:   name,
			FQN:    raw,
			Kind:   parser.RefImport,
			Line:   startLine(node),
			Column: column(node),
		})
	}
}

func csharpCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}
	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "generic_name":
		return stripGenerics(node.Content(content)), ""
	case "member_access_expression":
		nameNode := node.ChildByFieldName("name")
		exprNode := node.ChildByFieldName("expression")
		if nameNode == nil {
			return "", ""
		}
		qualifierValue := ""
		if exprNode != nil {
			qualifierValue = collapse(exprNode.Content(content))
		}
		return stripGenerics(nameNode.Content(content)), qualifierValue
	}
	return "", ""
}

// qualifiedFQN treats a dotted, capitalized qualifier as a namespace or
// type path; receivers such as "_repo" or "this" produce no FQN.
func qualifiedFQN(qualifier, name string) string {
	if qualifier == "" {
		return ""
	}
	for _, part := range strings.Split(qualifier, ".") {
		if part == "" || part[0] < 'A' || part[0] > 'Z' {
			return ""
		}
	}
	return qualifier + "." + name
}

func stripGenerics(s string) string {
	s = collapse(s)
	if idx := strings.Index(s, "<"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSuffix(s, "?")
}

func lastSegment(chain string) string {
	if idx := strings.LastIndex(chain, "."); idx != -1 {
		return chain[idx+1:]
	}
	return chain
}

func fieldText(node *sitter.Node, field string, content []byte) string {
	if child := node.ChildByFieldName(field); child != nil {
		return strings.TrimSpace(child.Content(content))
	}
	return ""
}

func childOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
