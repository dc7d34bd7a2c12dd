package languages

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// treeParser hands out one tree-sitter parser per concurrent Extract call;
// a sitter.Parser is not safe for concurrent use.
type treeParser struct {
	pool sync.Pool
}

func newTreeParser(lang *sitter.Language) *treeParser {
	return &treeParser{pool: sync.Pool{New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		return p
	}}}
}

func (t *treeParser) parse(content []byte) (*sitter.Tree, error) {
	p := t.pool.Get().(*sitter.Parser)
	defer t.pool.Put(p)
	return p.ParseCtx(context.Background(), nil, content)
}

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

func column(n *sitter.Node) int {
	return int(n.StartPoint().Column) + 1
}

// headerText returns the declaration text up to its body, whitespace collapsed.
func headerText(node, body *sitter.Node, content []byte) string {
	if body == nil {
		return collapse(node.Content(content))
	}
	start, end := node.StartByte(), body.StartByte()
	if end <= start || int(end) > len(content) {
		return collapse(node.Content(content))
	}
	return collapse(string(content[start:end]))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func qualify(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ".")
}

func countNamed(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil && child.Type() != "comment" {
			count++
		}
	}
	return count
}

// walk visits n and its descendants depth-first; visit returning false
// skips the node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func splitQualifiedName(raw string) (qualifier, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if idx := strings.LastIndex(raw, "."); idx != -1 {
		qualifier = strings.TrimSpace(raw[:idx])
		name = strings.TrimSpace(raw[idx+1:])
		return qualifier, name
	}
	return "", raw
}

func defaultImportAlias(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(base)
}

func splitAliasByAs(raw string) (base string, alias string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	parts := strings.Split(raw, " as ")
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	base = strings.TrimSpace(strings.Join(parts[:len(parts)-1], " as "))
	alias = strings.TrimSpace(parts[len(parts)-1])
	return base, alias
}

// qualifyThroughImports resolves a reference through the file's import
// aliases, whose targets are "module" or "module#name". Unqualified,
// unimported names belong to the current module; a qualifier that is not
// an import yields no FQN.
func qualifyThroughImports(aliases map[string]string, module, qualifier, name string) string {
	if qualifier == "" {
		if target, ok := aliases[name]; ok {
			return strings.Replace(target, "#", ".", 1)
		}
		return qualify(module, name)
	}
	head, rest, _ := strings.Cut(qualifier, ".")
	if target, ok := aliases[head]; ok {
		return qualify(strings.Replace(target, "#", ".", 1), rest, name)
	}
	return ""
}
