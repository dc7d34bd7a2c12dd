package graph

import (
	"fmt"
	"sort"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// Symbol returns the symbol with the given ID.
func (s *Store) Symbol(id string) (parser.Symbol, error) {
	node, ok := s.Nodes[id]
	if !ok {
		return parser.Symbol{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, id)
	}
	return node.Symbol, nil
}

// LookupByName returns every symbol with exactly this name, sorted by ID.
func (s *Store) LookupByName(name string) []parser.Symbol {
	return s.symbols(s.byName[name])
}

// LookupByFQN returns the symbols declared under fqn.
func (s *Store) LookupByFQN(fqn string) []parser.Symbol {
	return s.symbols(s.byFQN[fqn])
}

// HasName reports whether any primary symbol carries name.
func (s *Store) HasName(name string) bool {
	return len(s.byName[name]) > 0
}

// HasFQN reports whether any primary symbol is declared under fqn.
func (s *Store) HasFQN(fqn string) bool {
	return len(s.byFQN[fqn]) > 0
}

// EdgesOf returns the outgoing then incoming edges of a symbol.
func (s *Store) EdgesOf(id string) []Edge {
	node, ok := s.Nodes[id]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(node.OutEdges)+len(node.InEdges))
	out = append(out, node.OutEdges...)
	out = append(out, node.InEdges...)
	return out
}

// EdgeCount returns the number of internal edges.
func (s *Store) EdgeCount() int {
	count := 0
	for _, node := range s.Nodes {
		count += len(node.OutEdges)
	}
	return count
}

// SymbolsInFile returns a file's symbols sorted by line.
func (s *Store) SymbolsInFile(file string) []parser.Symbol {
	out := s.symbols(s.FileNodes[file])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line == out[j].Line {
			return out[i].ID < out[j].ID
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// File returns the extraction result stored for a file.
func (s *Store) File(file string) (*parser.FileSymbols, bool) {
	fs, ok := s.files[file]
	return fs, ok
}

// HasFile reports whether file has been indexed.
func (s *Store) HasFile(file string) bool {
	_, ok := s.files[file]
	return ok
}

// Files returns all indexed files, sorted.
func (s *Store) Files() []string {
	files := make([]string, 0, len(s.files))
	for file := range s.files {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// ReferencesTo returns references whose name or FQN equals name, ordered
// by file, line and column.
func (s *Store) ReferencesTo(name string) []parser.Reference {
	files := make(map[string]bool)
	for file := range s.refFiles[name] {
		files[file] = true
	}
	out := make([]parser.Reference, 0)
	for _, file := range sortedKeys(files) {
		for _, ref := range s.files[file].References {
			if ref.Name == name || ref.FQN == name {
				out = append(out, ref)
			}
		}
	}
	return out
}

// IsUnresolved reports whether no primary symbol matches the reference:
// by FQN when it has one, otherwise by name.
func (s *Store) IsUnresolved(ref parser.Reference) bool {
	if ref.FQN != "" {
		return !s.HasFQN(ref.FQN)
	}
	return !s.HasName(ref.Name)
}

// UnresolvedReferences returns references with no primary definition.
// Imports name modules rather than symbols and are skipped.
func (s *Store) UnresolvedReferences() []parser.Reference {
	out := make([]parser.Reference, 0)
	for _, file := range s.Files() {
		for _, ref := range s.files[file].References {
			if ref.Kind == parser.RefImport {
				continue
			}
			if s.IsUnresolved(ref) {
				out = append(out, ref)
			}
		}
	}
	return out
}

// Subgraph returns the symbols reachable over outgoing edges from every
// definition of name within maxDepth hops, in breadth-first order.
func (s *Store) Subgraph(name string, maxDepth int) []parser.Symbol {
	frontier := append([]string(nil), s.byName[name]...)
	visited := make(map[string]bool, len(frontier))
	order := make([]string, 0)
	for _, id := range frontier {
		visited[id] = true
		order = append(order, id)
	}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, id := range frontier {
			for _, edge := range s.Nodes[id].OutEdges {
				if visited[edge.To] {
					continue
				}
				visited[edge.To] = true
				order = append(order, edge.To)
				next = append(next, edge.To)
			}
		}
		sort.Strings(next)
		frontier = next
	}
	return s.symbols(order)
}

// Stats summarizes the store.
type Stats struct {
	Files      int            `json:"files"`
	Symbols    int            `json:"symbols"`
	Edges      int            `json:"edges"`
	References int            `json:"references"`
	ByKind     map[string]int `json:"by_kind"`
}

func (s *Store) Stats() Stats {
	stats := Stats{
		Files:   len(s.files),
		Symbols: len(s.Nodes),
		Edges:   s.EdgeCount(),
		ByKind:  make(map[string]int),
	}
	for _, fs := range s.files {
		stats.References += len(fs.References)
	}
	for _, node := range s.Nodes {
		stats.ByKind[node.Symbol.Kind.String()]++
	}
	return stats
}

func (s *Store) symbols(ids []string) []parser.Symbol {
	out := make([]parser.Symbol, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.Nodes[id]; ok {
			out = append(out, node.Symbol)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
