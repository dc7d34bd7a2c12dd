// Package graph is the symbol store for the primary project: symbols,
// references and the internal edges resolved between them.
package graph

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// ErrSymbolNotFound is returned when a symbol ID is not in the store.
var ErrSymbolNotFound = errors.New("symbol not found")

const (
	ConfidenceResolved  = "resolved"
	ConfidenceHeuristic = "heuristic"
)

// Edge is a directed internal edge between two primary symbols.
type Edge struct {
	From       string               `json:"from"`
	To         string               `json:"to"`
	Kind       parser.ReferenceKind `json:"kind"`
	Confidence string               `json:"confidence"` // resolved|heuristic
}

// Node represents a symbol in the dependency graph
type Node struct {
	ID       string
	Symbol   parser.Symbol
	OutEdges []Edge // sorted by target ID then kind
	InEdges  []Edge // sorted by source ID then kind
}

// Store holds the primary project's symbols and internal edges. It is not
// safe for concurrent mutation; callers serialize writers.
type Store struct {
	Nodes     map[string]*Node    // ID -> Node
	FileNodes map[string][]string // file -> node IDs, sorted by line

	files  map[string]*parser.FileSymbols
	byName map[string][]string // name -> node IDs
	byFQN  map[string][]string // FQN -> node IDs
	// name or FQN -> files holding a reference to it, for selective relinking
	refFiles map[string]map[string]bool

	generation uint64
}

// NewStore creates a new empty store
func NewStore() *Store {
	return &Store{
		Nodes:     make(map[string]*Node),
		FileNodes: make(map[string][]string),
		files:     make(map[string]*parser.FileSymbols),
		byName:    make(map[string][]string),
		byFQN:     make(map[string][]string),
		refFiles:  make(map[string]map[string]bool),
	}
}

// Generation changes on every mutation.
func (s *Store) Generation() uint64 {
	return s.generation
}

// Delta lists symbol IDs affected by a replace or remove.
type Delta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ReplaceFile drops everything previously attributed to fs.Path and
// inserts the fresh symbols and references. Symbol IDs must already be
// assigned. Replacing a file with identical content yields an empty delta.
func (s *Store) ReplaceFile(fs *parser.FileSymbols) Delta {
	return s.Apply([]*parser.FileSymbols{fs}, nil)
}

// RemoveFile drops a deleted file's symbols, references and edges.
func (s *Store) RemoveFile(file string) Delta {
	return s.Apply(nil, []string{file})
}

// Apply replaces and removes a batch of files, then relinks every file
// whose references could resolve differently.
func (s *Store) Apply(replaced []*parser.FileSymbols, removed []string) Delta {
	before := make(map[string]bool)
	touched := make(map[string]bool)
	affectedNames := make(map[string]bool)

	drop := func(file string) {
		old, ok := s.files[file]
		if !ok {
			return
		}
		for _, id := range s.FileNodes[file] {
			before[id] = true
		}
		for _, sym := range old.Symbols {
			affectedNames[sym.Name] = true
			affectedNames[sym.FQN] = true
		}
		s.unindexFile(old)
		touched[file] = true
	}

	for _, file := range removed {
		drop(file)
	}
	for _, fs := range replaced {
		if fs == nil {
			continue
		}
		drop(fs.Path)
		s.indexFile(fs)
		for _, sym := range fs.Symbols {
			affectedNames[sym.Name] = true
			affectedNames[sym.FQN] = true
		}
		touched[fs.Path] = true
	}

	relink := make(map[string]bool)
	for file := range touched {
		if _, ok := s.files[file]; ok {
			relink[file] = true
		}
	}
	for name := range affectedNames {
		for file := range s.refFiles[name] {
			relink[file] = true
		}
	}
	s.relink(relink)
	s.generation++

	after := make(map[string]bool)
	for file := range touched {
		for _, id := range s.FileNodes[file] {
			after[id] = true
		}
	}

	delta := Delta{Added: make([]string, 0), Removed: make([]string, 0)}
	for id := range after {
		if !before[id] {
			delta.Added = append(delta.Added, id)
		}
	}
	for id := range before {
		if !after[id] {
			delta.Removed = append(delta.Removed, id)
		}
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	return delta
}

func (s *Store) indexFile(fs *parser.FileSymbols) {
	s.files[fs.Path] = fs
	ids := make([]string, 0, len(fs.Symbols))
	for _, sym := range fs.Symbols {
		if _, exists := s.Nodes[sym.ID]; exists {
			// duplicate declaration at the same line; keep the first
			continue
		}
		s.Nodes[sym.ID] = &Node{ID: sym.ID, Symbol: sym}
		ids = append(ids, sym.ID)
		s.byName[sym.Name] = insertSorted(s.byName[sym.Name], sym.ID)
		if sym.FQN != "" {
			s.byFQN[sym.FQN] = insertSorted(s.byFQN[sym.FQN], sym.ID)
		}
	}
	s.FileNodes[fs.Path] = ids
	for _, ref := range fs.References {
		for _, key := range refKeys(ref) {
			files := s.refFiles[key]
			if files == nil {
				files = make(map[string]bool)
				s.refFiles[key] = files
			}
			files[fs.Path] = true
		}
	}
}

func (s *Store) unindexFile(fs *parser.FileSymbols) {
	for _, id := range s.FileNodes[fs.Path] {
		node := s.Nodes[id]
		if node == nil {
			continue
		}
		// incoming edges from other files point at a node that is going away
		for _, in := range node.InEdges {
			if src := s.Nodes[in.From]; src != nil {
				src.OutEdges = removeEdgesTo(src.OutEdges, id)
			}
		}
		for _, out := range node.OutEdges {
			if dst := s.Nodes[out.To]; dst != nil {
				dst.InEdges = removeEdgesFrom(dst.InEdges, id)
			}
		}
		s.byName[node.Symbol.Name] = removeID(s.byName[node.Symbol.Name], id)
		if len(s.byName[node.Symbol.Name]) == 0 {
			delete(s.byName, node.Symbol.Name)
		}
		if fqn := node.Symbol.FQN; fqn != "" {
			s.byFQN[fqn] = removeID(s.byFQN[fqn], id)
			if len(s.byFQN[fqn]) == 0 {
				delete(s.byFQN, fqn)
			}
		}
		delete(s.Nodes, id)
	}
	for _, ref := range fs.References {
		for _, key := range refKeys(ref) {
			if files := s.refFiles[key]; files != nil {
				delete(files, fs.Path)
				if len(files) == 0 {
					delete(s.refFiles, key)
				}
			}
		}
	}
	delete(s.FileNodes, fs.Path)
	delete(s.files, fs.Path)
}

// relink recomputes outgoing edges for every symbol in files.
func (s *Store) relink(files map[string]bool) {
	paths := make([]string, 0, len(files))
	for file := range files {
		paths = append(paths, file)
	}
	sort.Strings(paths)

	for _, file := range paths {
		for _, id := range s.FileNodes[file] {
			node := s.Nodes[id]
			for _, out := range node.OutEdges {
				if dst := s.Nodes[out.To]; dst != nil {
					dst.InEdges = removeEdgesFrom(dst.InEdges, id)
				}
			}
			node.OutEdges = nil
		}
	}

	for _, file := range paths {
		fs := s.files[file]
		for _, ref := range fs.References {
			if ref.From == "" || ref.Kind == parser.RefImport {
				continue
			}
			src := s.Nodes[ref.From]
			if src == nil {
				continue
			}
			targetID, confidence, ok := s.resolve(fs, src.Symbol, ref)
			if !ok || targetID == src.ID {
				continue
			}
			edge := Edge{From: src.ID, To: targetID, Kind: ref.Kind, Confidence: confidence}
			src.OutEdges = addEdge(src.OutEdges, edge, func(e Edge) string { return e.To })
			if dst := s.Nodes[targetID]; dst != nil {
				dst.InEdges = addEdge(dst.InEdges, edge, func(e Edge) string { return e.From })
			}
		}
	}
}

// resolve picks the unique primary symbol a reference names. Scopes are
// tried narrowest first; more than one candidate in a scope leaves the
// reference without an internal edge.
func (s *Store) resolve(fs *parser.FileSymbols, from parser.Symbol, ref parser.Reference) (string, string, bool) {
	if ref.FQN != "" {
		if ids := s.byFQN[ref.FQN]; len(ids) > 0 {
			return chooseUnique(ids, ConfidenceResolved)
		}
	}

	ids := s.byName[ref.Name]
	if len(ids) == 0 {
		return "", "", false
	}

	if receiverScoped(ref.Qualifier) {
		owner := from.Parent
		if owner == "" {
			owner = from.Name
		}
		if scoped := s.filter(ids, func(sym parser.Symbol) bool { return sym.Parent == owner }); len(scoped) > 0 {
			return chooseUnique(scoped, ConfidenceResolved)
		}
	}

	if local := s.filter(ids, func(sym parser.Symbol) bool { return sym.File == fs.Path }); len(local) > 0 {
		return chooseUnique(local, ConfidenceResolved)
	}

	if ref.Qualifier != "" && !receiverScoped(ref.Qualifier) {
		qualifier := primaryQualifier(ref.Qualifier)
		if byParent := s.filter(ids, func(sym parser.Symbol) bool { return sym.Parent == qualifier }); len(byParent) > 0 {
			return chooseUnique(byParent, ConfidenceHeuristic)
		}
		target, imported := importTarget(fs, qualifier)
		if !imported {
			// the qualifier is a variable whose type is unknown
			return s.uniqueGlobal(ids)
		}
		if byImport := s.filter(ids, func(sym parser.Symbol) bool { return s.inModule(sym, target) }); len(byImport) > 0 {
			return chooseUnique(byImport, ConfidenceHeuristic)
		}
		return "", "", false
	}

	if fs.Namespace != "" {
		if sameNS := s.filter(ids, func(sym parser.Symbol) bool {
			other := s.files[sym.File]
			return other != nil && other.Namespace == fs.Namespace
		}); len(sameNS) > 0 {
			return chooseUnique(sameNS, ConfidenceHeuristic)
		}
	}

	dir := path.Dir(fs.Path)
	if sameDir := s.filter(ids, func(sym parser.Symbol) bool { return path.Dir(sym.File) == dir }); len(sameDir) > 0 {
		return chooseUnique(sameDir, ConfidenceHeuristic)
	}

	return s.uniqueGlobal(ids)
}

// refKeys are the names under which a reference can be affected by a
// symbol being added or removed.
func refKeys(ref parser.Reference) []string {
	if ref.FQN == "" || ref.FQN == ref.Name {
		return []string{ref.Name}
	}
	return []string{ref.Name, ref.FQN}
}

func (s *Store) uniqueGlobal(ids []string) (string, string, bool) {
	return chooseUnique(ids, ConfidenceHeuristic)
}

func (s *Store) filter(ids []string, keep func(parser.Symbol) bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if node := s.Nodes[id]; node != nil && keep(node.Symbol) {
			out = append(out, id)
		}
	}
	return out
}

// inModule reports whether sym lives in the file or package an import names.
func (s *Store) inModule(sym parser.Symbol, target string) bool {
	target = strings.Trim(target, `"'`)
	if i := strings.Index(target, "#"); i != -1 {
		target = target[:i]
	}
	if other := s.files[sym.File]; other != nil && other.Namespace != "" {
		if other.Namespace == target || strings.HasSuffix(target, "/"+other.Namespace) {
			return true
		}
	}
	noExt := strings.TrimSuffix(sym.File, path.Ext(sym.File))
	dir := path.Dir(sym.File)
	slashed := strings.ReplaceAll(target, ".", "/")
	return target == dir || strings.HasSuffix(target, "/"+dir) ||
		slashed == noExt || strings.HasSuffix(slashed, "/"+noExt) || slashed == dir
}

func importTarget(fs *parser.FileSymbols, qualifier string) (string, bool) {
	if target, ok := fs.ImportAliases[qualifier]; ok {
		return target, true
	}
	for _, imp := range fs.Imports {
		if defaultAlias(imp) == qualifier {
			return imp, true
		}
	}
	return "", false
}

func defaultAlias(importPath string) string {
	importPath = strings.Trim(strings.TrimSpace(importPath), `"'`)
	if idx := strings.LastIndexAny(importPath, "/."); idx != -1 {
		return importPath[idx+1:]
	}
	return importPath
}

func receiverScoped(qualifier string) bool {
	switch strings.TrimSpace(qualifier) {
	case "self", "this", "cls", "base", "super()":
		return true
	}
	return false
}

func primaryQualifier(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "self.")
	value = strings.TrimPrefix(value, "this.")
	if idx := strings.LastIndex(value, "."); idx != -1 {
		value = value[idx+1:]
	}
	return strings.TrimSpace(value)
}

func chooseUnique(ids []string, confidence string) (string, string, bool) {
	if len(ids) == 1 {
		return ids[0], confidence, true
	}
	return "", "", false
}

func addEdge(edges []Edge, edge Edge, key func(Edge) string) []Edge {
	for _, existing := range edges {
		if key(existing) == key(edge) && existing.Kind == edge.Kind {
			return edges
		}
	}
	edges = append(edges, edge)
	sort.Slice(edges, func(i, j int) bool {
		if key(edges[i]) != key(edges[j]) {
			return key(edges[i]) < key(edges[j])
		}
		return edges[i].Kind < edges[j].Kind
	})
	return edges
}

func removeEdgesTo(edges []Edge, id string) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.To != id {
			out = append(out, e)
		}
	}
	return out
}

func removeEdgesFrom(edges []Edge, id string) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.From != id {
			out = append(out, e)
		}
	}
	return out
}

func insertSorted(ids []string, id string) []string {
	idx := sort.SearchStrings(ids, id)
	if idx < len(ids) && ids[idx] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[idx+1:], ids[idx:])
	ids[idx] = id
	return ids
}

func removeID(ids []string, id string) []string {
	idx := sort.SearchStrings(ids, id)
	if idx < len(ids) && ids[idx] == id {
		return append(ids[:idx], ids[idx+1:]...)
	}
	return ids
}
