package supplementary

import (
	"path/filepath"
	"sort"
	"strings"
)

// Registry merges the catalogs of every enabled auxiliary project. FQN
// lookups honor project priority; name lookups return every project's
// matches with their project tag. A Registry is not safe for concurrent
// mutation; callers serialize Put and Remove.
type Registry struct {
	catalogs map[string]*Catalog
	order    []string // project names, priority descending then name

	fqn   map[string]SymbolInfo
	names map[string][]SymbolInfo

	generation uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		catalogs: make(map[string]*Catalog),
		fqn:      make(map[string]SymbolInfo),
		names:    make(map[string][]SymbolInfo),
	}
}

// Put adds or replaces a project's catalog.
func (r *Registry) Put(c *Catalog) {
	r.catalogs[c.Config.Name] = c
	r.reindex()
}

// Remove drops a project. It reports whether the project was present.
func (r *Registry) Remove(project string) bool {
	if _, ok := r.catalogs[project]; !ok {
		return false
	}
	delete(r.catalogs, project)
	r.reindex()
	return true
}

// Generation changes whenever the set of catalogs changes.
func (r *Registry) Generation() uint64 {
	return r.generation
}

func (r *Registry) reindex() {
	r.order = r.order[:0]
	for name := range r.catalogs {
		r.order = append(r.order, name)
	}
	sort.Slice(r.order, func(i, j int) bool {
		pi, pj := r.catalogs[r.order[i]].Config.Priority, r.catalogs[r.order[j]].Config.Priority
		if pi != pj {
			return pi > pj
		}
		return r.order[i] < r.order[j]
	})

	r.fqn = make(map[string]SymbolInfo)
	r.names = make(map[string][]SymbolInfo)
	for _, project := range r.order {
		c := r.catalogs[project]
		for fqn, info := range c.byFQN {
			if _, taken := r.fqn[fqn]; !taken {
				r.fqn[fqn] = info
			}
		}
		for name, infos := range c.byName {
			r.names[name] = append(r.names[name], infos...)
		}
	}
	r.generation++
}

// LookupFQN returns the highest-priority symbol declared under fqn.
func (r *Registry) LookupFQN(fqn string) (SymbolInfo, bool) {
	info, ok := r.fqn[fqn]
	return info, ok
}

// LookupName returns every auxiliary symbol named name, ordered by project
// priority, file and line.
func (r *Registry) LookupName(name string) []SymbolInfo {
	return append([]SymbolInfo(nil), r.names[name]...)
}

// Members returns the symbols declared inside typeName in project.
func (r *Registry) Members(project, typeName string) []SymbolInfo {
	c, ok := r.catalogs[project]
	if !ok {
		return nil
	}
	return append([]SymbolInfo(nil), c.byParent[typeName]...)
}

// SymbolsInFile returns a project file's symbols in line order.
func (r *Registry) SymbolsInFile(project, file string) []SymbolInfo {
	c, ok := r.catalogs[project]
	if !ok {
		return nil
	}
	return append([]SymbolInfo(nil), c.byFile[filepath.ToSlash(file)]...)
}

// SymbolsInProject returns all of a project's symbols ordered by file and line.
func (r *Registry) SymbolsInProject(project string) []SymbolInfo {
	c, ok := r.catalogs[project]
	if !ok {
		return nil
	}
	out := make([]SymbolInfo, 0, c.symbols)
	for _, file := range sortedFiles(c) {
		out = append(out, c.byFile[file]...)
	}
	return out
}

// File returns what the project's catalog recorded for a file.
func (r *Registry) File(project, file string) (FileInfo, bool) {
	c, ok := r.catalogs[project]
	if !ok {
		return FileInfo{}, false
	}
	info, ok := c.files[filepath.ToSlash(file)]
	return info, ok
}

// ContainsFile reports whether project cataloged file.
func (r *Registry) ContainsFile(project, file string) bool {
	_, ok := r.File(project, file)
	return ok
}

// ProjectForFile maps an absolute path to the project whose root holds it,
// preferring the deepest root. It returns the project and the path
// relative to that root.
func (r *Registry) ProjectForFile(absPath string) (string, string, bool) {
	absPath = filepath.Clean(absPath)
	bestProject, bestRel, bestLen := "", "", -1
	for _, project := range r.order {
		root := r.catalogs[project].Config.AbsRoot()
		rel, err := filepath.Rel(root, absPath)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(root) > bestLen {
			bestProject, bestRel, bestLen = project, filepath.ToSlash(rel), len(root)
		}
	}
	return bestProject, bestRel, bestLen >= 0
}

// Projects returns the configs of registered projects, highest priority first.
func (r *Registry) Projects() []ProjectConfig {
	out := make([]ProjectConfig, 0, len(r.order))
	for _, project := range r.order {
		out = append(out, r.catalogs[project].Config)
	}
	return out
}

// HasProject reports whether project is registered.
func (r *Registry) HasProject(project string) bool {
	_, ok := r.catalogs[project]
	return ok
}

// Stats summarizes the registry.
type Stats struct {
	Projects int            `json:"projects"`
	Files    int            `json:"files"`
	Symbols  int            `json:"symbols"`
	ByKind   map[string]int `json:"by_kind"`
}

func (r *Registry) Stats() Stats {
	stats := Stats{Projects: len(r.catalogs), ByKind: make(map[string]int)}
	for _, c := range r.catalogs {
		stats.Files += len(c.files)
		stats.Symbols += c.symbols
		for _, infos := range c.byFile {
			for _, info := range infos {
				stats.ByKind[info.Kind.String()]++
			}
		}
	}
	return stats
}

func sortedFiles(c *Catalog) []string {
	files := make([]string, 0, len(c.byFile))
	for file := range c.byFile {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}
