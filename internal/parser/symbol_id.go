package parser

import "fmt"

// StableSymbolID returns a deterministic ID for a symbol.
// Format: [project::]file|line|kind|name.
func StableSymbolID(project, file string, symbol Symbol) string {
	base := fmt.Sprintf("%s|%d|%s|%s", file, symbol.Line, symbol.Kind.String(), symbol.Name)
	if project == "" {
		return base
	}
	return project + "::" + base
}

// AssignIDs fills symbol IDs, file paths, project tags, parent IDs and
// reference owners for an extracted file.
func AssignIDs(project string, fs *FileSymbols) {
	for i := range fs.Symbols {
		fs.Symbols[i].File = fs.Path
		fs.Symbols[i].Project = project
		fs.Symbols[i].ID = StableSymbolID(project, fs.Path, fs.Symbols[i])
	}
	for i := range fs.Symbols {
		fs.Symbols[i].ParentID = ""
		if fs.Symbols[i].Parent == "" {
			continue
		}
		if parent := enclosingType(fs.Symbols, i); parent != nil {
			fs.Symbols[i].ParentID = parent.ID
		}
	}
	for i := range fs.References {
		fs.References[i].File = fs.Path
		if owner := innermost(fs.Symbols, fs.References[i].Line); owner != nil {
			fs.References[i].From = owner.ID
		}
	}
}

// enclosingType finds the type named by the symbol's Parent, preferring
// the narrowest span that contains it.
func enclosingType(symbols []Symbol, idx int) *Symbol {
	child := symbols[idx]
	var best *Symbol
	for i := range symbols {
		if i == idx || symbols[i].Name != child.Parent || !symbols[i].Kind.IsType() {
			continue
		}
		candidate := &symbols[i]
		if best == nil {
			best = candidate
			continue
		}
		if candidate.Contains(child.Line) && (!best.Contains(child.Line) || span(*candidate) < span(*best)) {
			best = candidate
		}
	}
	return best
}

func innermost(symbols []Symbol, line int) *Symbol {
	var best *Symbol
	for i := range symbols {
		if !symbols[i].Contains(line) {
			continue
		}
		if best == nil || span(symbols[i]) < span(*best) {
			best = &symbols[i]
		}
	}
	return best
}

func span(s Symbol) int {
	if s.EndLine < s.Line {
		return 0
	}
	return s.EndLine - s.Line
}
