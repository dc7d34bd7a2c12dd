// Package skeleton renders condensed, token-budgeted views of source files:
// imports plus the signatures of the most important symbols.
package skeleton

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skelly-dev/codegraph/internal/parser"
)

var tracer = otel.Tracer("codegraph.skeleton")

// Importance bonuses.
const (
	bonusCrossReferenced = 3
	bonusResolvedSource  = 2
	bonusStructural      = 2
)

// Annotation carries what resolution knows about a symbol.
type Annotation struct {
	CrossReferenced bool // an auxiliary symbol some primary code resolves to
	ResolvedSource  bool // a primary symbol that is the source of a cross edge
	Structural      bool // has structural relationships to auxiliary symbols
}

// File is one input to Synthesize.
type File struct {
	Path     string
	Project  string // empty for the primary project
	Language string
	Imports  []string
	Symbols  []parser.Symbol
}

// FileSkeleton is the rendered view of one file.
type FileSkeleton struct {
	Path     string `json:"path"`
	Project  string `json:"project,omitempty"`
	Content  string `json:"content"`
	Tokens   int    `json:"tokens"`
	Budget   int    `json:"budget,omitempty"`
	Included int    `json:"included"`
	Omitted  int    `json:"omitted"`
}

// Options tunes synthesis.
type Options struct {
	// Redistribute hands budget that short files leave unused to longer ones.
	Redistribute bool
	Annotations  map[string]Annotation
}

// EstimateTokens approximates the token count of text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Weight is the base importance of a symbol kind.
func Weight(kind parser.SymbolKind) int {
	switch kind {
	case parser.SymbolInterface:
		return 10
	case parser.SymbolClass, parser.SymbolStruct, parser.SymbolEnum:
		return 9
	case parser.SymbolFunction, parser.SymbolMethod:
		return 6
	case parser.SymbolConstant, parser.SymbolVariable, parser.SymbolField:
		return 3
	}
	return 2
}

// Score is the importance of sym given its annotation.
func Score(sym parser.Symbol, ann Annotation) int {
	score := Weight(sym.Kind)
	if ann.CrossReferenced {
		score += bonusCrossReferenced
	}
	if ann.ResolvedSource {
		score += bonusResolvedSource
	}
	if ann.Structural {
		score += bonusStructural
	}
	return score
}

// Synthesize renders every file. The budget is split evenly across files;
// a budget <= 0 means unlimited. Files never fail: a file without symbols
// gets its imports and a notice.
func Synthesize(ctx context.Context, files []File, budget int, opts Options) []FileSkeleton {
	_, span := tracer.Start(ctx, "skeleton.Synthesize")
	defer span.End()

	out := make([]FileSkeleton, 0, len(files))
	if len(files) == 0 {
		return out
	}

	allowances := make([]int, len(files))
	if budget > 0 {
		share := budget / len(files)
		if share < 1 {
			share = 1
		}
		for i := range allowances {
			allowances[i] = share
		}
		if opts.Redistribute {
			allowances = redistribute(files, share, opts.Annotations)
		}
	}

	for i, file := range files {
		out = append(out, render(file, allowances[i], opts.Annotations))
	}

	total := 0
	for _, sk := range out {
		total += sk.Tokens
	}
	span.SetAttributes(
		attribute.Int("skeleton.files", len(files)),
		attribute.Int("skeleton.budget", budget),
		attribute.Int("skeleton.tokens", total),
	)
	return out
}

// redistribute gives the budget short files cannot use to the files that
// would overflow their even share.
func redistribute(files []File, share int, annotations map[string]Annotation) []int {
	allowances := make([]int, len(files))
	surplus := 0
	hungry := make([]int, 0)
	for i, file := range files {
		need := fullCost(file, annotations)
		if need <= share {
			allowances[i] = need
			surplus += share - need
			continue
		}
		allowances[i] = share
		hungry = append(hungry, i)
	}
	if len(hungry) == 0 || surplus == 0 {
		return allowances
	}
	extra := surplus / len(hungry)
	for _, i := range hungry {
		allowances[i] += extra
	}
	return allowances
}

type candidate struct {
	sym   parser.Symbol
	score int
	line  string
}

// fullCost is what render charges against the budget to include every symbol.
func fullCost(file File, annotations map[string]Annotation) int {
	cost := EstimateTokens(header(file))
	for _, c := range candidatesOf(file, annotations) {
		cost += EstimateTokens(c.line)
	}
	return cost
}

func render(file File, budget int, annotations map[string]Annotation) FileSkeleton {
	head := header(file)
	used := EstimateTokens(head)
	candidates := candidatesOf(file, annotations)

	// importance order; the first symbol that does not fit ends the file
	selected := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		cost := EstimateTokens(c.line)
		if budget > 0 && used+cost > budget {
			break
		}
		used += cost
		selected = append(selected, c)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].sym.Line != selected[j].sym.Line {
			return selected[i].sym.Line < selected[j].sym.Line
		}
		return selected[i].sym.ID < selected[j].sym.ID
	})

	var b strings.Builder
	b.WriteString(head)
	for _, c := range selected {
		b.WriteString(c.line)
	}
	omitted := len(candidates) - len(selected)
	switch {
	case len(candidates) == 0:
		b.WriteString("// no symbols found\n")
	case omitted > 0:
		fmt.Fprintf(&b, "// ... %d more symbols omitted\n", omitted)
	}

	content := b.String()
	return FileSkeleton{
		Path:     file.Path,
		Project:  file.Project,
		Content:  content,
		Tokens:   EstimateTokens(content),
		Budget:   budget,
		Included: len(selected),
		Omitted:  omitted,
	}
}

// candidatesOf renders each symbol's line and orders them by importance.
func candidatesOf(file File, annotations map[string]Annotation) []candidate {
	depth := nesting(file.Symbols)
	candidates := make([]candidate, 0, len(file.Symbols))
	for _, sym := range file.Symbols {
		candidates = append(candidates, candidate{
			sym:   sym,
			score: Score(sym, annotations[sym.ID]),
			line:  strings.Repeat("  ", depth[sym.ID]) + signatureLine(sym) + "\n",
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.sym.Line != b.sym.Line {
			return a.sym.Line < b.sym.Line
		}
		return a.sym.ID < b.sym.ID
	})
	return candidates
}

func header(file File) string {
	var b strings.Builder
	b.WriteString("// file: " + file.Path)
	if file.Project != "" {
		b.WriteString(" [" + file.Project + "]")
	}
	b.WriteString("\n")
	for _, imp := range file.Imports {
		b.WriteString(importLine(file.Language, imp) + "\n")
	}
	if len(file.Imports) > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func importLine(language, imp string) string {
	switch language {
	case "go":
		return fmt.Sprintf("import %q", imp)
	case "csharp":
		return "using " + imp + ";"
	}
	return "import " + imp
}

func signatureLine(sym parser.Symbol) string {
	sig := strings.TrimSpace(sym.Signature)
	if sig == "" {
		sig = sym.Kind.String() + " " + sym.Name
	}
	if idx := strings.IndexByte(sig, '\n'); idx != -1 {
		sig = strings.TrimSpace(sig[:idx])
	}
	if sym.EndLine > sym.Line {
		sig += " ..."
	}
	end := sym.EndLine
	if end < sym.Line {
		end = sym.Line
	}
	return fmt.Sprintf("%s  // L%d-%d", sig, sym.Line, end)
}

// nesting returns how many enclosing symbols of the same file each
// symbol has, following ParentID.
func nesting(symbols []parser.Symbol) map[string]int {
	parents := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		parents[sym.ID] = sym.ParentID
	}
	out := make(map[string]int, len(symbols))
	for _, sym := range symbols {
		depth := 0
		for parent := sym.ParentID; parent != "" && depth < len(symbols); parent = parents[parent] {
			if _, ok := parents[parent]; !ok {
				break
			}
			depth++
		}
		out[sym.ID] = depth
	}
	return out
}
