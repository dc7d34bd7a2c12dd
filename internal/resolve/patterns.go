package resolve

import (
	"math"
	"sort"
	"strings"

	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

const (
	patternSupertype = "declares-supertype"
	patternConstruct = "constructs"
	patternReturns   = "returns-type"
	patternMemberUse = "calls-members"
	patternSignature = "signature-mentions"
)

// classifyPair looks for structural evidence, inside the primary symbol's
// own span, that it builds on the same-named auxiliary symbol.
func classifyPair(sym parser.Symbol, fs *parser.FileSymbols, cand supplementary.SymbolInfo, primary Primary, aux Auxiliary) (CrossProjectEdge, bool) {
	refs := make([]parser.Reference, 0)
	for _, ref := range fs.References {
		if sym.Contains(ref.Line) {
			refs = append(refs, ref)
		}
	}
	children := make([]parser.Symbol, 0)
	for _, child := range fs.Symbols {
		if child.ID != sym.ID && sym.Contains(child.Line) {
			children = append(children, child)
		}
	}

	targets := func(ref parser.Reference) bool {
		if ref.Name != cand.Name {
			return false
		}
		switch {
		case ref.FQN == cand.FQN:
			return true
		case ref.FQN != "":
			return !primary.HasFQN(ref.FQN)
		case ref.Qualifier != "":
			return true
		}
		// an unqualified use only reaches the auxiliary symbol through an import
		return importsNamespace(fs, cand)
	}

	fired := make(map[string]bool)
	for _, ref := range refs {
		switch {
		case ref.Kind.IsSupertype() && cand.Kind.IsType() && ref.Name == cand.Name:
			// a type cannot extend itself, so a same-named supertype is the auxiliary one
			if ref.FQN == "" || ref.FQN == cand.FQN || !primary.HasFQN(ref.FQN) {
				fired[patternSupertype] = true
			}
		case ref.Kind == parser.RefConstruct && cand.Kind.IsType() && targets(ref):
			fired[patternConstruct] = true
		case ref.Kind == parser.RefCall && callsMember(ref, cand, primary, aux):
			fired[patternMemberUse] = true
		}
	}

	mention := qualifiedMention(cand)
	if mention != "" {
		for _, child := range append([]parser.Symbol{sym}, children...) {
			if child.Kind.IsCallable() && child.Name != cand.Name {
				outside, params := splitSignature(child)
				if containsWord(outside, mention) {
					fired[patternReturns] = true
				}
				if containsWord(params, mention) {
					fired[patternSignature] = true
				}
				continue
			}
			if child.ID != sym.ID && !child.Kind.IsType() && containsWord(child.Signature, mention) {
				fired[patternSignature] = true
			}
		}
	}

	if len(fired) == 0 {
		return CrossProjectEdge{}, false
	}

	patterns := make([]string, 0, len(fired))
	for pattern := range fired {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	confidence := 0.0
	for _, pattern := range patterns {
		confidence += patternWeight(pattern)
	}

	return CrossProjectEdge{
		From:          sym.ID,
		FromFile:      sym.File,
		Line:          sym.Line,
		Reference:     sym.Name,
		To:            cand.ID,
		TargetName:    cand.Name,
		TargetFQN:     cand.FQN,
		TargetFile:    cand.File,
		TargetProject: cand.Project,
		Relationship:  structuralRelationship(fired, cand.Kind),
		Confidence:    math.Min(1.0, math.Round(confidence*100)/100),
		Method:        MethodStructural,
		Patterns:      patterns,
	}, true
}

func structuralRelationship(fired map[string]bool, target parser.SymbolKind) Relationship {
	switch {
	case fired[patternSupertype]:
		if target == parser.SymbolInterface {
			return RelImplementation
		}
		return RelInheritance
	case fired[patternConstruct]:
		return RelWrapper
	case fired[patternReturns], fired[patternMemberUse], fired[patternSignature]:
		return RelUsage
	}
	return RelUnrelated
}

func patternWeight(pattern string) float64 {
	switch pattern {
	case patternSupertype:
		return weightSupertype
	case patternConstruct:
		return weightConstruct
	case patternReturns:
		return weightReturns
	case patternMemberUse:
		return weightMemberUse
	case patternSignature:
		return weightSignature
	}
	return 0
}

// callsMember reports whether ref calls a member of the auxiliary type
// through some receiver, or delegates to the auxiliary callable itself.
func callsMember(ref parser.Reference, cand supplementary.SymbolInfo, primary Primary, aux Auxiliary) bool {
	qualifier := strings.TrimSpace(ref.Qualifier)
	switch qualifier {
	case "", "self", "this", "cls", "base":
		return false
	}
	if ref.FQN != "" && primary.HasFQN(ref.FQN) {
		return false
	}
	if cand.Kind.IsCallable() {
		return ref.Name == cand.Name
	}
	for _, member := range aux.Members(cand.Project, cand.Name) {
		if member.Kind.IsCallable() && member.Name == ref.Name {
			return true
		}
	}
	return false
}

// qualifiedMention is how source outside the auxiliary namespace spells
// the symbol: "<last namespace segment>.<name>". The bare name would
// denote the same-named primary symbol.
func qualifiedMention(cand supplementary.SymbolInfo) string {
	ns := cand.Namespace()
	if ns == "" {
		return ""
	}
	if cand.Parent != "" {
		// members are spelled through their type
		ns = strings.TrimSuffix(ns, "."+cand.Parent)
		if ns == cand.Parent {
			return ""
		}
	}
	return lastSegment(ns) + "." + cand.Name
}

// splitSignature separates a callable's signature into the part outside
// its parameter list and the parameter list. A Go receiver is dropped.
func splitSignature(sym parser.Symbol) (outside, params string) {
	sig := sym.Signature
	if strings.HasPrefix(sig, "func (") {
		if end := matchingParen(sig, len("func ")); end != -1 {
			sig = "func " + strings.TrimSpace(sig[end+1:])
		}
	}
	idx := strings.Index(sig, sym.Name+"(")
	if idx == -1 {
		return sig, ""
	}
	open := idx + len(sym.Name)
	closing := matchingParen(sig, open)
	if closing == -1 {
		return sig[:idx], sig[open:]
	}
	return sig[:idx] + " " + sig[closing+1:], sig[open+1 : closing]
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx == -1 {
			return false
		}
		idx += start
		end := idx + len(word)
		if (idx == 0 || !isIdentByte(text[idx-1])) && (end == len(text) || !isIdentByte(text[end])) {
			return true
		}
		start = idx + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
