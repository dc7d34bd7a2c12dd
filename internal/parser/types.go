package parser

import (
	"fmt"
	"strings"
)

// SymbolKind represents the type of code symbol
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolMethod
	SymbolClass
	SymbolStruct
	SymbolInterface
	SymbolModule
	SymbolConstant
	SymbolVariable
	SymbolField
	SymbolEnum
)

var symbolKindNames = map[SymbolKind]string{
	SymbolFunction:  "func",
	SymbolMethod:    "method",
	SymbolClass:     "class",
	SymbolStruct:    "struct",
	SymbolInterface: "interface",
	SymbolModule:    "module",
	SymbolConstant:  "const",
	SymbolVariable:  "var",
	SymbolField:     "field",
	SymbolEnum:      "enum",
}

func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsType reports whether the kind declares a type.
func (k SymbolKind) IsType() bool {
	switch k {
	case SymbolClass, SymbolStruct, SymbolInterface, SymbolEnum:
		return true
	}
	return false
}

// IsCallable reports whether the kind can be invoked.
func (k SymbolKind) IsCallable() bool {
	return k == SymbolFunction || k == SymbolMethod
}

func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SymbolKind) UnmarshalText(text []byte) error {
	kind, ok := ParseSymbolKind(string(text))
	if !ok {
		return fmt.Errorf("unknown symbol kind %q", string(text))
	}
	*k = kind
	return nil
}

// ParseSymbolKind maps a kind name back to its SymbolKind.
func ParseSymbolKind(raw string) (SymbolKind, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for kind, name := range symbolKindNames {
		if name == raw {
			return kind, true
		}
	}
	return 0, false
}

// ReferenceKind classifies how a reference uses its target.
type ReferenceKind int

const (
	RefCall ReferenceKind = iota
	RefInheritance
	RefImplementation
	RefUsage
	RefImport
	RefConstruct
)

func (k ReferenceKind) String() string {
	switch k {
	case RefCall:
		return "call"
	case RefInheritance:
		return "inheritance"
	case RefImplementation:
		return "implementation"
	case RefUsage:
		return "usage"
	case RefImport:
		return "import"
	case RefConstruct:
		return "construct"
	default:
		return "unknown"
	}
}

func (k ReferenceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsSupertype reports whether the reference declares its target as a base type.
func (k ReferenceKind) IsSupertype() bool {
	return k == RefInheritance || k == RefImplementation
}

// ExtractMode selects how much an extractor produces.
type ExtractMode int

const (
	// ModeFull extracts symbols, signatures and references.
	ModeFull ExtractMode = iota
	// ModeSymbolsOnly extracts declarations only.
	ModeSymbolsOnly
)

func (m ExtractMode) String() string {
	if m == ModeSymbolsOnly {
		return "symbols-only"
	}
	return "full"
}

// Symbol represents a declaration (function, class, etc.)
type Symbol struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	FQN       string     `json:"fqn,omitempty"`
	Signature string     `json:"signature,omitempty"` // e.g., "func Save(ctx context.Context, u *User) error"
	File      string     `json:"file"`                // relative to the project root
	Line      int        `json:"line"`
	EndLine   int        `json:"end_line"`
	Parent    string     `json:"parent,omitempty"`    // enclosing type name as written
	ParentID  string     `json:"parent_id,omitempty"` // enclosing symbol ID, assigned after extraction
	Project   string     `json:"project,omitempty"`   // empty for the primary project
	Params    int        `json:"params,omitempty"`
	Doc       string     `json:"doc,omitempty"`
}

// Contains reports whether line falls inside the symbol's span.
func (s Symbol) Contains(line int) bool {
	end := s.EndLine
	if end < s.Line {
		end = s.Line
	}
	return line >= s.Line && line <= end
}

// Namespace returns the FQN prefix that encloses the symbol.
func (s Symbol) Namespace() string {
	if idx := strings.LastIndex(s.FQN, "."); idx != -1 {
		return s.FQN[:idx]
	}
	return ""
}

// Reference is a use of a name inside a file.
type Reference struct {
	File      string        `json:"file"`
	Line      int           `json:"line"`
	Column    int           `json:"column,omitempty"`
	Name      string        `json:"name"`
	FQN       string        `json:"fqn,omitempty"`
	Qualifier string        `json:"qualifier,omitempty"`
	Kind      ReferenceKind `json:"kind"`
	Arity     int           `json:"arity,omitempty"`
	From      string        `json:"from,omitempty"` // innermost enclosing symbol ID
}

// FileSymbols holds everything extracted from a single file
type FileSymbols struct {
	Path          string
	Language      string
	Namespace     string // package, namespace or module the file declares
	Symbols       []Symbol
	References    []Reference
	Imports       []string          // imported modules/packages/namespaces
	ImportAliases map[string]string // alias -> import target
	Hash          string            // file content hash for incremental updates
}

// IssueKind classifies non-fatal problems reported alongside results.
type IssueKind string

const (
	IssueParseFailure        IssueKind = "parse-failure"
	IssueConfigurationError  IssueKind = "configuration-error"
	IssueAmbiguousResolution IssueKind = "ambiguous-resolution"
)

// Issue captures non-fatal warnings/errors encountered while indexing.
type Issue struct {
	File     string    `json:"file,omitempty"`
	Language string    `json:"language,omitempty"`
	Project  string    `json:"project,omitempty"`
	Kind     IssueKind `json:"kind"`
	Severity string    `json:"severity"` // warning | error
	Message  string    `json:"message"`
}

func (i Issue) String() string {
	target := i.File
	if target == "" {
		target = i.Project
	}
	if i.Language != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", i.Severity, target, i.Language, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, target, i.Message)
}
