// Package resolve matches primary-project references that have no local
// definition against the auxiliary registry and classifies same-named
// primary/auxiliary symbol pairs. It is the only producer of
// CrossProjectEdge values.
package resolve

import "fmt"

// Relationship classifies how a primary symbol relates to an auxiliary one.
type Relationship int

const (
	RelUnrelated Relationship = iota
	RelUsage
	RelWrapper
	RelInheritance
	RelImplementation
)

func (r Relationship) String() string {
	switch r {
	case RelWrapper:
		return "wrapper"
	case RelImplementation:
		return "implementation"
	case RelInheritance:
		return "inheritance"
	case RelUsage:
		return "usage"
	case RelUnrelated:
		return "unrelated"
	default:
		return fmt.Sprintf("relationship(%d)", int(r))
	}
}

func (r Relationship) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Method records how a cross-project edge was detected.
type Method int

const (
	MethodExactFQN Method = iota
	MethodNameHeuristic
	MethodStructural
)

func (m Method) String() string {
	switch m {
	case MethodExactFQN:
		return "exact-fqn"
	case MethodNameHeuristic:
		return "name-heuristic"
	case MethodStructural:
		return "structural-pattern"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// CrossProjectEdge links a primary symbol (or, for file-level references,
// a primary file) to an auxiliary symbol.
type CrossProjectEdge struct {
	From          string       `json:"from,omitempty"` // primary symbol ID
	FromFile      string       `json:"from_file"`
	Line          int          `json:"line,omitempty"`
	Reference     string       `json:"reference"` // name as written at the use site
	To            string       `json:"to"`        // auxiliary symbol ID
	TargetName    string       `json:"target_name"`
	TargetFQN     string       `json:"target_fqn"`
	TargetFile    string       `json:"target_file"`
	TargetProject string       `json:"target_project"`
	Relationship  Relationship `json:"relationship"`
	Confidence    float64      `json:"confidence"`
	Method        Method       `json:"method"`
	Patterns      []string     `json:"patterns,omitempty"` // structural patterns that fired
}

// Unresolved is a reference no auxiliary symbol could be matched to.
type Unresolved struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Name       string `json:"name"`
	FQN        string `json:"fqn,omitempty"`
	From       string `json:"from,omitempty"`
	Reason     string `json:"reason"` // no-match | ambiguous
	Candidates int    `json:"candidates,omitempty"`
}

const (
	ReasonNoMatch   = "no-match"
	ReasonAmbiguous = "ambiguous"
)
