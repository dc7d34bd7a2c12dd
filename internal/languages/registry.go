package languages

import "github.com/skelly-dev/codegraph/internal/parser"

// NewDefaultRegistry creates a registry with all supported language extractors
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(NewGoExtractor())
	r.Register(NewPythonExtractor())
	r.Register(NewCSharpExtractor())
	r.Register(NewTypeScriptExtractor())
	r.Register(NewRubyExtractor())

	return r
}
