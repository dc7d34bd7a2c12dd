package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skelly-dev/codegraph/internal/ignore"
)

// Extractor defines the interface each language must implement
type Extractor interface {
	// Language returns the language name (e.g., "go", "python")
	Language() string

	// Extensions returns file extensions this extractor handles
	Extensions() []string

	// Extract returns the declarations and, in full mode, the references of a file
	Extract(filename string, content []byte, mode ExtractMode) (*FileSymbols, error)
}

// Registry holds all registered language extractors
type Registry struct {
	extractors map[string]Extractor // language name -> extractor
	extToLang  map[string]string    // extension -> language name
}

// NewRegistry creates a new extractor registry
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
		extToLang:  make(map[string]string),
	}
}

// Register adds a language extractor to the registry
func (r *Registry) Register(e Extractor) {
	lang := e.Language()
	r.extractors[lang] = e
	for _, ext := range e.Extensions() {
		r.extToLang[strings.ToLower(ext)] = lang
	}
}

// ExtractorForFile returns the appropriate extractor for a file
func (r *Registry) ExtractorForFile(filename string) (Extractor, bool) {
	lang, ok := r.LanguageForFile(filename)
	if !ok {
		return nil, false
	}
	e, ok := r.extractors[lang]
	return e, ok
}

// LanguageForFile maps a file extension to a registered language.
func (r *Registry) LanguageForFile(filename string) (string, bool) {
	lang, ok := r.extToLang[strings.ToLower(filepath.Ext(filename))]
	return lang, ok
}

// SupportedExtensions returns all supported file extensions
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Languages returns the registered language names.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.extractors))
	for lang := range r.extractors {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// ExtractFile reads path and extracts it. relPath becomes the file path
// recorded on symbols and references. Unsupported files return nil, nil.
func (r *Registry) ExtractFile(path, relPath string, mode ExtractMode) (*FileSymbols, error) {
	e, ok := r.ExtractorForFile(path)
	if !ok {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	return r.ExtractContent(e, relPath, content, mode)
}

// ExtractContent runs e over content and normalizes the result.
func (r *Registry) ExtractContent(e Extractor, relPath string, content []byte, mode ExtractMode) (*FileSymbols, error) {
	fs, err := e.Extract(relPath, content, mode)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = &FileSymbols{}
	}

	fs.Path = filepath.ToSlash(relPath)
	fs.Language = e.Language()
	fs.Imports = normalizeStrings(fs.Imports)
	fs.ImportAliases = normalizeImportAliases(fs.ImportAliases)
	if mode == ModeSymbolsOnly {
		fs.References = nil
	} else {
		fs.References = normalizeReferences(fs.References)
	}
	sort.SliceStable(fs.Symbols, func(i, j int) bool {
		if fs.Symbols[i].Line != fs.Symbols[j].Line {
			return fs.Symbols[i].Line < fs.Symbols[j].Line
		}
		return fs.Symbols[i].Name < fs.Symbols[j].Name
	})

	// Compute file hash for incremental updates
	fs.Hash = HashContent(content)

	return fs, nil
}

// SourceFile is a file discovered under a project root.
type SourceFile struct {
	Path     string // absolute or root-joined path
	RelPath  string // slash-separated, relative to the root
	Language string
}

// WalkSources enumerates supported files under root. Files whose language
// is rejected by allow are skipped; walk errors are reported as issues.
func (r *Registry) WalkSources(root string, matcher *ignore.Matcher, allow func(lang string) bool) ([]SourceFile, []Issue) {
	files := make([]SourceFile, 0)
	issues := make([]Issue, 0)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		relPath := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			relPath = filepath.ToSlash(rel)
		}
		if err != nil {
			issues = append(issues, Issue{
				File:     relPath,
				Kind:     IssueParseFailure,
				Severity: "warning",
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if relPath == "." {
			return nil
		}

		if matcher != nil && matcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		lang, ok := r.LanguageForFile(path)
		if !ok {
			return nil
		}
		if allow != nil && !allow(lang) {
			return nil
		}
		files = append(files, SourceFile{Path: path, RelPath: relPath, Language: lang})
		return nil
	})
	if err != nil {
		issues = append(issues, Issue{
			File:     root,
			Kind:     IssueParseFailure,
			Severity: "error",
			Message:  fmt.Sprintf("walk failed: %v", err),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	SortIssues(issues)
	return files, issues
}

// SortIssues orders issues by file then message.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].File == issues[j].File {
			return issues[i].Message < issues[j].Message
		}
		return issues[i].File < issues[j].File
	})
}

// HashContent returns the short content hash used for change detection.
func HashContent(content []byte) string {
	h := sha256.New()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16] // short hash
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func normalizeReferences(values []Reference) []Reference {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]Reference, 0, len(values))
	for _, value := range values {
		value.Name = strings.TrimSpace(value.Name)
		value.Qualifier = strings.TrimSpace(value.Qualifier)
		value.FQN = strings.TrimSpace(value.FQN)
		if value.Name == "" {
			continue
		}

		key := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d", value.Name, value.Qualifier, value.FQN, value.Kind, value.Arity, value.Line, value.Column)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Qualifier != out[j].Qualifier {
			return out[i].Qualifier < out[j].Qualifier
		}
		return out[i].FQN < out[j].FQN
	})

	return out
}

func normalizeImportAliases(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	out := make(map[string]string, len(values))
	for alias, target := range values {
		alias = strings.TrimSpace(alias)
		target = strings.TrimSpace(target)
		if alias == "" || target == "" {
			continue
		}
		out[alias] = target
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
