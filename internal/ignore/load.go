package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// RulesFile is the per-root rule file read by ForRoot.
const RulesFile = ".codegraphignore"

// ForRoot builds a matcher for root from DefaultRules, extra, the root's
// .codegraphignore and, when present, its .gitignore.
func ForRoot(root string, extra []string) (*Matcher, error) {
	rules, err := LoadRules(filepath.Join(root, RulesFile))
	if err != nil {
		return nil, err
	}

	all := make([]string, 0, len(extra)+len(rules))
	all = append(all, extra...)
	all = append(all, rules...)
	m := NewMatcher(all)

	gitPath := filepath.Join(root, ".gitignore")
	if _, statErr := os.Stat(gitPath); statErr == nil {
		git, err := gitignore.CompileIgnoreFile(gitPath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", gitPath, err)
		}
		m.WithGitIgnore(git)
	}
	return m, nil
}

// LoadRules reads non-empty, non-comment lines from path. A missing file
// yields no rules.
func LoadRules(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	rules := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	return rules, nil
}
