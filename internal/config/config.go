// Package config loads the codegraph YAML configuration: the primary root,
// extra ignore rules, auxiliary projects and tuning knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/skelly-dev/codegraph/internal/supplementary"
)

// DefaultFile is looked up in the primary root when no path is given.
const DefaultFile = "codegraph.yaml"

const (
	DefaultMaxTokens = 4000
	DefaultMaxDepth  = 3
)

var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config is the on-disk configuration.
type Config struct {
	Root     string         `yaml:"root" validate:"required"`
	Ignore   []string       `yaml:"ignore,omitempty"`
	Projects []Project      `yaml:"projects,omitempty" validate:"dive"`
	Index    IndexConfig    `yaml:"index"`
	Skeleton SkeletonConfig `yaml:"skeleton"`

	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-"`
}

// Project is one auxiliary project entry.
type Project struct {
	Name      string   `yaml:"name" validate:"required"`
	Root      string   `yaml:"root" validate:"required"`
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Priority  int      `yaml:"priority"`
	Languages []string `yaml:"languages,omitempty" validate:"dive,required"`
}

type IndexConfig struct {
	Workers  int    `yaml:"workers" validate:"gte=0"`
	StateDir string `yaml:"state_dir,omitempty"`
}

type SkeletonConfig struct {
	MaxTokens    int  `yaml:"max_tokens" validate:"gte=0"`
	MaxDepth     int  `yaml:"max_depth" validate:"gte=0,lte=10"`
	Redistribute bool `yaml:"redistribute"`
}

// Default returns the configuration used when no file exists.
func Default(root string) *Config {
	cfg := &Config{Root: root}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates a config file. Relative roots are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Path = path

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if cfg.Root == "" {
		cfg.Root = base
	}
	cfg.Root = resolveAgainst(base, cfg.Root)
	for i := range cfg.Projects {
		cfg.Projects[i].Root = resolveAgainst(base, cfg.Projects[i].Root)
	}
	if cfg.Index.StateDir != "" {
		cfg.Index.StateDir = resolveAgainst(base, cfg.Index.StateDir)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover loads path when given, else root/codegraph.yaml when it
// exists, else the defaults for root.
func Discover(path, root string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	candidate := filepath.Join(root, DefaultFile)
	if _, err := os.Stat(candidate); err == nil {
		return Load(candidate)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	return Default(abs), nil
}

// Validate checks field constraints and that project names are unique.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(c.Projects))
	for _, p := range c.Projects {
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate project %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// ProjectConfigs converts the project entries for the registry.
func (c *Config) ProjectConfigs() []supplementary.ProjectConfig {
	out := make([]supplementary.ProjectConfig, 0, len(c.Projects))
	for _, p := range c.Projects {
		out = append(out, supplementary.ProjectConfig{
			Name:      p.Name,
			Root:      p.Root,
			Enabled:   p.Enabled == nil || *p.Enabled,
			Priority:  p.Priority,
			Languages: p.Languages,
		})
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Index.Workers == 0 {
		c.Index.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Skeleton.MaxTokens == 0 {
		c.Skeleton.MaxTokens = DefaultMaxTokens
	}
	if c.Skeleton.MaxDepth == 0 {
		c.Skeleton.MaxDepth = DefaultMaxDepth
	}
}

func resolveAgainst(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
