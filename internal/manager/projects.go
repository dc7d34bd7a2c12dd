package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

// BuildSupplementary builds one auxiliary project's catalog and swaps it
// into the registry. A disabled or missing project is recorded as a
// configuration issue, removed from the registry and returned as an error.
func (m *Manager) BuildSupplementary(ctx context.Context, cfg supplementary.ProjectConfig) (supplementary.BuildStats, []parser.Issue, error) {
	catalog, issues, err := supplementary.Build(ctx, m.extractors, cfg, m.buildOptions())
	recordProjectBuild(ctx, err == nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[cfg.Name] = cfg
	if err != nil {
		issues = append(issues, supplementary.ConfigurationIssue(cfg.Name, err))
		m.projectIssues[cfg.Name] = issues
		m.registry.Remove(cfg.Name)
		m.logger.Warn("auxiliary project unavailable",
			slog.String("project", cfg.Name),
			slog.String("error", err.Error()))
		return supplementary.BuildStats{Project: cfg.Name}, issues, err
	}
	m.projectIssues[cfg.Name] = issues
	m.registry.Put(catalog)
	return catalog.Stats(), issues, nil
}

// BuildAll builds every configured project in parallel and swaps the
// results in together.
func (m *Manager) BuildAll(ctx context.Context) []parser.Issue {
	cfgs := m.Projects()
	if len(cfgs) == 0 {
		return nil
	}
	catalogs, issues := supplementary.BuildAll(ctx, m.extractors, cfgs, m.buildOptions())

	built := make(map[string]bool, len(catalogs))
	for _, c := range catalogs {
		built[c.Config.Name] = true
	}
	for _, cfg := range cfgs {
		recordProjectBuild(ctx, built[cfg.Name])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range cfgs {
		m.projectIssues[cfg.Name] = nil
		if !built[cfg.Name] {
			m.registry.Remove(cfg.Name)
		}
	}
	for _, issue := range issues {
		m.projectIssues[issue.Project] = append(m.projectIssues[issue.Project], issue)
	}
	for _, c := range catalogs {
		m.registry.Put(c)
	}
	return issues
}

// RefreshProject rebuilds a configured project from disk.
func (m *Manager) RefreshProject(ctx context.Context, name string) (supplementary.BuildStats, []parser.Issue, error) {
	m.mu.RLock()
	cfg, ok := m.projects[name]
	m.mu.RUnlock()
	if !ok {
		return supplementary.BuildStats{}, nil, fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	return m.BuildSupplementary(ctx, cfg)
}

// RemoveProject forgets a project and its catalog.
func (m *Manager) RemoveProject(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, known := m.projects[name]
	delete(m.projects, name)
	delete(m.projectIssues, name)
	return m.registry.Remove(name) || known
}

// Projects returns the configured projects sorted by name.
func (m *Manager) Projects() []supplementary.ProjectConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]supplementary.ProjectConfig, 0, len(m.projects))
	for _, cfg := range m.projects {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) buildOptions() supplementary.BuildOptions {
	return supplementary.BuildOptions{
		Workers: m.opts.Workers,
		Logger:  m.logger,
	}
}
