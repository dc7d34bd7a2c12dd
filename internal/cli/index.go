package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/manager"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

// IndexSummary is printed by the index command.
type IndexSummary struct {
	Root       string                        `json:"root"`
	Config     string                        `json:"config,omitempty"`
	DurationMS int64                         `json:"duration_ms"`
	Languages  []string                      `json:"languages"`
	Extensions []string                      `json:"extensions"`
	Projects   []supplementary.ProjectConfig `json:"projects"`
	Stats      manager.Stats                 `json:"stats"`
	Issues     []parser.Issue                `json:"issues"`
}

func runIndex(cmd *cobra.Command, flags *globalFlags) error {
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to read --quiet flag: %w", err)
	}
	env, err := loadEnvironment(cmd, flags)
	if err != nil {
		return err
	}

	start := time.Now()
	issues, err := bootstrap(cmd.Context(), env, cmd.ErrOrStderr(), quiet)
	if err != nil {
		return err
	}
	if !quiet {
		printDiagnostics(cmd.ErrOrStderr(), issues)
	}

	stats := env.manager.Stats()
	if issues == nil {
		issues = []parser.Issue{}
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), IndexSummary{
		Root:       env.cfg.Root,
		Config:     env.cfg.Path,
		DurationMS: time.Since(start).Milliseconds(),
		Languages:  env.extractors.Languages(),
		Extensions: env.extractors.SupportedExtensions(),
		Projects:   env.manager.Projects(),
		Stats:      stats,
		Issues:     issues,
	})
}

// bootstrap indexes everything and resolves cross-project edges once so the
// returned issues include ambiguous resolutions.
func bootstrap(ctx context.Context, env *environment, progressOut io.Writer, quiet bool) ([]parser.Issue, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reporter := newIndexProgressReporter(progressOut, "indexing", quiet)
	followCtx, stop := context.WithCancel(ctx)
	go reporter.Follow(followCtx, env.manager.Status)

	_, err := env.manager.Bootstrap(ctx)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", env.cfg.Root, err)
	}
	reporter.Done(env.manager.Stats().Graph.Files)

	env.manager.CrossProjectEdges(ctx)
	return env.manager.Diagnostics(), nil
}

func printDiagnostics(w io.Writer, issues []parser.Issue) {
	for _, issue := range issues {
		fmt.Fprintln(w, issue.String())
	}
}
