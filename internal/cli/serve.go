package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/server"
	"github.com/skelly-dev/codegraph/internal/watch"
)

func runServe(cmd *cobra.Command, flags *globalFlags, version string) error {
	watchFiles, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to read --watch flag: %w", err)
	}
	env, err := loadEnvironment(cmd, flags)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Queries are answered while the initial index runs; graph_status
	// reports progress.
	go func() {
		issues, err := env.manager.Bootstrap(ctx)
		if err != nil {
			env.logger.Error("initial index failed", slog.String("error", err.Error()))
			return
		}
		env.logger.Info("initial index complete", slog.Int("issues", len(issues)))
	}()

	if watchFiles {
		w, err := watch.New(env.manager, watch.Options{
			Logger: env.logger,
			OnBatch: func(changes []watch.Change, issues []parser.Issue) {
				for _, issue := range issues {
					env.logger.Warn("re-index issue", slog.String("issue", issue.String()))
				}
			},
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.New(env.manager, server.Options{
		Version:   version,
		MaxTokens: env.cfg.Skeleton.MaxTokens,
		MaxDepth:  env.cfg.Skeleton.MaxDepth,
		Logger:    env.logger,
	})
	return srv.Run(ctx)
}
