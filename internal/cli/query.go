package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/manager"
)

func runDefinitions(cmd *cobra.Command, flags *globalFlags, name string) error {
	env, err := indexedEnvironment(cmd, flags)
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), env.manager.FindDefinitions(name))
}

func runReferences(cmd *cobra.Command, flags *globalFlags, name string) error {
	env, err := indexedEnvironment(cmd, flags)
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), env.manager.FindReferences(cmd.Context(), name))
}

func runSubgraph(cmd *cobra.Command, flags *globalFlags, name string) error {
	depth, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return fmt.Errorf("failed to read --depth flag: %w", err)
	}
	env, err := indexedEnvironment(cmd, flags)
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), map[string]any{
		"name":    name,
		"depth":   manager.ClampDepth(depth),
		"symbols": env.manager.Subgraph(name, depth),
	})
}

func runRelated(cmd *cobra.Command, flags *globalFlags, seeds []string) error {
	withSkeleton, err := cmd.Flags().GetBool("skeleton")
	if err != nil {
		return fmt.Errorf("failed to read --skeleton flag: %w", err)
	}
	env, err := indexedEnvironment(cmd, flags)
	if err != nil {
		return err
	}
	depth, err := optionalInt(cmd, "depth", env.cfg.Skeleton.MaxDepth)
	if err != nil {
		return err
	}
	tokens, err := optionalInt(cmd, "max-tokens", env.cfg.Skeleton.MaxTokens)
	if err != nil {
		return err
	}

	if withSkeleton {
		out, err := env.manager.RelatedFilesSkeleton(cmd.Context(), seeds, tokens, depth)
		if err != nil {
			return err
		}
		return fileutil.PrintJSON(cmd.OutOrStdout(), out)
	}
	out, err := env.manager.RelatedFiles(cmd.Context(), seeds, manager.ClampDepth(depth))
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(cmd.OutOrStdout(), out)
}

// indexedEnvironment loads the environment and runs a full bootstrap
// without progress output.
func indexedEnvironment(cmd *cobra.Command, flags *globalFlags) (*environment, error) {
	env, err := loadEnvironment(cmd, flags)
	if err != nil {
		return nil, err
	}
	if _, err := bootstrap(cmd.Context(), env, cmd.ErrOrStderr(), true); err != nil {
		return nil, err
	}
	return env, nil
}
