package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/config"
	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/manager"
	"github.com/skelly-dev/codegraph/internal/parser"
)

type globalFlags struct {
	root     string
	config   string
	logLevel string
}

func NewRootCommand(version string) *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Cross-project code graph and skeleton server",
		Long: `codegraph indexes a primary codebase together with read-only auxiliary
projects, resolves references across project boundaries and serves
definitions, references, related files and token-budgeted skeletons
as MCP tools.

Configuration is read from codegraph.yaml in the root unless --config is set.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", ".", "Primary project root")
	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "Path to codegraph.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	// Server Commands
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the root and serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, version)
		},
	}
	serveCmd.Flags().Bool("watch", true, "Re-index primary files as they change")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index once and print a JSON summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, flags)
		},
	}
	indexCmd.Flags().Bool("quiet", false, "Do not print diagnostics to stderr")

	// Query Commands
	definitionsCmd := &cobra.Command{
		Use:   "definitions <name>",
		Short: "Find definitions of a name across every project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinitions(cmd, flags, args[0])
		},
	}

	referencesCmd := &cobra.Command{
		Use:   "references <name>",
		Short: "Show internal and cross-project references of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReferences(cmd, flags, args[0])
		},
	}

	subgraphCmd := &cobra.Command{
		Use:   "subgraph <name>",
		Short: "Show primary symbols reachable from a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubgraph(cmd, flags, args[0])
		},
	}
	subgraphCmd.Flags().Int("depth", manager.DefaultMaxDepth, "Traversal depth (0-10)")

	relatedCmd := &cobra.Command{
		Use:   "related <file>...",
		Short: "List files related to the seeds, optionally as skeletons",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelated(cmd, flags, args)
		},
	}
	relatedCmd.Flags().Int("depth", -1, "Traversal depth (0-10, default from config)")
	relatedCmd.Flags().Bool("skeleton", false, "Render skeletons of the related files")
	relatedCmd.Flags().Int("max-tokens", 0, "Skeleton token budget (100-20000, default from config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codegraph %s\n", version)
		},
	}

	rootCmd.AddCommand(
		serveCmd,
		indexCmd,
		definitionsCmd,
		referencesCmd,
		subgraphCmd,
		relatedCmd,
		versionCmd,
	)
	return rootCmd
}

// environment is what every command needs: the effective configuration,
// a logger and a manager built from both.
type environment struct {
	cfg        *config.Config
	logger     *slog.Logger
	extractors *parser.Registry
	manager    *manager.Manager
}

func loadEnvironment(cmd *cobra.Command, flags *globalFlags) (*environment, error) {
	level, err := ParseLogLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), level)

	cfg, err := config.Discover(flags.config, flags.root)
	if err != nil {
		return nil, err
	}
	if err := applyRootOverride(cmd, cfg, flags.root); err != nil {
		return nil, err
	}

	extractors := languages.NewDefaultRegistry()
	mgr, err := manager.New(extractors, manager.Options{
		Root:         cfg.Root,
		Ignore:       cfg.Ignore,
		Workers:      cfg.Index.Workers,
		Projects:     cfg.ProjectConfigs(),
		Redistribute: cfg.Skeleton.Redistribute,
		StateDir:     cfg.Index.StateDir,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph manager: %w", err)
	}
	logger.Debug("loaded configuration",
		slog.String("root", cfg.Root),
		slog.String("config", cfg.Path),
		slog.Int("projects", len(cfg.Projects)),
		slog.Any("languages", extractors.Languages()))
	return &environment{cfg: cfg, logger: logger, extractors: extractors, manager: mgr}, nil
}
