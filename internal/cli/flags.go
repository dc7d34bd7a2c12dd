package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codegraph/internal/config"
)

func ParseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported log level %q (supported: debug, info, warn, error)", value)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// applyRootOverride lets an explicit --root win over the file's root.
func applyRootOverride(cmd *cobra.Command, cfg *config.Config, root string) error {
	flag := cmd.Flags().Lookup("root")
	if flag == nil || !flag.Changed {
		return nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve --root: %w", err)
	}
	cfg.Root = abs
	return nil
}

// optionalInt returns fallback when the flag was left at its default.
func optionalInt(cmd *cobra.Command, name string, fallback int) (int, error) {
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return 0, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	if !cmd.Flags().Changed(name) {
		return fallback, nil
	}
	return value, nil
}
