package commands

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/curiosum-dev/contexted/internal/tooling/build"
	"github.com/curiosum-dev/contexted/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Lint the module again whenever a Go file changes",
		Long: `Run the context lint, then watch the module and run it again whenever a
.go file, go.mod or contexted.yml changes. Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return report(cmd.OutOrStdout(), err, "", false)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	lint := func() {
		// reload so edits to contexted.yml apply
		current, err := loadProject()
		if err != nil {
			_ = report(out, err, "", false)
			return
		}
		if err := build.NewPhase(current, logger).Trace(ctx); err != nil {
			if reported := report(out, err, current.Root, false); !errors.Is(reported, ErrReported) {
				warningColor.Fprintf(out, "lint failed: %v\n", reported)
			}
			return
		}
		successColor.Fprintln(out, "✓ No cross-context references")
	}

	lint()

	var ignored []string
	if rel, err := filepath.Rel(cfg.Root, cfg.ArtifactDir()); err == nil {
		ignored = append(ignored, rel)
	}

	watcher, err := watch.NewFileWatcher(cfg.Root, nil, ignored, logger.Logger, func(files []string) error {
		logger.Debug("re-running lint", zap.Strings("files", files))
		infoColor.Fprintf(out, "\n%d file(s) changed\n", len(files))
		lint()
		return nil
	})
	if err != nil {
		return err
	}

	infoColor.Fprintf(out, "Watching %s for changes...\n", cfg.Root)
	return watcher.Run(ctx)
}
