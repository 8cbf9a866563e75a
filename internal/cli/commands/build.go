package commands

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/curiosum-dev/contexted/internal/cli/ui"
	"github.com/curiosum-dev/contexted/internal/tooling/build"
)

var (
	buildJSON      bool
	buildRecompile bool
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Lint the module and write every configured delegation",
		Long: `Run the compilation phase configured in contexted.yml:
  1. Lint - fail on the first cross-context reference
  2. Describe - record the exported functions of every delegation source
  3. Delegate - write the forwarders of every delegation job
  4. Recompile - with enable_recompilation, describe every context again in
     dependency order and rewrite the delegations`,
		Example: `  # Build with the settings of contexted.yml
  contexted build

  # Force the recompilation pass
  contexted build --recompile`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}

	cmd.Flags().BoolVar(&buildJSON, "json", false, "Output diagnostics in JSON format")
	cmd.Flags().BoolVar(&buildRecompile, "recompile", false, "Run the recompilation pass even if it is not enabled")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	cfg, err := loadProject()
	if err != nil {
		return report(cmd.OutOrStdout(), err, "", buildJSON)
	}
	if buildRecompile {
		cfg.EnableRecompilation = true
	}

	phase := build.NewPhase(cfg, logger)
	result, err := phase.Run(cmd.Context())
	if err != nil {
		return report(cmd.OutOrStdout(), err, cfg.Root, buildJSON)
	}

	if buildJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	infoColor.Fprintf(out, "Checked %d references\n", result.References)

	table := ui.NewTable(out, "ACTION", "PATH")
	for _, src := range result.Described {
		table.AddRow("described", src)
	}
	for _, file := range result.Written {
		if rel, err := filepath.Rel(cfg.Root, file); err == nil {
			file = rel
		}
		table.AddRow("wrote", filepath.ToSlash(file))
	}
	table.Render()

	if len(result.Recompiled) > 0 {
		infoColor.Fprintf(out, "Recompiled %d package(s)\n", len(result.Recompiled))
	}
	successColor.Fprintf(out, "✓ Build complete in %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}
