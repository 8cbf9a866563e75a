package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/cli/config"
	"github.com/curiosum-dev/contexted/internal/cli/ui"
	"github.com/curiosum-dev/contexted/internal/tooling/build"
)

var lintJSON bool

// NewLintCommand creates the lint command
func NewLintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check that no context references another",
		Long: `Scan every package of the module and fail on the first reference from a
package inside one configured context to a package inside another.

Imports, renamed imports, qualified calls and references, and calls through
dot imports are all checked. Files whose path contains one of exclude_paths
are not checked.`,
		Example: `  # Lint the module in the current directory
  contexted lint

  # Report the violation as JSON
  contexted lint --json`,
		Args: cobra.NoArgs,
		RunE: runLint,
	}

	cmd.Flags().BoolVar(&lintJSON, "json", false, "Output diagnostics in JSON format")

	return cmd
}

func runLint(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return report(cmd.OutOrStdout(), err, "", lintJSON)
	}

	phase := build.NewPhase(cfg, logger)
	if err := phase.Trace(cmd.Context()); err != nil {
		return report(cmd.OutOrStdout(), err, cfg.Root, lintJSON)
	}

	unknown, packages, err := phase.UnknownContexts()
	if err != nil {
		return err
	}
	var warnings []cerrors.CompilerError
	for _, ctx := range unknown {
		warnings = append(warnings, cerrors.NewUnknownContext(ctx, config.FileName, ui.DidYouMean(ctx, packages)))
	}

	if lintJSON {
		out, err := cerrors.FormatErrorsAsJSON(warnings)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(cmd.OutOrStdout(), w.FormatForTerminal())
	}
	if len(warnings) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cerrors.FormatSummary(0, len(warnings)))
	}
	successColor.Fprintf(cmd.OutOrStdout(), "✓ No cross-context references (%d contexts)\n", len(cfg.Contexts))
	return nil
}
