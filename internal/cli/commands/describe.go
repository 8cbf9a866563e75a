package commands

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curiosum-dev/contexted/internal/cli/config"
	"github.com/curiosum-dev/contexted/internal/codegen/delegate"
)

var (
	describeImportPath string
	describeSave       bool
)

// NewDescribeCommand creates the describe command
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <dir>",
		Short: "Print the exported functions of a package as JSON",
		Long: `Parse the package in <dir> and print the description delegation works
from: every exported top-level function with its doc comment, type
parameters, parameters and results. Functions whose signature mentions an
unexported type are listed as skipped.`,
		Example: `  # Describe a package of the current module
  contexted describe ./accounts/users

  # Store the description in the artifact directory
  contexted describe ./accounts/users --save`,
		Args: cobra.ExactArgs(1),
		RunE: runDescribe,
	}

	cmd.Flags().StringVar(&describeImportPath, "import-path", "", "Import path of the package (default: derived from go.mod)")
	cmd.Flags().BoolVar(&describeSave, "save", false, "Write the description to the artifact directory")

	return cmd
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return report(cmd.OutOrStdout(), err, "", false)
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	importPath := describeImportPath
	if importPath == "" {
		importPath, err = importPathOf(cfg, dir)
		if err != nil {
			return err
		}
	}

	iface, err := delegate.Describe(dir, importPath)
	if err != nil {
		return err
	}

	if describeSave {
		store := delegate.NewStore(cfg.ArtifactDir())
		if err := store.Save(iface); err != nil {
			return err
		}
		successColor.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s\n", store.Path(importPath))
	}
	return writeJSON(cmd.OutOrStdout(), iface)
}

// importPathOf maps a directory inside the module to its import path
func importPathOf(cfg *config.Config, dir string) (string, error) {
	if cfg.Module == "" {
		return "", fmt.Errorf("no go.mod in %s; pass --import-path", cfg.Root)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not inside %s", config.ErrOutsideModule, dir, root)
	}
	if rel == "." {
		return cfg.Module, nil
	}
	return path.Join(cfg.Module, filepath.ToSlash(rel)), nil
}
