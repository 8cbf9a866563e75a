package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/curiosum-dev/contexted/internal/cli/config"
	"github.com/curiosum-dev/contexted/internal/tracer"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a contexted.yml for the current module",
		Long: `Create contexted.yml in the module root. Every top-level package of the
module is proposed as a context; with --interactive you pick which ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.FindRoot(projectDir)
			if err != nil {
				return err
			}
			path := filepath.Join(root, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			candidates, err := topLevelPackages(root)
			if err != nil {
				return err
			}

			cfg := &config.Config{Contexts: candidates}
			if interactive {
				if len(candidates) > 0 {
					var picked []string
					prompt := &survey.MultiSelect{
						Message: "Contexts:",
						Options: candidates,
						Default: candidates,
					}
					if err := survey.AskOne(prompt, &picked); err != nil {
						return err
					}
					cfg.Contexts = picked
				}
				confirm := &survey.Confirm{
					Message: "Regenerate delegates of changed contexts on build?",
					Default: false,
				}
				if err := survey.AskOne(confirm, &cfg.EnableRecompilation); err != nil {
					return err
				}
			}
			if cfg.Contexts == nil {
				cfg.Contexts = []string{}
			}

			if err := config.Write(path, cfg); err != nil {
				return err
			}

			successColor.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
			if len(cfg.Contexts) > 0 {
				infoColor.Fprintf(cmd.OutOrStdout(), "  contexts: %s\n", strings.Join(cfg.Contexts, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Choose contexts interactively")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing contexted.yml")

	return cmd
}

// topLevelPackages returns the import paths of packages directly below the
// module root, or none when root is not a module
func topLevelPackages(root string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		return nil, nil
	}
	scanner, err := tracer.NewScanner(root, nil, logger.Logger)
	if err != nil {
		return nil, err
	}
	packages, err := scanner.Packages()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, pkg := range packages {
		if pkg.Dir == "." || strings.Contains(pkg.Dir, "/") {
			continue
		}
		if pkg.Dir == "cmd" || pkg.Dir == "internal" {
			continue
		}
		paths = append(paths, pkg.ImportPath)
	}
	return paths, nil
}
