package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/codegen/delegate"
	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

var (
	delegateTarget  string
	delegatePackage string
	delegateSources []string
	delegateOutput  string
)

// NewDelegateCommand creates the delegate command
func NewDelegateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Generate forwarders for the exported functions of packages",
		Long: `Describe every --source package and generate, in package --package, one
function per exported source function with the same name, signature and
doc comment that calls the source function with all of its arguments.

A function exported by two sources is reported as a conflict.`,
		Example: `  # Forward the functions of accounts/users into accounts
  contexted delegate --target example.com/shop/accounts \
    --source example.com/shop/accounts/users --output accounts/users_gen.go

  # Print the generated file instead of writing it
  contexted delegate --package accounts --source example.com/shop/accounts/users`,
		Args: cobra.NoArgs,
		RunE: runDelegate,
	}

	cmd.Flags().StringVar(&delegateTarget, "target", "", "Import path of the package receiving the forwarders")
	cmd.Flags().StringVar(&delegatePackage, "package", "", "Package name of the generated file (default: from --target)")
	cmd.Flags().StringSliceVar(&delegateSources, "source", nil, "Import path of a package to delegate to (repeatable)")
	cmd.Flags().StringVarP(&delegateOutput, "output", "o", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runDelegate(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return report(cmd.OutOrStdout(), err, "", false)
	}

	pkg := delegatePackage
	if pkg == "" {
		if delegateTarget == "" {
			return errors.New("either --target or --package is required")
		}
		pkg = ustrings.DefaultPackageName(delegateTarget)
	}

	sources := make([]*delegate.Interface, 0, len(delegateSources))
	for _, src := range delegateSources {
		dir, err := cfg.PackageDir(src)
		if err != nil {
			return report(cmd.ErrOrStderr(), cerrors.NewInvalidDelegateSource(src, err), cfg.Root, false)
		}
		iface, err := delegate.Describe(dir, src)
		if err != nil {
			return report(cmd.ErrOrStderr(), cerrors.NewInvalidDelegateSource(src, err), cfg.Root, false)
		}
		sources = append(sources, iface)
	}

	code, err := delegate.Generate(delegate.Target{Package: pkg, ImportPath: delegateTarget}, sources)
	if err != nil {
		var dup *delegate.DuplicateError
		if errors.As(err, &dup) {
			target := delegateTarget
			if target == "" {
				target = pkg
			}
			return report(cmd.ErrOrStderr(), cerrors.NewDuplicateDelegate(dup.Name, dup.Sources, target), cfg.Root, false)
		}
		return err
	}

	if delegateOutput == "" {
		_, err := cmd.OutOrStdout().Write(code)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(delegateOutput), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(delegateOutput, code, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", delegateOutput, err)
	}
	successColor.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", delegateOutput)
	return nil
}
