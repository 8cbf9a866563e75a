package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/codegen/crud"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// NewGenCommand creates the gen command
func NewGenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gen",
		Aliases: []string{"g"},
		Short:   "Code generation commands",
		Long: `Generate Go source for resources.

Available generators:
  crud - list/get/create/update/delete/change functions for a resource`,
	}

	cmd.AddCommand(newGenCrudCommand())

	return cmd
}

func newGenCrudCommand() *cobra.Command {
	var (
		schemaFile   string
		resourceName string
		opts         crud.Options
		output       string
		interactive  bool
	)

	cmd := &cobra.Command{
		Use:   "crud",
		Short: "Generate the data-access functions of a resource",
		Long: `Generate, for one resource of a YAML schema file, functions composing the
repository API:

  list     ListItems(ctx, r, filter)
  get      GetItem(ctx, r, id)            nil when missing
  get!     MustGetItem(ctx, r, id)        repo.ErrNotFound when missing
  create   CreateItem(ctx, r, attrs)
  create!  MustCreateItem(ctx, r, attrs)
  update   UpdateItem(ctx, r, record, attrs)
  update!  MustUpdateItem(ctx, r, record, attrs)
  delete   DeleteItem(ctx, r, record)
  delete!  MustDeleteItem(ctx, r, record)
  change   ChangeItem(r, record, attrs)

--only and --except restrict the set by these keys.`,
		Example: `  # Every function for Item
  contexted gen crud --schema schema.yml --resource Item -o catalog/items_gen.go

  # Only reads
  contexted gen crud --schema schema.yml --resource Item --only list,get,get!`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schema.LoadFile(schemaFile)
			if err != nil {
				return err
			}

			if resourceName == "" && interactive {
				prompt := &survey.Select{
					Message: "Resource:",
					Options: registry.List(),
				}
				if err := survey.AskOne(prompt, &resourceName); err != nil {
					return err
				}
			}
			if resourceName == "" {
				return errors.New("resource name required\n\nUsage: contexted gen crud --schema <file> --resource <name>")
			}

			resource, ok := registry.Get(resourceName)
			if !ok {
				return report(cmd.ErrOrStderr(), unknownResource(resourceName, schemaFile, registry), "", false)
			}

			code, err := crud.Generate(resource, opts)
			if err != nil {
				if errors.Is(err, crud.ErrUnknownFunction) || errors.Is(err, crud.ErrConflictingOptions) ||
					errors.Is(err, crud.ErrInvalidOption) {
					return report(cmd.ErrOrStderr(), cerrors.NewInvalidCrudOption(resourceName, err, crud.Operations), "", false)
				}
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(code)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(output, code, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "✓ Created %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "schema.yml", "YAML schema file")
	cmd.Flags().StringVar(&resourceName, "resource", "", "Resource to generate functions for")
	cmd.Flags().StringVar(&opts.Plural, "plural", "", "Plural used by the list function (default: inflected)")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Package of the generated file (default: the plural)")
	cmd.Flags().StringVar(&opts.RepoImport, "repo-import", crud.DefaultRepoImport, "Import path of the repository package")
	cmd.Flags().StringVar(&opts.ChangesetFunc, "changeset", "", "Function building changesets instead of the schema cast")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Generate only these operations")
	cmd.Flags().StringSliceVar(&opts.Except, "except", nil, "Generate every operation but these")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick the resource interactively")

	return cmd
}
