package commands

import (
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/curiosum-dev/contexted/internal/cli/logging"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	verbose    bool
	projectDir string

	// logger is built before every command runs
	logger = logging.Nop()
)

// ErrReported is returned by commands that already printed their diagnostics
var ErrReported = errors.New("diagnostics reported")

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contexted",
		Short: "Context boundaries, delegation and CRUD generation for Go modules",
		Long: color.CyanString(`contexted - bounded contexts for Go modules

contexted keeps the packages of a module inside their configured contexts
and generates the glue between them:
  • lint fails when one context references another
  • delegate forwards the exported functions of packages into a context
  • gen crud writes the data-access functions of a resource`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Run as if started in this directory")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewLintCommand())
	rootCmd.AddCommand(NewDescribeCommand())
	rootCmd.AddCommand(NewDelegateCommand())
	rootCmd.AddCommand(NewGenCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewQueryCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the contexted version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "contexted version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, ErrReported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
