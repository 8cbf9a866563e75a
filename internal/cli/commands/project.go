package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/cli/config"
	"github.com/curiosum-dev/contexted/internal/cli/ui"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
	"github.com/curiosum-dev/contexted/internal/tracer"
)

// loadProject finds the project root from --dir and loads its configuration
func loadProject() (*config.Config, error) {
	root, err := config.FindRoot(projectDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, cerrors.NewConfigError(filepath.Join(root, config.FileName), err)
	}
	return cfg, nil
}

// diagnosticOf extracts a compiler diagnostic from err, if it carries one
func diagnosticOf(err error, root string) (cerrors.CompilerError, bool) {
	var violation *tracer.ViolationError
	if errors.As(err, &violation) {
		return enrich(violation.Diagnostic(), root), true
	}

	var parseErr *tracer.ParseError
	if errors.As(err, &parseErr) {
		diag := cerrors.NewCompilerError(cerrors.PhaseTrace, cerrors.ErrUnparsableSource,
			parseErr.Err.Error(), cerrors.SourceLocation{File: parseErr.File}, cerrors.Error).WithCause(err)
		return diag, true
	}

	var diag cerrors.CompilerError
	if errors.As(err, &diag) {
		return diag, true
	}
	return cerrors.CompilerError{}, false
}

// enrich adds source lines to a diagnostic whose file is relative to root
func enrich(diag cerrors.CompilerError, root string) cerrors.CompilerError {
	file := diag.Location.File
	if file == "" || filepath.IsAbs(file) {
		return cerrors.EnrichErrorFromFile(diag)
	}
	diag.Location.File = filepath.Join(root, filepath.FromSlash(file))
	diag = cerrors.EnrichErrorFromFile(diag)
	diag.Location.File = file
	return diag
}

// report prints err as a diagnostic when it carries one and returns
// ErrReported, or returns err unchanged
func report(w io.Writer, err error, root string, asJSON bool) error {
	diag, ok := diagnosticOf(err, root)
	if !ok {
		return err
	}

	if asJSON {
		out, jsonErr := cerrors.FormatErrorsAsJSON([]cerrors.CompilerError{diag})
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Fprintln(w, out)
		return ErrReported
	}

	fmt.Fprintln(w, diag.FormatForTerminal())
	fmt.Fprintln(w, cerrors.FormatSummary(1, 0))
	return ErrReported
}

// unknownResource reports a resource missing from a schema file
func unknownResource(name, schemaFile string, registry *schema.Registry) cerrors.CompilerError {
	diag := cerrors.NewCompilerError(cerrors.PhaseCrud, cerrors.ErrUnknownResource,
		fmt.Sprintf("resource %s is not defined in %s", name, schemaFile),
		cerrors.SourceLocation{File: schemaFile}, cerrors.Error)
	if hint := ui.DidYouMean(name, registry.List()); hint != "" {
		diag = diag.WithSuggestion(cerrors.FixSuggestion{Description: hint})
	}
	return diag
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)
