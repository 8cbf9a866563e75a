package errors

import (
	"fmt"
	"strings"
)

// NewCrossContextReference reports a reference from one context into another
func NewCrossContextReference(from, to, fromContext, toContext string, location SourceLocation) CompilerError {
	msg := fmt.Sprintf("You can't reference %s context within %s context.", toContext, fromContext)
	if from != fromContext || to != toContext {
		msg += fmt.Sprintf(" (%s -> %s)", from, to)
	}

	return NewCompilerError(PhaseTrace, ErrCrossContextReference, msg, location, Error).
		WithSuggestion(FixSuggestion{
			Description: fmt.Sprintf("call %s through a function delegated into %s, or add the file to exclude_paths",
				toContext, fromContext),
			NewCode: fmt.Sprintf("delegates:\n  - target: %s\n    sources: [%s]", fromContext, to),
		})
}

// NewDuplicateDelegate reports a function exported by more than one delegation source
func NewDuplicateDelegate(name string, sources []string, target string) CompilerError {
	msg := fmt.Sprintf("function %s is exported by %s; it can only be delegated into %s once",
		name, strings.Join(sources, " and "), target)

	return NewCompilerError(PhaseDelegate, ErrDuplicateDelegate, msg, SourceLocation{}, Error).
		WithSuggestion(FixSuggestion{
			Description: "rename one of the functions or split the sources into separate delegation targets",
		})
}

// NewInvalidDelegateSource reports a delegation source that could not be described
func NewInvalidDelegateSource(source string, cause error) CompilerError {
	return NewCompilerError(PhaseDelegate, ErrInvalidDelegateSource,
		fmt.Sprintf("cannot describe %s: %v", source, cause), SourceLocation{}, Error).
		WithCause(cause)
}

// NewMissingDescription reports a delegation source with no stored description
func NewMissingDescription(source string, cause error) CompilerError {
	return NewCompilerError(PhaseDelegate, ErrStaleDescription,
		fmt.Sprintf("no interface description for %s", source), SourceLocation{}, Error).
		WithCause(cause).
		WithSuggestion(FixSuggestion{
			Description: "describe the package before delegating to it",
			NewCode:     fmt.Sprintf("contexted describe <dir of %s> --save", source),
		})
}

// NewUnknownContext warns about a configured context with no package in the module
func NewUnknownContext(context, file, hint string) CompilerError {
	err := NewCompilerError(PhaseConfig, ErrUnknownContext,
		fmt.Sprintf("context %s does not match any package in the module", context),
		SourceLocation{File: file}, Warning)
	if hint != "" {
		err = err.WithSuggestion(FixSuggestion{Description: hint})
	}
	return err
}

// NewInvalidCrudOption reports an only/except problem
func NewInvalidCrudOption(resource string, cause error, valid []string) CompilerError {
	err := NewCompilerError(PhaseCrud, ErrInvalidCrudOption,
		fmt.Sprintf("crud %s: %v", resource, cause), SourceLocation{}, Error).
		WithCause(cause)
	if len(valid) > 0 {
		err = err.WithSuggestion(FixSuggestion{
			Description: "valid operations are " + strings.Join(valid, ", "),
		})
	}
	return err
}

// NewIndirectAssociation reports an association count that is not declared on the base resource
func NewIndirectAssociation(resource string, cause error) CompilerError {
	return NewCompilerError(PhaseConfig, ErrIndirectAssociation,
		fmt.Sprintf("%s: %v", resource, cause), SourceLocation{}, Error).
		WithCause(cause).
		WithSuggestion(FixSuggestion{
			Description: "query the resource that declares the association and count from there",
		})
}

// NewConfigError reports an invalid configuration file
func NewConfigError(file string, cause error) CompilerError {
	return NewCompilerError(PhaseConfig, ErrInvalidConfig, cause.Error(), SourceLocation{File: file}, Error).
		WithCause(cause)
}
