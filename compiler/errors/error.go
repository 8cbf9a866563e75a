// Package errors defines the diagnostics contexted reports: a code, a
// phase, a source location and an optional fix suggestion, renderable for a
// terminal or as JSON.
package errors

import (
	"encoding/json"
	"fmt"
)

// Severity represents the severity level of an error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
}

// String renders file:line:column, omitting unknown parts
func (l SourceLocation) String() string {
	switch {
	case l.File == "":
		return "<unknown>"
	case l.Line == 0:
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
}

// ErrorContext contains surrounding code for an error
type ErrorContext struct {
	SourceLines []string  `json:"source_lines"`
	FirstLine   int       `json:"first_line"`
	Highlight   Highlight `json:"highlight"`
}

// Highlight specifies which part of the context to highlight
type Highlight struct {
	Line  int `json:"line"` // index into SourceLines
	Start int `json:"start"`
	End   int `json:"end"`
}

// FixSuggestion is a hint shown under a diagnostic
type FixSuggestion struct {
	Description string `json:"description"`
	NewCode     string `json:"new_code,omitempty"`
}

// CompilerError is a diagnostic produced by one of the build phases
type CompilerError struct {
	Phase      string         `json:"phase"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Location   SourceLocation `json:"location"`
	Severity   Severity       `json:"severity"`
	Context    ErrorContext   `json:"context"`
	Suggestion *FixSuggestion `json:"suggestion,omitempty"`

	// Cause is the domain error the diagnostic was built from
	Cause error `json:"-"`
}

// Error implements the error interface
func (e CompilerError) Error() string {
	if e.Location.File == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Code, e.Message)
}

// Unwrap returns the underlying domain error
func (e CompilerError) Unwrap() error {
	return e.Cause
}

// NewCompilerError creates a new CompilerError
func NewCompilerError(phase, code, message string, location SourceLocation, severity Severity) CompilerError {
	return CompilerError{
		Phase:    phase,
		Code:     code,
		Message:  message,
		Location: location,
		Severity: severity,
	}
}

// WithContext adds context to the error
func (e CompilerError) WithContext(ctx ErrorContext) CompilerError {
	e.Context = ctx
	return e
}

// WithSuggestion adds a fix suggestion to the error
func (e CompilerError) WithSuggestion(suggestion FixSuggestion) CompilerError {
	e.Suggestion = &suggestion
	return e
}

// WithCause records the domain error behind the diagnostic
func (e CompilerError) WithCause(cause error) CompilerError {
	e.Cause = cause
	return e
}

// IsError returns true if the error is at Error or Fatal severity
func (e CompilerError) IsError() bool {
	return e.Severity == Error || e.Severity == Fatal
}

// IsWarning returns true if the error is at Warning severity
func (e CompilerError) IsWarning() bool {
	return e.Severity == Warning
}
