package errors

import (
	"encoding/json"
)

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status   string          `json:"status"`
	Errors   []CompilerError `json:"errors"`
	Warnings []CompilerError `json:"warnings"`
	Summary  Summary         `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// NewJSONOutput splits diagnostics into errors and warnings
func NewJSONOutput(diagnostics []CompilerError) JSONOutput {
	output := JSONOutput{
		Status:   "success",
		Errors:   make([]CompilerError, 0),
		Warnings: make([]CompilerError, 0),
	}

	for _, d := range diagnostics {
		if d.IsError() {
			output.Errors = append(output.Errors, d)
		} else if d.IsWarning() {
			output.Warnings = append(output.Warnings, d)
		}
	}

	if len(output.Errors) > 0 {
		output.Status = "error"
	} else if len(output.Warnings) > 0 {
		output.Status = "warning"
	}

	output.Summary = Summary{
		ErrorCount:   len(output.Errors),
		WarningCount: len(output.Warnings),
		TotalCount:   len(diagnostics),
	}
	return output
}

// FormatAsJSON formats a CompilerError as indented JSON
func (e CompilerError) FormatAsJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatErrorsAsJSON formats multiple diagnostics as indented JSON
func FormatErrorsAsJSON(diagnostics []CompilerError) (string, error) {
	data, err := json.MarshalIndent(NewJSONOutput(diagnostics), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
