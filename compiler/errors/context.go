package errors

import (
	"os"
	"strings"
)

// contextRadius is the number of lines shown on each side of the error line
const contextRadius = 2

// EnrichError adds source context to an error
func EnrichError(err CompilerError, sourceContent string) CompilerError {
	return err.WithContext(extractSourceContext(err.Location, sourceContent))
}

// EnrichErrorFromFile reads the source file and enriches the error. The
// error is returned unchanged when the file cannot be read.
func EnrichErrorFromFile(err CompilerError) CompilerError {
	if err.Location.File == "" || len(err.Context.SourceLines) > 0 {
		return err
	}
	content, readErr := os.ReadFile(err.Location.File)
	if readErr != nil {
		return err
	}
	return EnrichError(err, string(content))
}

func extractSourceContext(location SourceLocation, sourceContent string) ErrorContext {
	lines := strings.Split(sourceContent, "\n")

	if location.Line < 1 || location.Line > len(lines) {
		return ErrorContext{}
	}

	errorLineIndex := location.Line - 1
	startLine := max(0, errorLineIndex-contextRadius)
	endLine := min(len(lines), errorLineIndex+contextRadius+1)

	contextLines := make([]string, 0, endLine-startLine)
	for i := startLine; i < endLine; i++ {
		contextLines = append(contextLines, strings.TrimRight(lines[i], "\r"))
	}

	start := max(0, location.Column-1)
	end := start + location.Length
	if location.Length == 0 {
		end = start + 1
	}

	return ErrorContext{
		SourceLines: contextLines,
		FirstLine:   startLine + 1,
		Highlight: Highlight{
			Line:  errorLineIndex - startLine,
			Start: start,
			End:   end,
		},
	}
}
