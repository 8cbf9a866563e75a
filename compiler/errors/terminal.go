package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	boldColor   = color.New(color.Bold)
	cyanColor   = color.New(color.FgCyan)
	helpColor   = color.New(color.FgCyan, color.Bold)
	blueColor   = color.New(color.FgBlue)
	grayColor   = color.New(color.FgHiBlack)
	redColor    = color.New(color.FgRed)
	yellowColor = color.New(color.FgYellow)
)

// FormatForTerminal formats a CompilerError for terminal output. Colors
// follow color.NoColor, so output is plain when stdout is not a terminal.
func (e CompilerError) FormatForTerminal() string {
	var sb strings.Builder

	header := severityColor(e.Severity).Add(color.Bold)
	sb.WriteString(fmt.Sprintf("%s: %s\n",
		header.Sprintf("%s[%s]", e.Severity, e.Code),
		e.Message))

	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  %s %s\n", cyanColor.Sprint("-->"), e.Location))
	}

	if len(e.Context.SourceLines) > 0 {
		sb.WriteString(formatSourceContext(e.Context))
	}

	if e.Suggestion != nil {
		sb.WriteString(formatSuggestion(*e.Suggestion))
	}

	return sb.String()
}

func formatSourceContext(ctx ErrorContext) string {
	var sb strings.Builder
	gutter := blueColor.Sprint("|")

	sb.WriteString(fmt.Sprintf("     %s\n", gutter))
	for i, line := range ctx.SourceLines {
		lineNum := ctx.FirstLine + i
		if i != ctx.Highlight.Line {
			sb.WriteString(fmt.Sprintf("%s %s %s\n", grayColor.Sprintf("%4d", lineNum), gutter, line))
			continue
		}

		sb.WriteString(fmt.Sprintf("%s %s %s\n", blueColor.Sprintf("%4d", lineNum), gutter, line))

		width := ctx.Highlight.End - ctx.Highlight.Start
		if width <= 0 {
			width = 1
		}
		sb.WriteString(fmt.Sprintf("     %s %s%s\n",
			gutter,
			strings.Repeat(" ", ctx.Highlight.Start),
			redColor.Sprint(strings.Repeat("^", width))))
	}
	sb.WriteString(fmt.Sprintf("     %s\n", gutter))

	return sb.String()
}

func formatSuggestion(suggestion FixSuggestion) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n%s %s\n", helpColor.Sprint("Help:"), suggestion.Description))
	if suggestion.NewCode != "" {
		for _, line := range strings.Split(suggestion.NewCode, "\n") {
			sb.WriteString(fmt.Sprintf("    %s\n", line))
		}
	}
	return sb.String()
}

func severityColor(severity Severity) *color.Color {
	switch severity {
	case Info:
		return color.New(color.FgBlue)
	case Warning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// FormatSummary formats a summary line for a set of diagnostics
func FormatSummary(errorCount, warningCount int) string {
	var parts []string
	if errorCount > 0 {
		parts = append(parts, redColor.Sprintf("%d error(s)", errorCount))
	}
	if warningCount > 0 {
		parts = append(parts, yellowColor.Sprintf("%d warning(s)", warningCount))
	}

	if len(parts) == 0 {
		return blueColor.Sprint("No errors or warnings") + "\n"
	}
	verdict := "Build failed with %s"
	if errorCount == 0 {
		verdict = "Finished with %s"
	}
	return "\n" + boldColor.Sprintf(verdict, strings.Join(parts, " and ")) + "\n"
}
