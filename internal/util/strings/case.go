// Package strings holds the naming helpers shared by the generators.
package strings

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// ToSnakeCase converts CamelCase to snake_case
// Handles acronyms properly (HTTPRequest -> http_request)
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					result.WriteRune('_')
				} else if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ToPascalCase converts snake_case or kebab-case to PascalCase
func ToPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	var result strings.Builder
	for _, part := range parts {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		result.WriteString(string(runes))
	}
	return result.String()
}

// Pluralize returns the plural form of a word ("category" -> "categories")
func Pluralize(word string) string {
	return inflect.Pluralize(word)
}

// Singularize returns the singular form of a word
func Singularize(word string) string {
	return inflect.Singularize(word)
}

// TableName derives the table name for a resource ("SubCategory" -> "sub_categories")
func TableName(resource string) string {
	return Pluralize(ToSnakeCase(resource))
}
