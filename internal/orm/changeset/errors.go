package changeset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Error collects the per-field errors of an invalid changeset
type Error struct {
	Fields map[string][]string `json:"fields"`
}

// NewError creates an empty Error
func NewError() *Error {
	return &Error{
		Fields: make(map[string][]string),
	}
}

// Add adds an error message for a field
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors returns true if there are any field errors
func (e *Error) HasErrors() bool {
	return len(e.Fields) > 0
}

// Count returns the total number of messages across all fields
func (e *Error) Count() int {
	count := 0
	for _, messages := range e.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface. Fields are listed alphabetically.
func (e *Error) Error() string {
	if !e.HasErrors() {
		return "invalid changeset"
	}

	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var messages []string
	for _, field := range fields {
		for _, msg := range e.Fields[field] {
			messages = append(messages, fmt.Sprintf("%s: %s", field, msg))
		}
	}

	if len(messages) == 1 {
		return "invalid changeset: " + messages[0]
	}
	return fmt.Sprintf("invalid changeset:\n  - %s", strings.Join(messages, "\n  - "))
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "invalid_changeset",
		Fields: e.Fields,
	})
}
