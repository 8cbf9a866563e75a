package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateResource is returned when a resource is registered twice
	ErrDuplicateResource = errors.New("resource already registered")

	// ErrUnknownResource is returned when a relationship targets a missing resource
	ErrUnknownResource = errors.New("unknown resource")

	// ErrMissingForeignKey is returned when a relationship's foreign key is not a field
	ErrMissingForeignKey = errors.New("foreign key is not a field")

	// ErrInvalidIdentifier is returned for names that cannot be used as SQL identifiers
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ValidationError represents a schema validation error with context
type ValidationError struct {
	Resource string
	Field    string
	Message  string
	Hint     string
	Err      error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Resource != "" {
		b.WriteString(e.Resource)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Unwrap returns the sentinel behind the validation error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// validateStructural validates a single resource without cross-resource checks
func validateStructural(schema *ResourceSchema) error {
	if !IsValidIdentifier(schema.TableName) {
		return &ValidationError{
			Resource: schema.Name,
			Message:  fmt.Sprintf("table name %q is not a valid identifier", schema.TableName),
			Err:      ErrInvalidIdentifier,
		}
	}

	for _, name := range schema.FieldNames() {
		if !IsValidIdentifier(name) {
			return &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "field name is not a valid identifier",
				Err:      ErrInvalidIdentifier,
			}
		}
	}

	for _, name := range schema.RelationshipNames() {
		if !IsValidIdentifier(name) {
			return &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "association name is not a valid identifier",
				Err:      ErrInvalidIdentifier,
			}
		}
		if schema.HasField(name) {
			return &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "association name collides with a field",
				Hint:     "rename the association or the field",
				Err:      ErrInvalidIdentifier,
			}
		}
	}

	return nil
}

// validateRelationships checks targets and foreign keys of a resource's associations
func validateRelationships(schema *ResourceSchema, all map[string]*ResourceSchema) error {
	for _, name := range schema.RelationshipNames() {
		rel := schema.Relationships[name]

		target, ok := all[rel.TargetResource]
		if !ok {
			return &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  fmt.Sprintf("target resource %s is not registered", rel.TargetResource),
				Err:      ErrUnknownResource,
			}
		}

		owner := schema
		if rel.Type != RelationshipBelongsTo {
			owner = target
		}
		if len(owner.Fields) > 0 && !owner.HasField(rel.ForeignKey) {
			return &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  fmt.Sprintf("foreign key %s is not a field of %s", rel.ForeignKey, owner.Name),
				Hint:     "declare the column or set foreign_key explicitly",
				Err:      ErrMissingForeignKey,
			}
		}
	}
	return nil
}

// IsValidIdentifier checks if a string is a valid SQL identifier
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, char := range s {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(i > 0 && char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}
