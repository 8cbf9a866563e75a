// Package changeset tracks permitted, type-cast attribute changes against a
// record together with the validation errors they produced.
package changeset

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// Message constants used for built-in validations
const (
	MsgRequired = "can't be blank"
	MsgInvalid  = "is invalid"
)

// Changeset is a set of changes to apply to a record
type Changeset struct {
	// Resource is optional; when set, Cast coerces values to field types
	Resource *schema.ResourceSchema

	Data    map[string]interface{}
	Changes map[string]interface{}
	Errors  *Error
}

// New starts an empty changeset for record
func New(resource *schema.ResourceSchema, record map[string]interface{}) *Changeset {
	if record == nil {
		record = make(map[string]interface{})
	}
	return &Changeset{
		Resource: resource,
		Data:     record,
		Changes:  make(map[string]interface{}),
		Errors:   NewError(),
	}
}

// Cast builds a changeset from attrs, keeping only the permitted keys whose
// value differs from the record's current value.
func Cast(record, attrs map[string]interface{}, permitted []string) *Changeset {
	return New(nil, record).Cast(attrs, permitted)
}

// CastResource is Cast with values coerced to the resource's field types.
// When permitted is empty every field except the primary key is permitted.
func CastResource(resource *schema.ResourceSchema, record, attrs map[string]interface{}, permitted []string) *Changeset {
	if len(permitted) == 0 {
		for _, name := range resource.FieldNames() {
			if name != resource.PrimaryKey {
				permitted = append(permitted, name)
			}
		}
	}
	return New(resource, record).Cast(attrs, permitted)
}

// Cast applies attrs to the changeset
func (c *Changeset) Cast(attrs map[string]interface{}, permitted []string) *Changeset {
	for _, key := range permitted {
		value, ok := attrs[key]
		if !ok {
			continue
		}

		if c.Resource != nil {
			field, known := c.Resource.Fields[key]
			if !known {
				c.AddError(key, "is not a field of "+c.Resource.Name)
				continue
			}
			casted, err := castValue(field, value)
			if err != nil {
				c.AddError(key, MsgInvalid)
				continue
			}
			value = casted
		}

		if current, exists := c.Data[key]; exists && reflect.DeepEqual(current, value) {
			delete(c.Changes, key)
			continue
		}
		c.Changes[key] = value
	}
	return c
}

// PutChange sets a change without casting
func (c *Changeset) PutChange(field string, value interface{}) *Changeset {
	c.Changes[field] = value
	return c
}

// GetChange returns the pending change for field
func (c *Changeset) GetChange(field string) (interface{}, bool) {
	v, ok := c.Changes[field]
	return v, ok
}

// GetField returns the change for field, falling back to the record value
func (c *Changeset) GetField(field string) (interface{}, bool) {
	if v, ok := c.Changes[field]; ok {
		return v, true
	}
	v, ok := c.Data[field]
	return v, ok
}

// AddError records a validation error
func (c *Changeset) AddError(field, message string) *Changeset {
	c.Errors.Add(field, message)
	return c
}

// ValidateRequired checks that every field has a non-blank value after the
// changes are applied
func (c *Changeset) ValidateRequired(fields ...string) *Changeset {
	for _, field := range fields {
		if _, failed := c.Errors.Fields[field]; failed {
			continue
		}
		value, _ := c.GetField(field)
		if isBlank(value) {
			c.AddError(field, MsgRequired)
		}
	}
	return c
}

// ValidateSchema runs ValidateRequired for every field the resource marks
// as required
func (c *Changeset) ValidateSchema() *Changeset {
	if c.Resource == nil {
		return c
	}
	var required []string
	for _, name := range c.Resource.FieldNames() {
		if c.Resource.Fields[name].Required {
			required = append(required, name)
		}
	}
	return c.ValidateRequired(required...)
}

// ValidateChange runs fn on the pending change for field, if any
func (c *Changeset) ValidateChange(field string, fn func(value interface{}) error) *Changeset {
	value, ok := c.Changes[field]
	if !ok {
		return c
	}
	if err := fn(value); err != nil {
		c.AddError(field, err.Error())
	}
	return c
}

// Valid reports whether no errors were recorded
func (c *Changeset) Valid() bool {
	return !c.Errors.HasErrors()
}

// Err returns the changeset errors, or nil when valid
func (c *Changeset) Err() error {
	if c.Valid() {
		return nil
	}
	return c.Errors
}

// Apply returns a copy of the record with the changes applied
func (c *Changeset) Apply() map[string]interface{} {
	result := make(map[string]interface{}, len(c.Data)+len(c.Changes))
	for k, v := range c.Data {
		result[k] = v
	}
	for k, v := range c.Changes {
		result[k] = v
	}
	return result
}

// ChangedFields returns the names of changed fields, sorted
func (c *Changeset) ChangedFields() []string {
	names := make([]string, 0, len(c.Changes))
	for name := range c.Changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a short description for logs
func (c *Changeset) String() string {
	return fmt.Sprintf("changeset<changes: %v, valid: %t>", c.ChangedFields(), c.Valid())
}

func isBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		for _, r := range v {
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				return false
			}
		}
		return true
	default:
		return false
	}
}
