// Package schema describes the relational resources the query builder and
// generators work against: named fields and the associations between them.
package schema

import (
	"fmt"
	"sort"

	"github.com/curiosum-dev/contexted/internal/util/strings"
)

// PrimitiveType represents the column types a field can carry
type PrimitiveType int

const (
	TypeString PrimitiveType = iota
	TypeText
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal
	TypeBool
	TypeTimestamp
	TypeDate
	TypeUUID
	TypeJSON
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "int", "integer", "id":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "uuid":
		return TypeUUID, nil
	case "json", "map":
		return TypeJSON, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// TypeSpec is a field type with its nullability
type TypeSpec struct {
	BaseType PrimitiveType
	Nullable bool
}

// String returns a string representation of the TypeSpec
func (t *TypeSpec) String() string {
	if t.Nullable {
		return t.BaseType.String() + "?"
	}
	return t.BaseType.String() + "!"
}

// Field represents a column of a resource
type Field struct {
	Name     string
	Type     *TypeSpec
	Required bool // must be present in a valid changeset
}

// RelationType represents the type of relationship
type RelationType int

const (
	RelationshipBelongsTo RelationType = iota
	RelationshipHasMany
	RelationshipHasOne
)

// String returns the string representation of the relationship type
func (r RelationType) String() string {
	switch r {
	case RelationshipBelongsTo:
		return "belongs_to"
	case RelationshipHasMany:
		return "has_many"
	case RelationshipHasOne:
		return "has_one"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "belongs_to":
		return RelationshipBelongsTo, nil
	case "has_many":
		return RelationshipHasMany, nil
	case "has_one":
		return RelationshipHasOne, nil
	default:
		return 0, fmt.Errorf("unknown relationship type: %s", s)
	}
}

// Relationship is a named association from one resource to another.
//
// For belongs_to the foreign key lives on the owning resource; for has_many
// and has_one it lives on the target.
type Relationship struct {
	Type           RelationType
	TargetResource string
	FieldName      string
	ForeignKey     string
}

// ResourceSchema represents the complete schema for a resource
type ResourceSchema struct {
	Name          string
	Documentation string
	TableName     string
	PrimaryKey    string

	Fields        map[string]*Field
	Relationships map[string]*Relationship
}

// NewResourceSchema creates a new ResourceSchema
func NewResourceSchema(name string) *ResourceSchema {
	return &ResourceSchema{
		Name:          name,
		TableName:     strings.TableName(name),
		PrimaryKey:    "id",
		Fields:        make(map[string]*Field),
		Relationships: make(map[string]*Relationship),
	}
}

// AddField adds a field to the resource
func (r *ResourceSchema) AddField(name string, base PrimitiveType, nullable bool) *Field {
	field := &Field{
		Name: name,
		Type: &TypeSpec{BaseType: base, Nullable: nullable},
	}
	r.Fields[name] = field
	return field
}

// AddRelationship adds an association to the resource, filling in the
// conventional foreign key when none is given.
func (r *ResourceSchema) AddRelationship(rel *Relationship) {
	if rel.ForeignKey == "" {
		switch rel.Type {
		case RelationshipBelongsTo:
			rel.ForeignKey = rel.FieldName + "_id"
		default:
			rel.ForeignKey = strings.ToSnakeCase(r.Name) + "_id"
		}
	}
	r.Relationships[rel.FieldName] = rel
}

// HasField returns true if the resource has a field with the given name
func (r *ResourceSchema) HasField(name string) bool {
	_, exists := r.Fields[name]
	return exists
}

// HasRelationship returns true if the resource has a relationship with the given name
func (r *ResourceSchema) HasRelationship(name string) bool {
	_, exists := r.Relationships[name]
	return exists
}

// FieldNames returns the field names in sorted order
func (r *ResourceSchema) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationshipNames returns the association names in sorted order
func (r *ResourceSchema) RelationshipNames() []string {
	names := make([]string, 0, len(r.Relationships))
	for name := range r.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
