package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a schema file
type File struct {
	Resources []ResourceDef `yaml:"resources"`
}

// ResourceDef declares one resource in a schema file
type ResourceDef struct {
	Name          string            `yaml:"name"`
	Doc           string            `yaml:"doc"`
	Table         string            `yaml:"table"`
	PrimaryKey    string            `yaml:"primary_key"`
	Fields        []FieldDef        `yaml:"fields"`
	Relationships []RelationshipDef `yaml:"relationships"`
}

// FieldDef declares one field
type FieldDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	Required bool   `yaml:"required"`
}

// RelationshipDef declares one association
type RelationshipDef struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Target     string `yaml:"target"`
	ForeignKey string `yaml:"foreign_key"`
}

// LoadFile reads a YAML schema file into a validated registry
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated registry from YAML schema data
func Parse(data []byte) (*Registry, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	registry := NewRegistry()
	for _, def := range file.Resources {
		resource, err := def.build()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(resource); err != nil {
			return nil, err
		}
	}

	if err := registry.ValidateAll(); err != nil {
		return nil, err
	}
	return registry, nil
}

func (def ResourceDef) build() (*ResourceSchema, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("resource without a name")
	}

	resource := NewResourceSchema(def.Name)
	resource.Documentation = def.Doc
	if def.Table != "" {
		resource.TableName = def.Table
	}
	if def.PrimaryKey != "" {
		resource.PrimaryKey = def.PrimaryKey
	}

	for _, f := range def.Fields {
		base, err := ParsePrimitiveType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		field := resource.AddField(f.Name, base, f.Nullable)
		field.Required = f.Required
	}

	for _, r := range def.Relationships {
		relType, err := ParseRelationType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, r.Name, err)
		}
		resource.AddRelationship(&Relationship{
			Type:           relType,
			TargetResource: r.Target,
			FieldName:      r.Name,
			ForeignKey:     r.ForeignKey,
		})
	}

	return resource, nil
}
