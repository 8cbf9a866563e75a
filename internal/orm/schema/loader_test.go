package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
resources:
  - name: Category
    fields:
      - {name: id, type: int}
      - {name: name, type: string, required: true}
    relationships:
      - {name: subcategories, type: has_many, target: Subcategory}
  - name: Subcategory
    fields:
      - {name: id, type: int}
      - {name: name, type: string}
      - {name: category_id, type: int, nullable: true}
    relationships:
      - {name: category, type: belongs_to, target: Category}
      - {name: items, type: has_many, target: Item}
  - name: Item
    doc: Something for sale.
    fields:
      - {name: id, type: int}
      - {name: name, type: string, required: true}
      - {name: price, type: decimal, nullable: true}
      - {name: subcategory_id, type: int, nullable: true}
    relationships:
      - {name: subcategory, type: belongs_to, target: Subcategory}
`

func TestParse(t *testing.T) {
	registry, err := Parse([]byte(catalogYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"Category", "Item", "Subcategory"}, registry.List())

	item, ok := registry.Get("Item")
	require.True(t, ok)
	assert.Equal(t, "items", item.TableName)
	assert.Equal(t, "id", item.PrimaryKey)
	assert.Equal(t, "Something for sale.", item.Documentation)
	assert.True(t, item.Fields["name"].Required)
	assert.True(t, item.Fields["price"].Type.Nullable)
	assert.Equal(t, TypeDecimal, item.Fields["price"].Type.BaseType)

	rel := item.Relationships["subcategory"]
	require.NotNil(t, rel)
	assert.Equal(t, RelationshipBelongsTo, rel.Type)
	assert.Equal(t, "subcategory_id", rel.ForeignKey)

	category, _ := registry.Get("Category")
	assert.Equal(t, "categories", category.TableName)
	assert.Equal(t, "category_id", category.Relationships["subcategories"].ForeignKey)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "unknown target",
			yaml: `
resources:
  - name: Item
    fields: [{name: id, type: int}, {name: owner_id, type: int}]
    relationships: [{name: owner, type: belongs_to, target: User}]
`,
			wantErr: ErrUnknownResource,
		},
		{
			name: "missing foreign key",
			yaml: `
resources:
  - name: User
    fields: [{name: id, type: int}]
  - name: Item
    fields: [{name: id, type: int}]
    relationships: [{name: owner, type: belongs_to, target: User}]
`,
			wantErr: ErrMissingForeignKey,
		},
		{
			name: "duplicate resource",
			yaml: `
resources:
  - name: Item
  - name: Item
`,
			wantErr: ErrDuplicateResource,
		},
		{
			name: "bad field name",
			yaml: `
resources:
  - name: Item
    fields: [{name: "drop table", type: int}]
`,
			wantErr: ErrInvalidIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseUnknownTypes(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  - name: Item
    fields: [{name: id, type: money}]
`))
	assert.ErrorContains(t, err, "unknown primitive type: money")

	_, err = Parse([]byte(`
resources:
  - name: Item
    relationships: [{name: x, type: many_to_many, target: Item}]
`))
	assert.ErrorContains(t, err, "unknown relationship type: many_to_many")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))

	registry, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, registry.Count())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestRegistryIsolation(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewResourceSchema("Post")))

	all := registry.All()
	delete(all, "Post")

	_, ok := registry.Get("Post")
	assert.True(t, ok, "All must return a copy")
}
