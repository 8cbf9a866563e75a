package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"get!", "get", 1},
		{"kategorie", "Kategorie", 1},
		{"größe", "grosse", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
	}
}

func TestSuggest(t *testing.T) {
	resources := []string{"Category", "Item", "Subcategory", "Brand"}

	assert.Equal(t, []string{"Item"}, Suggest("Itme", resources))
	assert.Equal(t, []string{"Category", "Subcategory"}, Suggest("category", resources))
	assert.Empty(t, Suggest("Warehouse", resources))

	ops := []string{"list", "get", "get!", "create", "create!", "delete", "delete!"}
	assert.Equal(t, []string{"get", "get!", "list"}, Suggest("gt", ops))
}

func TestDidYouMean(t *testing.T) {
	assert.Equal(t, "did you mean Item?", DidYouMean("Itme", []string{"Item", "Brand"}))
	assert.Equal(t, "", DidYouMean("Warehouse", []string{"Item", "Brand"}))
}

func TestTable(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	table := NewTable(&buf, "ACTION", "PATH")
	table.AddRow("described", "example.com/shop/accounts/users")
	table.AddRow("wrote", "accounts/delegates_gen.go", "ignored")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"ACTION     PATH",
		"─────────  ───────────────────────────────",
		"described  example.com/shop/accounts/users",
		"wrote      accounts/delegates_gen.go",
	}, lines)
	assert.Equal(t, 2, table.Len())
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, "A", "B").Render()
	assert.Empty(t, buf.String())
}
