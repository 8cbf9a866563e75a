package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPackageName(t *testing.T) {
	tests := map[string]string{
		"fmt":                           "fmt",
		"example.com/shop/billing":      "billing",
		"github.com/jackc/pgx/v5":       "pgx",
		"gopkg.in/yaml.v3":              "yaml",
		"github.com/mattn/go-sqlite3":   "sqlite3",
		"github.com/go-openapi/inflect": "inflect",
	}
	for path, want := range tests {
		assert.Equal(t, want, DefaultPackageName(path), path)
	}
}
