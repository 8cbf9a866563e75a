package commands

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiosum-dev/contexted/internal/cli/config"
)

// writeModule lays out files under a fresh module directory
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func shopModule(extra map[string]string) map[string]string {
	files := map[string]string{
		"go.mod": "module example.com/shop\n\ngo 1.22\n",
		"contexted.yml": `contexts:
  - example.com/shop/accounts
  - example.com/shop/billing
`,
		"accounts/accounts.go": "package accounts\n\nfunc Find(id int) string { return \"\" }\n",
		"accounts/users/users.go": `package users

// Register creates a user.
func Register(name string) error { return nil }
`,
		"billing/billing.go": "package billing\n\nfunc Charge() {}\n",
	}
	for name, content := range extra {
		files[name] = content
	}
	return files
}

func TestLintCommand_Clean(t *testing.T) {
	root := writeModule(t, shopModule(nil))

	out, _, err := run(t, "lint", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "No cross-context references (2 contexts)")
}

func TestLintCommand_Violation(t *testing.T) {
	root := writeModule(t, shopModule(map[string]string{
		"billing/billing.go": `package billing

import "example.com/shop/accounts"

func Charge() string { return accounts.Find(1) }
`,
	}))

	out, _, err := run(t, "lint", "--dir", root, "--json")
	require.ErrorIs(t, err, ErrReported)

	var result struct {
		Status string `json:"status"`
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "error", result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "E500", result.Errors[0].Code)
}

func TestLintCommand_InvalidConfig(t *testing.T) {
	root := writeModule(t, shopModule(map[string]string{
		"contexted.yml": "contexts:\n  - \"\"\n",
	}))

	out, _, err := run(t, "lint", "--dir", root)
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, out, "E530")
}

func TestDelegateCommand(t *testing.T) {
	root := writeModule(t, shopModule(nil))

	out, _, err := run(t, "delegate", "--dir", root,
		"--target", "example.com/shop/accounts",
		"--source", "example.com/shop/accounts/users")
	require.NoError(t, err)

	assert.Contains(t, out, "package accounts")
	assert.Contains(t, out, "// Register creates a user.\nfunc Register(name string) error {\n\treturn users.Register(name)\n}")
}

func TestDelegateCommand_WritesOutput(t *testing.T) {
	root := writeModule(t, shopModule(nil))
	output := filepath.Join(root, "accounts", "delegates_gen.go")

	_, _, err := run(t, "delegate", "--dir", root,
		"--target", "example.com/shop/accounts",
		"--source", "example.com/shop/accounts/users",
		"-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "func Register(name string) error")
}

func TestDelegateCommand_Duplicate(t *testing.T) {
	root := writeModule(t, shopModule(map[string]string{
		"accounts/admins/admins.go": "package admins\n\nfunc Register(name string) error { return nil }\n",
	}))

	_, errOut, err := run(t, "delegate", "--dir", root,
		"--target", "example.com/shop/accounts",
		"--source", "example.com/shop/accounts/users",
		"--source", "example.com/shop/accounts/admins")
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, errOut, "E511")
	assert.Contains(t, errOut, "Register")
}

func TestDescribeCommand(t *testing.T) {
	root := writeModule(t, shopModule(nil))

	out, _, err := run(t, "describe", filepath.Join(root, "accounts", "users"), "--dir", root, "--save")
	require.NoError(t, err)

	var described struct {
		ImportPath string `json:"import_path"`
		Funcs      []struct {
			Name string `json:"name"`
		} `json:"funcs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &described))
	assert.Equal(t, "example.com/shop/accounts/users", described.ImportPath)
	require.Len(t, described.Funcs, 1)
	assert.Equal(t, "Register", described.Funcs[0].Name)

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.ArtifactDir(), "example.com__shop__accounts__users.json"))
}

func TestBuildCommand(t *testing.T) {
	root := writeModule(t, shopModule(map[string]string{
		"contexted.yml": `contexts:
  - example.com/shop/accounts
  - example.com/shop/billing
delegates:
  - target: example.com/shop/accounts
    sources:
      - example.com/shop/accounts/users
`,
	}))

	out, _, err := run(t, "build", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "example.com/shop/accounts/users")
	assert.Contains(t, out, "accounts/"+config.DefaultDelegateOutput)

	data, err := os.ReadFile(filepath.Join(root, "accounts", config.DefaultDelegateOutput))
	require.NoError(t, err)
	assert.Contains(t, string(data), "return users.Register(name)")
}

func TestInitCommand(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":                  "module example.com/shop\n\ngo 1.22\n",
		"main.go":                 "package main\n\nfunc main() {}\n",
		"accounts/accounts.go":    "package accounts\n",
		"accounts/users/users.go": "package users\n",
		"billing/billing.go":      "package billing\n",
		"internal/db/db.go":       "package db\n",
	})

	_, _, err := run(t, "init", "--dir", root)
	require.NoError(t, err)

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/shop/accounts", "example.com/shop/billing"}, cfg.Contexts)
	assert.False(t, cfg.EnableRecompilation)

	_, _, err = run(t, "init", "--dir", root)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = run(t, "init", "--dir", root, "--force")
	assert.NoError(t, err)
}

const catalogSchema = `
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
    fields:
      - {name: id, type: int}
      - {name: name, type: string, required: true}
      - {name: subcategory_id, type: int, nullable: true}
    relationships:
      - {name: subcategory, type: belongs_to, target: Subcategory}
`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(path, []byte(catalogSchema), 0644))
	return path
}

func TestGenCrudCommand(t *testing.T) {
	schemaFile := writeSchema(t)

	out, _, err := run(t, "gen", "crud", "--schema", schemaFile, "--resource", "Item")
	require.NoError(t, err)

	assert.Contains(t, out, "package items")
	assert.Contains(t, out, "func ListItems(")
	assert.Contains(t, out, "func MustDeleteItem(")
}

func TestGenCrudCommand_Only(t *testing.T) {
	schemaFile := writeSchema(t)
	output := filepath.Join(t.TempDir(), "catalog", "items_gen.go")

	_, _, err := run(t, "gen", "crud", "--schema", schemaFile, "--resource", "Item",
		"--only", "list,get!", "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "func ListItems(")
	assert.Contains(t, string(data), "func MustGetItem(")
	assert.NotContains(t, string(data), "func CreateItem(")
}

func TestGenCrudCommand_InvalidOptions(t *testing.T) {
	schemaFile := writeSchema(t)

	_, errOut, err := run(t, "gen", "crud", "--schema", schemaFile, "--resource", "Item", "--only", "list,fetch")
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, errOut, "E520")

	_, errOut, err = run(t, "gen", "crud", "--schema", schemaFile, "--resource", "Item",
		"--only", "list", "--except", "get")
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, errOut, "E520")

	_, errOut, err = run(t, "gen", "crud", "--schema", schemaFile, "--resource", "Itme")
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, errOut, "E521")
	assert.Contains(t, errOut, "did you mean Item?")
}

func TestQueryCommand(t *testing.T) {
	schemaFile := writeSchema(t)

	out, _, err := run(t, "query", "--schema", schemaFile, "--resource", "Item",
		"--filter", `{"subcategory": {"name": "Lamps"}}`, "--dialect", "sqlite")
	require.NoError(t, err)

	var compiled struct {
		SQL  string        `json:"sql"`
		Args []interface{} `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &compiled))
	assert.Contains(t, compiled.SQL, "JOIN subcategories")
	assert.NotContains(t, compiled.SQL, "$1")
	assert.Equal(t, []interface{}{"Lamps"}, compiled.Args)
}

func TestQueryCommand_Count(t *testing.T) {
	schemaFile := writeSchema(t)

	out, _, err := run(t, "query", "--schema", schemaFile, "--resource", "Category", "--count", "subcategories")
	require.NoError(t, err)
	assert.Contains(t, out, "subcategories_count")

	_, errOut, err := run(t, "query", "--schema", schemaFile, "--resource", "Category", "--count", "items")
	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, errOut, "E531")
}

func TestQueryCommand_Exec(t *testing.T) {
	schemaFile := writeSchema(t)
	dbPath := filepath.Join(t.TempDir(), "shop.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
INSERT INTO categories (id, name) VALUES (1, 'Lighting'), (2, 'Furniture'), (3, 'Garden');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	root := writeModule(t, map[string]string{
		"go.mod":        "module example.com/shop\n\ngo 1.22\n",
		"contexted.yml": "contexts: []\ndatabase:\n  driver: sqlite3\n  url: " + dbPath + "\n",
	})

	out, _, err := run(t, "query", "--dir", root, "--exec", "--schema", schemaFile,
		"--resource", "Category", "--order", "name:desc", "--limit", "2")
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "Lighting", records[0]["name"])
	assert.Equal(t, "Garden", records[1]["name"])
}

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter(`{"id": 3, "subcategory": {"price": 2.5, "category_id": 12345678901, "name": null}}`)
	require.NoError(t, err)

	assert.Equal(t, int64(3), filter["id"])
	nested, ok := filter["subcategory"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2.5, nested["price"])
	assert.Equal(t, int64(12345678901), nested["category_id"])
	assert.Nil(t, nested["name"])

	filter, err = parseFilter("")
	require.NoError(t, err)
	assert.Empty(t, filter)

	_, err = parseFilter(`{"id": 1} {"id": 2}`)
	assert.Error(t, err)
	_, err = parseFilter(`[1]`)
	assert.Error(t, err)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "pgx", driverName("", 0))
	assert.Equal(t, "pgx", driverName("pgx", 0))
	assert.Equal(t, "postgres", driverName("postgres", 0))
	assert.Equal(t, "sqlite3", driverName("sqlite", 1))
	assert.Equal(t, "sqlite3", driverName("", 1))
}

func TestLintCommand_UnknownContextWarning(t *testing.T) {
	root := writeModule(t, shopModule(map[string]string{
		"contexted.yml": `contexts:
  - example.com/shop/accounts
  - example.com/shop/biling
`,
	}))

	out, _, err := run(t, "lint", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "warning[E532]")
	assert.Contains(t, out, "example.com/shop/biling does not match any package")
	assert.Contains(t, out, "did you mean example.com/shop/billing?")
	assert.Contains(t, out, "Finished with 1 warning(s)")
}
