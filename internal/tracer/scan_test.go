package tracer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var shopModule = map[string]string{
	"go.mod": "module example.com/shop\n\ngo 1.23\n",
	"accounts/accounts.go": `package accounts

import (
	"fmt"

	bill "example.com/shop/billing"
)

// Register creates an account
func Register(name string) string {
	return fmt.Sprint(name, bill.Currency)
}
`,
	"accounts/users/users.go": `package users

import "example.com/shop/billing/invoices"

func Owe() int {
	invoices := []int{1}
	return len(invoices)
}

func Pay() int {
	return invoices.Total(2)
}
`,
	"billing/billing.go": `package billing

const Currency = "EUR"
`,
	"billing/invoices/invoices.go": `package invoices

func Total(n int) int { return n }
`,
	"web/web.go": `package web

import (
	. "example.com/shop/accounts"
	_ "example.com/shop/billing"
)

func helper() string { return "x" }

func Handle() string {
	return Register(helper())
}
`,
	"vendor/example.com/x/x.go":  "package x\n",
	"testdata/broken.go":         "not go",
	".hidden/h.go":               "package h\n",
	"build/shop/contexted/a.go":  "package contexted\n",
	"tools/go.mod":               "module example.com/shop/tools\n",
	"tools/tools.go":             "package tools\n",
}

func collect(t *testing.T, root string, skip []string) []Reference {
	t.Helper()

	scanner, err := NewScanner(root, skip, nil)
	require.NoError(t, err)

	var refs []Reference
	err = scanner.Scan(context.Background(), func(ref Reference) error {
		refs = append(refs, ref)
		return nil
	})
	require.NoError(t, err)
	return refs
}

func TestScanner_Packages(t *testing.T) {
	root := writeModule(t, shopModule)

	scanner, err := NewScanner(root, []string{"build/shop/contexted"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", scanner.ModulePath())

	packages, err := scanner.Packages()
	require.NoError(t, err)

	var paths []string
	for _, p := range packages {
		paths = append(paths, p.ImportPath)
	}
	assert.Equal(t, []string{
		"example.com/shop/accounts",
		"example.com/shop/accounts/users",
		"example.com/shop/billing",
		"example.com/shop/billing/invoices",
		"example.com/shop/web",
	}, paths)
}

func TestScanner_References(t *testing.T) {
	root := writeModule(t, shopModule)
	refs := collect(t, root, []string{"build/shop/contexted"})

	type key struct {
		Kind Kind
		From string
		To   string
		Name string
	}
	var got []key
	for _, r := range refs {
		got = append(got, key{r.Kind, r.From, r.To, r.Name})
	}

	assert.Equal(t, []key{
		{KindImport, "example.com/shop/accounts", "fmt", ""},
		{KindAlias, "example.com/shop/accounts", "example.com/shop/billing", ""},
		{KindRemoteCall, "example.com/shop/accounts", "fmt", "Sprint"},
		{KindRemoteRef, "example.com/shop/accounts", "example.com/shop/billing", "Currency"},
		{KindImport, "example.com/shop/accounts/users", "example.com/shop/billing/invoices", ""},
		// the shadowing local variable in Owe is not a reference
		{KindRemoteCall, "example.com/shop/accounts/users", "example.com/shop/billing/invoices", "Total"},
		{KindImport, "example.com/shop/web", "example.com/shop/accounts", ""},
		{KindImport, "example.com/shop/web", "example.com/shop/billing", ""},
		// helper is declared locally, Register comes through the dot import
		{KindImportedCall, "example.com/shop/web", "example.com/shop/accounts", "Register"},
	}, got)
}

func TestScanner_BuildConstraints(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":               "module example.com/shop\n\ngo 1.23\n",
		"accounts/accounts.go": "package accounts\n\nfunc Ping() {}\n",
		"billing/billing.go":   "package billing\n\nconst Currency = \"EUR\"\n",
		"billing/gen.go": "//go:build ignore\n\npackage main\n\n" +
			"import \"example.com/shop/accounts\"\n\nfunc main() { accounts.Ping() }\n",
	})

	scanner, err := NewScanner(root, nil, nil)
	require.NoError(t, err)
	packages, err := scanner.Packages()
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "example.com/shop/billing", packages[1].ImportPath)
	assert.Equal(t, []string{filepath.Join(root, "billing", "billing.go")}, packages[1].Files)

	assert.Empty(t, collect(t, root, nil))
}

func TestScanner_Positions(t *testing.T) {
	root := writeModule(t, shopModule)
	refs := collect(t, root, nil)

	for _, r := range refs {
		if r.Kind == KindRemoteCall && r.Name == "Total" {
			assert.Equal(t, "accounts/users/users.go", r.File)
			assert.Equal(t, 11, r.Line)
			assert.Equal(t, 9, r.Column)
			return
		}
	}
	t.Fatal("remote call to invoices.Total not reported")
}

func TestRun_StopsAtFirstViolation(t *testing.T) {
	root := writeModule(t, shopModule)

	scanner, err := NewScanner(root, nil, nil)
	require.NoError(t, err)

	tr := New([]string{"example.com/shop/accounts", "example.com/shop/billing"}, nil)
	err = Run(context.Background(), scanner, tr)

	var violation *ViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, KindAlias, violation.Ref.Kind)
	assert.Equal(t, "accounts/accounts.go", violation.Ref.File)
	assert.Equal(t, "example.com/shop/accounts", violation.FromContext)
	assert.Equal(t, "example.com/shop/billing", violation.ToContext)
}

func TestRun_ExcludedPaths(t *testing.T) {
	root := writeModule(t, shopModule)

	scanner, err := NewScanner(root, nil, nil)
	require.NoError(t, err)

	tr := New([]string{"example.com/shop/accounts", "example.com/shop/billing"}, []string{"accounts/"})
	assert.NoError(t, Run(context.Background(), scanner, tr))
}

func TestRun_Cancelled(t *testing.T) {
	root := writeModule(t, shopModule)

	scanner, err := NewScanner(root, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Run(ctx, scanner, New(nil, nil)), context.Canceled)
}

func TestScanner_ParseError(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":     "module example.com/bad\n",
		"pkg/bad.go": "package pkg\nfunc {",
	})

	scanner, err := NewScanner(root, nil, nil)
	require.NoError(t, err)

	err = scanner.Scan(context.Background(), func(Reference) error { return nil })
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "pkg/bad.go", parseErr.File)
}

func TestNewScanner_MissingGoMod(t *testing.T) {
	_, err := NewScanner(t.TempDir(), nil, nil)
	assert.Error(t, err)
}
