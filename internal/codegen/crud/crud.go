// Package crud generates the standard data-access functions of a resource
// as Go source over the repository layer.
package crud

import (
	"errors"
	"fmt"
	"go/token"
	"path"
	"strings"

	"github.com/curiosum-dev/contexted/internal/codegen"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

// DefaultRepoImport is the repository package generated code calls into
const DefaultRepoImport = "github.com/curiosum-dev/contexted/internal/orm/repo"

var (
	// ErrUnknownFunction is returned when Only or Except names an unknown operation
	ErrUnknownFunction = errors.New("unknown CRUD function")

	// ErrConflictingOptions is returned when both Only and Except are given
	ErrConflictingOptions = errors.New("only and except cannot be combined")

	// ErrNoResource is returned when no resource schema is given
	ErrNoResource = errors.New("resource schema is required")

	// ErrInvalidOption is returned for a package or function name that is
	// not a Go identifier
	ErrInvalidOption = errors.New("invalid generator option")
)

// Operation keys, in the order functions are emitted
const (
	OpList       = "list"
	OpGet        = "get"
	OpMustGet    = "get!"
	OpCreate     = "create"
	OpMustCreate = "create!"
	OpUpdate     = "update"
	OpMustUpdate = "update!"
	OpDelete     = "delete"
	OpMustDelete = "delete!"
	OpChange     = "change"
)

// Operations lists every operation key
var Operations = []string{
	OpList, OpGet, OpMustGet, OpCreate, OpMustCreate,
	OpUpdate, OpMustUpdate, OpDelete, OpMustDelete, OpChange,
}

// Options configures generation for one resource
type Options struct {
	// Resource overrides the schema's resource name used in function names
	Resource string
	// Plural is the plural used by the list function, inflected when empty
	Plural string
	// Package of the generated file, the plural in lower case when empty
	Package string
	// RepoImport is the import path of the repository package. The query
	// and changeset packages are expected next to it.
	RepoImport string

	Only   []string
	Except []string

	// ChangesetFunc names a function in the generated package with the
	// signature func(record, attrs map[string]interface{}) *changeset.Changeset
	// used in place of the schema-driven cast
	ChangesetFunc string
}

// Selected resolves Only and Except to the operations to emit, in emission order
func Selected(only, except []string) ([]string, error) {
	if len(only) > 0 && len(except) > 0 {
		return nil, ErrConflictingOptions
	}
	for _, key := range append(append([]string(nil), only...), except...) {
		if !isOperation(key) {
			return nil, fmt.Errorf("%w: %q (expected one of %s)",
				ErrUnknownFunction, key, strings.Join(Operations, ", "))
		}
	}

	selected := make([]string, 0, len(Operations))
	for _, op := range Operations {
		switch {
		case len(only) > 0 && !contains(only, op):
		case contains(except, op):
		default:
			selected = append(selected, op)
		}
	}
	return selected, nil
}

func isOperation(key string) bool {
	return contains(Operations, key)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// names holds the identifiers derived from the resource
type names struct {
	resource string // schema name, passed to the repository
	singular string // Item
	plural   string // Items
	noun     string // item
	nouns    string // items
	constant string // ItemResource
	helper   string // itemChangeset
}

func deriveNames(resource *schema.ResourceSchema, opts Options) names {
	name := resource.Name
	if opts.Resource != "" {
		name = opts.Resource
	}
	snake := ustrings.ToSnakeCase(name)

	plural := opts.Plural
	if plural == "" {
		plural = ustrings.Pluralize(snake)
	}
	plural = ustrings.ToSnakeCase(plural)

	singular := ustrings.ToPascalCase(snake)
	return names{
		resource: resource.Name,
		singular: singular,
		plural:   ustrings.ToPascalCase(plural),
		noun:     strings.ReplaceAll(snake, "_", " "),
		nouns:    strings.ReplaceAll(plural, "_", " "),
		constant: singular + "Resource",
		helper:   strings.ToLower(singular[:1]) + singular[1:] + "Changeset",
	}
}

// Generate emits the selected CRUD functions for resource. Every function
// takes the repository explicitly and composes repository calls only.
func Generate(resource *schema.ResourceSchema, opts Options) ([]byte, error) {
	if resource == nil || resource.Name == "" {
		return nil, ErrNoResource
	}
	ops, err := Selected(opts.Only, opts.Except)
	if err != nil {
		return nil, err
	}

	n := deriveNames(resource, opts)
	pkg := opts.Package
	if pkg == "" {
		pkg = strings.ToLower(n.plural)
	}
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("%w: package %q", ErrInvalidOption, pkg)
	}
	if opts.ChangesetFunc != "" && !token.IsIdentifier(opts.ChangesetFunc) {
		return nil, fmt.Errorf("%w: changeset function %q", ErrInvalidOption, opts.ChangesetFunc)
	}
	repoImport := opts.RepoImport
	if repoImport == "" {
		repoImport = DefaultRepoImport
	}
	base := path.Dir(repoImport)

	w := codegen.NewWriter()
	needsCast := false
	for _, op := range ops {
		w.Import(repoImport, "repo")
		switch op {
		case OpList:
			w.Import("context", "")
			w.Import(base+"/query", "query")
		case OpGet, OpMustGet:
			w.Import("context", "")
		case OpCreate, OpMustCreate, OpUpdate, OpMustUpdate:
			needsCast = true
			w.Import("context", "")
			w.Import(base+"/changeset", "changeset")
		case OpDelete, OpMustDelete:
			w.Import("context", "")
			w.Import(base+"/changeset", "changeset")
		case OpChange:
			needsCast = true
			w.Import(base+"/changeset", "changeset")
		}
	}

	if len(ops) > 0 {
		w.Comment(fmt.Sprintf("%s is the schema name of the resource these functions operate on.", n.constant))
		w.Line("const %s = %q", n.constant, n.resource)
		w.Line("")
	}
	for _, op := range ops {
		w.Line("%s", render(op, n))
		w.Line("")
	}
	if needsCast {
		w.Line("%s", renderHelper(n, opts.ChangesetFunc))
	}

	return w.File(pkg)
}
