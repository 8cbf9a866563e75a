// Package delegate generates forwarding wrappers that merge the exported
// functions of one or more source packages into a target package.
//
// Generation runs in two phases. Describe parses a source package and
// records its exported functions as an Interface, which Store persists as
// JSON. Generate reads Interfaces and emits one forwarder per function.
package delegate

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoPackage is returned when a directory holds no non-test Go files
	ErrNoPackage = errors.New("no Go package")

	// ErrNotImportable is returned for package main
	ErrNotImportable = errors.New("package is not importable")

	// ErrMultiplePackages is returned when a directory declares several packages
	ErrMultiplePackages = errors.New("multiple packages in directory")

	// ErrDuplicateFunction is returned when two sources export the same name
	ErrDuplicateFunction = errors.New("function delegated more than once")

	// ErrNotDescribed is returned by Store.Load when no description exists
	ErrNotDescribed = errors.New("package has not been described")
)

// Param is a named parameter, result or type parameter. Type is Go source
// with identifiers of the described package qualified by its name and
// other packages qualified by their Import name.
type Param struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Func is an exported top-level function
type Func struct {
	Name       string  `json:"name"`
	Doc        string  `json:"doc,omitempty"`
	TypeParams []Param `json:"type_params,omitempty"`
	Params     []Param `json:"params"`
	Results    []Param `json:"results"`

	// Variadic marks the last parameter; its Type is the element type
	Variadic bool `json:"variadic,omitempty"`

	File string `json:"file"`
	Line int    `json:"line"`
}

// Arity returns the number of parameters
func (f *Func) Arity() int {
	return len(f.Params)
}

// Import is a package referenced by a signature
type Import struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Skipped is an exported function that cannot be forwarded
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Interface describes the exported functions of one package
type Interface struct {
	ImportPath string    `json:"import_path"`
	Package    string    `json:"package"`
	Doc        string    `json:"doc,omitempty"`
	Funcs      []Func    `json:"funcs"`
	Imports    []Import  `json:"imports,omitempty"`
	Skipped    []Skipped `json:"skipped,omitempty"`
}

// Func returns the function with the given name
func (i *Interface) Func(name string) (*Func, bool) {
	for idx := range i.Funcs {
		if i.Funcs[idx].Name == name {
			return &i.Funcs[idx], true
		}
	}
	return nil, false
}

// FuncNames returns the function names in declaration order
func (i *Interface) FuncNames() []string {
	names := make([]string, len(i.Funcs))
	for idx, f := range i.Funcs {
		names[idx] = f.Name
	}
	return names
}

// DuplicateError names a function exported by more than one source
type DuplicateError struct {
	Name    string
	Sources []string
}

// Error implements the error interface
func (e *DuplicateError) Error() string {
	sources := append([]string(nil), e.Sources...)
	sort.Strings(sources)
	return fmt.Sprintf("%s: %s is exported by %v", ErrDuplicateFunction, e.Name, sources)
}

// Unwrap returns ErrDuplicateFunction
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateFunction
}
