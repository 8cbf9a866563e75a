package delegate

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"strings"

	"github.com/curiosum-dev/contexted/internal/codegen"
	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

// Target is the package the forwarders are written into
type Target struct {
	Package    string
	ImportPath string
}

// Generate emits a gofmt-ed file declaring, for every function of every
// source, a forwarder with the same name and signature that calls the
// source function with all of its arguments. A function exported by more
// than one source fails with a *DuplicateError.
func Generate(target Target, sources []*Interface) ([]byte, error) {
	if err := checkDuplicates(sources); err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	names := newNameTable()

	for _, src := range sources {
		if src.ImportPath == target.ImportPath && target.ImportPath != "" {
			return nil, fmt.Errorf("package %s cannot delegate to itself", src.ImportPath)
		}
		if len(src.Funcs) == 0 {
			continue
		}

		alias := names.claim(src.ImportPath, src.Package)
		renames := map[string]string{src.Package: alias}
		for _, imp := range src.Imports {
			renames[imp.Name] = names.claim(imp.Path, imp.Name)
		}
		paths := map[string]string{src.Package: src.ImportPath}
		for _, imp := range src.Imports {
			paths[imp.Name] = imp.Path
		}

		g := &forwarder{w: w, alias: alias, renames: renames, used: map[string]bool{src.Package: true}}
		w.Comment(fmt.Sprintf("Delegated from %s.", src.ImportPath))
		w.Line("")
		for i := range src.Funcs {
			if err := g.emit(&src.Funcs[i]); err != nil {
				return nil, fmt.Errorf("failed to delegate %s.%s: %w", src.ImportPath, src.Funcs[i].Name, err)
			}
		}

		for oldName := range g.used {
			path := paths[oldName]
			newName := renames[oldName]
			if newName == ustrings.DefaultPackageName(path) {
				newName = ""
			}
			w.Import(path, newName)
		}
	}

	return w.File(target.Package)
}

func checkDuplicates(sources []*Interface) error {
	seen := make(map[string]string)
	for _, src := range sources {
		for _, fn := range src.Funcs {
			if prev, ok := seen[fn.Name]; ok {
				return &DuplicateError{Name: fn.Name, Sources: []string{prev, src.ImportPath}}
			}
			seen[fn.Name] = src.ImportPath
		}
	}
	return nil
}

// nameTable hands out file-level import names
type nameTable struct {
	byPath map[string]string
	taken  map[string]bool
}

func newNameTable() *nameTable {
	return &nameTable{byPath: make(map[string]string), taken: make(map[string]bool)}
}

func (n *nameTable) claim(path, preferred string) string {
	if name, ok := n.byPath[path]; ok {
		return name
	}
	name := preferred
	for i := 2; n.taken[name]; i++ {
		name = fmt.Sprintf("%s%d", preferred, i)
	}
	n.byPath[path] = name
	n.taken[name] = true
	return name
}

type forwarder struct {
	w       *codegen.Writer
	alias   string
	renames map[string]string
	used    map[string]bool // names (before renaming) referenced in the file
}

func (g *forwarder) emit(fn *Func) error {
	typeParams, err := g.params(fn.TypeParams)
	if err != nil {
		return err
	}
	params, err := g.params(fn.Params)
	if err != nil {
		return err
	}
	results, err := g.params(fn.Results)
	if err != nil {
		return err
	}

	argNames := paramNames(fn.Params, g.reserved())

	var sig strings.Builder
	sig.WriteString("func ")
	sig.WriteString(fn.Name)
	if len(typeParams) > 0 {
		parts := make([]string, len(typeParams))
		for i, tp := range typeParams {
			parts[i] = tp.Name + " " + tp.Type
		}
		sig.WriteString("[" + strings.Join(parts, ", ") + "]")
	}

	parts := make([]string, len(params))
	for i, p := range params {
		typ := p.Type
		if fn.Variadic && i == len(params)-1 {
			typ = "..." + typ
		}
		parts[i] = argNames[i] + " " + typ
	}
	sig.WriteString("(" + strings.Join(parts, ", ") + ")")

	switch len(results) {
	case 0:
	case 1:
		sig.WriteString(" " + results[0].Type)
	default:
		resultTypes := make([]string, len(results))
		for i, r := range results {
			resultTypes[i] = r.Type
		}
		sig.WriteString(" (" + strings.Join(resultTypes, ", ") + ")")
	}

	call := g.alias + "." + fn.Name
	if len(typeParams) > 0 {
		names := make([]string, len(typeParams))
		for i, tp := range typeParams {
			names[i] = tp.Name
		}
		call += "[" + strings.Join(names, ", ") + "]"
	}
	args := strings.Join(argNames, ", ")
	if fn.Variadic {
		args += "..."
	}
	call += "(" + args + ")"

	if fn.Doc != "" {
		g.w.Comment(fn.Doc)
	} else {
		g.w.Comment(fmt.Sprintf("%s delegates to %s.%s.", fn.Name, g.alias, fn.Name))
	}
	g.w.Line("%s {", sig.String())
	g.w.Indent()
	if len(results) == 0 {
		g.w.Line("%s", call)
	} else {
		g.w.Line("return %s", call)
	}
	g.w.Dedent()
	g.w.Line("}")
	g.w.Line("")
	return nil
}

// params renames package qualifiers in parameter types
func (g *forwarder) params(in []Param) ([]Param, error) {
	out := make([]Param, len(in))
	for i, p := range in {
		typ, err := g.requalify(p.Type)
		if err != nil {
			return nil, err
		}
		out[i] = Param{Name: p.Name, Type: typ}
	}
	return out, nil
}

func (g *forwarder) requalify(typ string) (string, error) {
	expr, err := parser.ParseExpr(typ)
	if err != nil {
		return "", fmt.Errorf("invalid type %q: %w", typ, err)
	}

	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok {
			if newName, ok := g.renames[id.Name]; ok {
				g.used[id.Name] = true
				id.Name = newName
			}
		}
		return false
	})
	return types.ExprString(expr), nil
}

// reserved are names a parameter must not shadow inside the body
func (g *forwarder) reserved() map[string]bool {
	return map[string]bool{g.alias: true}
}

// paramNames returns a usable name for every parameter, synthesizing one
// for unnamed and blank parameters
func paramNames(params []Param, reserved map[string]bool) []string {
	taken := make(map[string]bool)
	for _, p := range params {
		taken[p.Name] = true
	}

	names := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" || name == "_" || reserved[name] {
			base := "arg"
			if reserved[name] {
				base = name + "Arg"
			}
			name = base
			if base == "arg" {
				name = fmt.Sprintf("arg%d", i)
			}
			for n := 2; taken[name] || reserved[name]; n++ {
				name = fmt.Sprintf("%s%d", base, n)
			}
			taken[name] = true
		}
		names[i] = name
	}
	return names
}
