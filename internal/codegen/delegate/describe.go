package delegate

import (
	"fmt"
	"go/ast"
	"go/build"
	"go/doc"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

// Describe parses the non-test Go files in dir that build for the host
// platform and tags, and records the exported
// top-level functions of the package. Methods are not described. A
// function whose signature mentions an unexported type cannot be called
// from another package and is listed in Skipped instead.
func Describe(dir string, importPath string) (*Interface, error) {
	fset := token.NewFileSet()
	files, err := parseDir(fset, dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPackage, dir)
	}

	pkgName := files[0].Name.Name
	for _, f := range files[1:] {
		if f.Name.Name != pkgName {
			return nil, fmt.Errorf("%w: %s and %s in %s", ErrMultiplePackages, pkgName, f.Name.Name, dir)
		}
	}
	if pkgName == "main" {
		return nil, fmt.Errorf("%w: %s is package main", ErrNotImportable, importPath)
	}

	// collected first: NewFromFiles strips unexported declarations
	typeNames := packageTypeNames(files)

	docPkg, err := doc.NewFromFiles(fset, files, importPath, doc.PreserveAST)
	if err != nil {
		return nil, fmt.Errorf("failed to read documentation of %s: %w", importPath, err)
	}

	d := &describer{
		fset:      fset,
		dir:       dir,
		pkgName:   pkgName,
		typeNames: typeNames,
		fileOf:    make(map[*ast.FuncDecl]*ast.File),
		imports:   make(map[string]string),
		names:     map[string]string{pkgName: ""},
	}
	for _, f := range files {
		for _, decl := range f.Decls {
			if fn, ok := decl.(*ast.FuncDecl); ok {
				d.fileOf[fn] = f
			}
		}
	}

	iface := &Interface{
		ImportPath: importPath,
		Package:    pkgName,
		Doc:        strings.TrimSpace(docPkg.Doc),
		Funcs:      make([]Func, 0),
	}

	for _, fn := range exportedFuncs(docPkg) {
		described, err := d.describeFunc(fn)
		if err != nil {
			iface.Skipped = append(iface.Skipped, Skipped{Name: fn.Name, Reason: err.Error()})
			continue
		}
		iface.Funcs = append(iface.Funcs, *described)
	}

	for path, name := range d.imports {
		iface.Imports = append(iface.Imports, Import{Name: name, Path: path})
	}
	sort.Slice(iface.Imports, func(i, j int) bool {
		return iface.Imports[i].Path < iface.Imports[j].Path
	})

	return iface, nil
}

func parseDir(fset *token.FileSet, dir string) ([]*ast.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		ok, err := build.Default.MatchFile(dir, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read build constraints of %s: %w", name, err)
		}
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	files := make([]*ast.File, 0, len(names))
	for _, name := range names {
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// exportedFuncs returns package functions and constructors in declaration order
func exportedFuncs(pkg *doc.Package) []*doc.Func {
	funcs := append([]*doc.Func(nil), pkg.Funcs...)
	for _, t := range pkg.Types {
		funcs = append(funcs, t.Funcs...)
	}
	sort.Slice(funcs, func(i, j int) bool {
		return funcs[i].Decl.Pos() < funcs[j].Decl.Pos()
	})
	return funcs
}

func packageTypeNames(files []*ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, f := range files {
		for _, decl := range f.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				names[spec.(*ast.TypeSpec).Name.Name] = true
			}
		}
	}
	return names
}

type describer struct {
	fset      *token.FileSet
	dir       string
	pkgName   string
	typeNames map[string]bool
	fileOf    map[*ast.FuncDecl]*ast.File

	imports map[string]string // path -> name used in descriptions
	names   map[string]string // name -> path, "" for the package itself
}

func (d *describer) describeFunc(fn *doc.Func) (*Func, error) {
	decl := fn.Decl
	q := &qualifier{d: d, file: d.fileOf[decl], typeParams: make(map[string]bool)}

	pos := d.fset.Position(decl.Pos())
	out := &Func{
		Name:    fn.Name,
		Doc:     strings.TrimRight(fn.Doc, "\n"),
		Params:  make([]Param, 0),
		Results: make([]Param, 0),
		File:    filepath.Base(pos.Filename),
		Line:    pos.Line,
	}

	if tp := decl.Type.TypeParams; tp != nil {
		for _, field := range tp.List {
			for _, name := range field.Names {
				q.typeParams[name.Name] = true
			}
		}
		params, err := q.fields(tp)
		if err != nil {
			return nil, err
		}
		out.TypeParams = params
	}

	params, err := q.fields(decl.Type.Params)
	if err != nil {
		return nil, err
	}
	if n := len(params); n > 0 && strings.HasPrefix(params[n-1].Type, "...") {
		out.Variadic = true
		params[n-1].Type = strings.TrimPrefix(params[n-1].Type, "...")
	}
	out.Params = params

	results, err := q.fields(decl.Type.Results)
	if err != nil {
		return nil, err
	}
	out.Results = results

	return out, nil
}

// qualifier rewrites type expressions of one function
type qualifier struct {
	d          *describer
	file       *ast.File
	typeParams map[string]bool
}

func (q *qualifier) fields(list *ast.FieldList) ([]Param, error) {
	params := make([]Param, 0)
	if list == nil {
		return params, nil
	}

	for _, field := range list.List {
		expr, err := q.expr(field.Type)
		if err != nil {
			return nil, err
		}
		typ := types.ExprString(expr)

		if len(field.Names) == 0 {
			params = append(params, Param{Type: typ})
			continue
		}
		for _, name := range field.Names {
			params = append(params, Param{Name: name.Name, Type: typ})
		}
	}
	return params, nil
}

// expr qualifies identifiers in a type expression
func (q *qualifier) expr(e ast.Expr) (ast.Expr, error) {
	var err error
	switch t := e.(type) {
	case nil:
		return nil, nil
	case *ast.Ident:
		return q.ident(t)
	case *ast.SelectorExpr:
		return q.selector(t)
	case *ast.StarExpr:
		t.X, err = q.expr(t.X)
	case *ast.Ellipsis:
		t.Elt, err = q.expr(t.Elt)
	case *ast.ParenExpr:
		t.X, err = q.expr(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			t.Len, err = q.expr(t.Len)
			if err != nil {
				return nil, err
			}
		}
		t.Elt, err = q.expr(t.Elt)
	case *ast.MapType:
		if t.Key, err = q.expr(t.Key); err != nil {
			return nil, err
		}
		t.Value, err = q.expr(t.Value)
	case *ast.ChanType:
		t.Value, err = q.expr(t.Value)
	case *ast.FuncType:
		if err = q.fieldTypes(t.Params); err != nil {
			return nil, err
		}
		err = q.fieldTypes(t.Results)
	case *ast.StructType:
		err = q.fieldTypes(t.Fields)
	case *ast.InterfaceType:
		err = q.fieldTypes(t.Methods)
	case *ast.IndexExpr:
		if t.X, err = q.expr(t.X); err != nil {
			return nil, err
		}
		t.Index, err = q.expr(t.Index)
	case *ast.IndexListExpr:
		if t.X, err = q.expr(t.X); err != nil {
			return nil, err
		}
		for i := range t.Indices {
			if t.Indices[i], err = q.expr(t.Indices[i]); err != nil {
				return nil, err
			}
		}
	case *ast.UnaryExpr:
		t.X, err = q.expr(t.X)
	case *ast.BinaryExpr:
		if t.X, err = q.expr(t.X); err != nil {
			return nil, err
		}
		t.Y, err = q.expr(t.Y)
	case *ast.BasicLit:
	default:
		return nil, fmt.Errorf("unsupported type expression %T", e)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (q *qualifier) fieldTypes(list *ast.FieldList) error {
	if list == nil {
		return nil
	}
	for _, field := range list.List {
		typ, err := q.expr(field.Type)
		if err != nil {
			return err
		}
		field.Type = typ
	}
	return nil
}

func (q *qualifier) ident(id *ast.Ident) (ast.Expr, error) {
	if q.typeParams[id.Name] || types.Universe.Lookup(id.Name) != nil {
		return id, nil
	}
	if !ast.IsExported(id.Name) {
		if q.d.typeNames[id.Name] {
			return nil, fmt.Errorf("signature uses unexported type %s", id.Name)
		}
		// array lengths may name unexported constants
		return nil, fmt.Errorf("signature uses unexported identifier %s", id.Name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(q.d.pkgName), Sel: ast.NewIdent(id.Name)}, nil
}

func (q *qualifier) selector(sel *ast.SelectorExpr) (ast.Expr, error) {
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported qualified type %s", types.ExprString(sel))
	}

	path, ok := q.importPath(pkgIdent.Name)
	if !ok {
		return nil, fmt.Errorf("unknown package %s", pkgIdent.Name)
	}
	sel.X = ast.NewIdent(q.d.importName(path, pkgIdent.Name))
	return sel, nil
}

func (q *qualifier) importPath(localName string) (string, bool) {
	if q.file == nil {
		return "", false
	}
	for _, spec := range q.file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ustrings.DefaultPackageName(path)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == localName {
			return path, true
		}
	}
	return "", false
}

// importName returns a stable name for path, numbering it when another
// path (or the package itself) already uses the preferred name
func (d *describer) importName(path, preferred string) string {
	if name, ok := d.imports[path]; ok {
		return name
	}

	name := preferred
	for i := 2; ; i++ {
		if _, taken := d.names[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s%d", preferred, i)
	}
	d.imports[path] = name
	d.names[name] = path
	return name
}
