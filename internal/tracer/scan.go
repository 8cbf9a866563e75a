package tracer

import (
	"context"
	"fmt"
	"go/ast"
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

// ReferenceFunc receives references in file and position order. Returning
// an error stops the scan.
type ReferenceFunc func(ref Reference) error

// Scanner walks a Go module and reports the references of its packages
type Scanner struct {
	root       string
	modulePath string
	skipDirs   map[string]bool
	logger     *zap.Logger
}

// NewScanner creates a scanner for the module rooted at root. skipDirs are
// paths relative to root that are not scanned.
func NewScanner(root string, skipDirs []string, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	modulePath, err := ReadModulePath(root)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		skip[filepath.ToSlash(filepath.Clean(dir))] = true
	}

	return &Scanner{
		root:       root,
		modulePath: modulePath,
		skipDirs:   skip,
		logger:     logger,
	}, nil
}

// ModulePath returns the module path declared in go.mod
func (s *Scanner) ModulePath() string {
	return s.modulePath
}

// ReadModulePath reads the module path from root/go.mod
func ReadModulePath(root string) (string, error) {
	gomod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomod)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", gomod, err)
	}

	modulePath := modfile.ModulePath(data)
	if modulePath == "" {
		return "", fmt.Errorf("%s has no module directive", gomod)
	}
	if err := module.CheckImportPath(modulePath); err != nil {
		return "", fmt.Errorf("invalid module path in %s: %w", gomod, err)
	}
	return modulePath, nil
}

// Package is a directory of Go files sharing an import path
type Package struct {
	ImportPath string
	Dir        string   // relative to the module root, slash separated
	Files      []string // absolute paths, sorted
}

// Packages lists the packages of the module in import path order
func (s *Scanner) Packages() ([]*Package, error) {
	var packages []*Package

	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel != "." {
			name := d.Name()
			if name == "vendor" || name == "testdata" ||
				strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				s.skipDirs[rel] {
				return filepath.SkipDir
			}
			// nested module
			if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
				return filepath.SkipDir
			}
		}

		files, err := s.goFiles(p)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}

		importPath := s.modulePath
		if rel != "." {
			importPath = path.Join(s.modulePath, rel)
		}
		packages = append(packages, &Package{ImportPath: importPath, Dir: rel, Files: files})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].ImportPath < packages[j].ImportPath
	})
	return packages, nil
}

// goFiles lists the Go files of dir, tests included, that build for the
// host platform and tags
func (s *Scanner) goFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		ok, err := build.Default.MatchFile(dir, e.Name())
		if err != nil {
			return nil, &ParseError{File: s.relative(filepath.Join(dir, e.Name())), Err: err}
		}
		if ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Scan parses every package and passes each reference to fn
func (s *Scanner) Scan(ctx context.Context, fn ReferenceFunc) error {
	packages, err := s.Packages()
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scanPackage(pkg, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanPackage(pkg *Package, fn ReferenceFunc) error {
	fset := token.NewFileSet()
	files := make([]*ast.File, 0, len(pkg.Files))
	for _, name := range pkg.Files {
		f, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			return &ParseError{File: s.relative(name), Err: err}
		}
		files = append(files, f)
	}

	// names declared at package level, used to tell dot-imported calls
	// apart from calls to the package's own functions
	declared := make(map[string]bool)
	for _, f := range files {
		for name := range packageLevelNames(f) {
			declared[name] = true
		}
	}

	s.logger.Debug("scanning package",
		zap.String("package", pkg.ImportPath),
		zap.Int("files", len(files)))

	for i, f := range files {
		w := &fileWalker{
			fset:     fset,
			from:     pkg.ImportPath,
			file:     s.relative(pkg.Files[i]),
			declared: declared,
			emit:     fn,
		}
		if err := w.walk(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) relative(name string) string {
	rel, err := filepath.Rel(s.root, name)
	if err != nil {
		return filepath.ToSlash(name)
	}
	return filepath.ToSlash(rel)
}

// ParseError is returned when a Go file cannot be parsed
type ParseError struct {
	File string
	Err  error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.File, e.Err)
}

// Unwrap returns the parser error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Run scans the module rooted at root and stops at the first violation
func Run(ctx context.Context, scanner *Scanner, t *Tracer) error {
	return scanner.Scan(ctx, t.Trace)
}

type fileWalker struct {
	fset     *token.FileSet
	from     string
	file     string
	declared map[string]bool
	emit     ReferenceFunc

	// local package name -> import path
	imports    map[string]string
	dotImports []string
}

func (w *fileWalker) walk(f *ast.File) error {
	w.imports = make(map[string]string)

	for _, spec := range f.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		kind := KindImport
		name := ustrings.DefaultPackageName(importPath)
		if spec.Name != nil {
			switch spec.Name.Name {
			case ".":
				w.dotImports = append(w.dotImports, importPath)
			case "_":
			default:
				kind = KindAlias
				name = spec.Name.Name
			}
		}
		if spec.Name == nil || kind == KindAlias {
			w.imports[name] = importPath
		}

		if err := w.report(kind, importPath, "", spec.Pos()); err != nil {
			return err
		}
	}

	var walkErr error
	ast.Inspect(f, func(n ast.Node) bool { return w.visit(n, &walkErr) })
	return walkErr
}

// visit reports qualified references and dot-imported calls. A reported
// call selector is not visited again as a plain reference.
func (w *fileWalker) visit(n ast.Node, walkErr *error) bool {
	if *walkErr != nil {
		return false
	}
	switch node := n.(type) {
	case *ast.CallExpr:
		if ident, ok := node.Fun.(*ast.Ident); ok {
			*walkErr = w.dotCall(ident)
			return *walkErr == nil
		}
		if sel, ok := node.Fun.(*ast.SelectorExpr); ok {
			if handled, err := w.selector(sel, KindRemoteCall); handled {
				*walkErr = err
				if err != nil {
					return false
				}
				for _, arg := range node.Args {
					ast.Inspect(arg, func(n ast.Node) bool { return w.visit(n, walkErr) })
				}
				return false
			}
		}
	case *ast.SelectorExpr:
		if handled, err := w.selector(node, KindRemoteRef); handled {
			*walkErr = err
			return false
		}
	}
	return true
}

// selector reports pkg.Name when pkg is an unshadowed import name
func (w *fileWalker) selector(sel *ast.SelectorExpr, kind Kind) (bool, error) {
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Obj != nil {
		return false, nil
	}
	importPath, ok := w.imports[ident.Name]
	if !ok {
		return false, nil
	}
	return true, w.report(kind, importPath, sel.Sel.Name, sel.Pos())
}

// dotCall reports an unqualified call that can only resolve through a dot
// import. With several dot imports the first is blamed.
func (w *fileWalker) dotCall(ident *ast.Ident) error {
	if len(w.dotImports) == 0 || ident.Obj != nil || w.declared[ident.Name] || isPredeclared(ident.Name) {
		return nil
	}
	return w.report(KindImportedCall, w.dotImports[0], ident.Name, ident.Pos())
}

func (w *fileWalker) report(kind Kind, to, name string, pos token.Pos) error {
	p := w.fset.Position(pos)
	return w.emit(Reference{
		Kind:   kind,
		From:   w.from,
		To:     to,
		Name:   name,
		File:   w.file,
		Line:   p.Line,
		Column: p.Column,
	})
}

func packageLevelNames(f *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				names[d.Name.Name] = true
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names[s.Name.Name] = true
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names[n.Name] = true
					}
				}
			}
		}
	}
	return names
}

var predeclared = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
	"bool": true, "byte": true, "complex64": true, "complex128": true,
	"error": true, "float32": true, "float64": true, "int": true, "int8": true,
	"int16": true, "int32": true, "int64": true, "rune": true, "string": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "any": true, "comparable": true,
}

func isPredeclared(name string) bool {
	return predeclared[name]
}
