// Package codegen holds the source writer shared by the delegation and
// CRUD generators.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"
)

// Header marks generated files so tools and reviewers skip them
const Header = "// Code generated by contexted. DO NOT EDIT."

// Writer accumulates Go source with indentation and an import set
type Writer struct {
	buf     *bytes.Buffer
	indent  int
	imports map[string]string // path -> local name, "" for the default
}

// NewWriter creates an empty writer
func NewWriter() *Writer {
	return &Writer{
		buf:     &bytes.Buffer{},
		imports: make(map[string]string),
	}
}

// Import records an import. name may be empty to use the package's own name.
func (w *Writer) Import(path, name string) {
	w.imports[path] = name
}

// Line writes a formatted line with the current indentation
func (w *Writer) Line(format string, args ...interface{}) {
	if format == "" {
		w.buf.WriteString("\n")
		return
	}

	for i := 0; i < w.indent; i++ {
		w.buf.WriteString("\t")
	}
	if len(args) > 0 {
		w.buf.WriteString(fmt.Sprintf(format, args...))
	} else {
		w.buf.WriteString(format)
	}
	w.buf.WriteString("\n")
}

// Comment writes text as // comment lines
func (w *Writer) Comment(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			w.Line("//")
			continue
		}
		w.Line("// %s", line)
	}
}

// Indent increases the indentation
func (w *Writer) Indent() {
	w.indent++
}

// Dedent decreases the indentation
func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

// File renders the package clause, the import block and the body written so
// far, formatted with gofmt.
func (w *Writer) File(pkg string) ([]byte, error) {
	var out bytes.Buffer

	out.WriteString(Header + "\n\n")
	out.WriteString(fmt.Sprintf("package %s\n\n", pkg))
	writeImports(&out, w.imports)
	out.Write(w.buf.Bytes())

	formatted, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated code does not parse: %w\n%s", err, out.String())
	}
	return formatted, nil
}

// writeImports writes stdlib imports first, then the rest, each group sorted
func writeImports(out *bytes.Buffer, imports map[string]string) {
	if len(imports) == 0 {
		return
	}

	var stdlib, external []string
	for path := range imports {
		if strings.Contains(strings.SplitN(path, "/", 2)[0], ".") {
			external = append(external, path)
		} else {
			stdlib = append(stdlib, path)
		}
	}
	sort.Strings(stdlib)
	sort.Strings(external)

	out.WriteString("import (\n")
	for _, path := range stdlib {
		writeImport(out, path, imports[path])
	}
	if len(stdlib) > 0 && len(external) > 0 {
		out.WriteString("\n")
	}
	for _, path := range external {
		writeImport(out, path, imports[path])
	}
	out.WriteString(")\n\n")
}

func writeImport(out *bytes.Buffer, path, name string) {
	if name != "" {
		out.WriteString(fmt.Sprintf("\t%s %q\n", name, path))
		return
	}
	out.WriteString(fmt.Sprintf("\t%q\n", path))
}
