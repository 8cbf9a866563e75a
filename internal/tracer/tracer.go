// Package tracer enforces context boundaries: a package inside one
// configured context may not import or reference a package inside another.
package tracer

import (
	"fmt"
	"sort"
	"strings"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
)

// Kind classifies a reference event
type Kind int

const (
	// KindImport is a plain import of a package
	KindImport Kind = iota
	// KindAlias is an import under a local name
	KindAlias
	// KindImportedCall is an unqualified call into a dot-imported package
	KindImportedCall
	// KindRemoteCall is a qualified call, pkg.Func(...)
	KindRemoteCall
	// KindRemoteRef is any other qualified reference, pkg.Name
	KindRemoteRef
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindImport:
		return "import"
	case KindAlias:
		return "alias"
	case KindImportedCall:
		return "imported_call"
	case KindRemoteCall:
		return "remote_call"
	case KindRemoteRef:
		return "remote_ref"
	default:
		return "unknown"
	}
}

// Reference is one symbol reference from package From to package To
type Reference struct {
	Kind Kind
	From string
	To   string
	Name string // referenced identifier, empty for imports

	File   string
	Line   int
	Column int
}

// ViolationError is returned for a reference between two distinct contexts
type ViolationError struct {
	From        string
	To          string
	FromContext string
	ToContext   string
	Ref         Reference
}

// Error implements the error interface
func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: You can't reference %s context within %s context.",
		e.Ref.File, e.Ref.Line, e.Ref.Column, e.ToContext, e.FromContext)
}

// Diagnostic converts the violation into a compiler diagnostic
func (e *ViolationError) Diagnostic() cerrors.CompilerError {
	length := 0
	if e.Ref.Name != "" {
		length = len(e.Ref.Name)
	}
	loc := cerrors.SourceLocation{File: e.Ref.File, Line: e.Ref.Line, Column: e.Ref.Column, Length: length}
	return cerrors.NewCrossContextReference(e.From, e.To, e.FromContext, e.ToContext, loc).WithCause(e)
}

// Tracer classifies references against a fixed set of contexts
type Tracer struct {
	contexts []string
	excludes []string
}

// New creates a tracer. Contexts are package import paths; excludes are
// file path substrings whose references are never checked.
func New(contexts []string, excludes []string) *Tracer {
	sorted := make([]string, 0, len(contexts))
	for _, c := range contexts {
		c = strings.TrimSuffix(c, "/")
		if c != "" {
			sorted = append(sorted, c)
		}
	}
	// longest first, so the most specific context wins
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	return &Tracer{
		contexts: sorted,
		excludes: append([]string(nil), excludes...),
	}
}

// Contexts returns the configured contexts, most specific first
func (t *Tracer) Contexts() []string {
	return t.contexts
}

// ContextOf returns the context a package belongs to. A package belongs to
// a context when its path equals the context or lies below it.
func (t *Tracer) ContextOf(path string) (string, bool) {
	for _, ctx := range t.contexts {
		if path == ctx || strings.HasPrefix(path, ctx+"/") {
			return ctx, true
		}
	}
	return "", false
}

// Excluded reports whether file matches an excluded path
func (t *Tracer) Excluded(file string) bool {
	for _, ex := range t.excludes {
		if ex != "" && strings.Contains(file, ex) {
			return true
		}
	}
	return false
}

// Trace returns a *ViolationError when ref crosses from one context into
// another and its file is not excluded. Every other reference is allowed.
func (t *Tracer) Trace(ref Reference) error {
	fromCtx, ok := t.ContextOf(ref.From)
	if !ok {
		return nil
	}
	toCtx, ok := t.ContextOf(ref.To)
	if !ok || toCtx == fromCtx {
		return nil
	}
	if t.Excluded(ref.File) {
		return nil
	}

	return &ViolationError{
		From:        ref.From,
		To:          ref.To,
		FromContext: fromCtx,
		ToContext:   toCtx,
		Ref:         ref,
	}
}
