package strings

import (
	"strconv"
	"strings"
)

// DefaultPackageName guesses the package name of an import path: the last
// element, skipping a major version suffix and trimming a "go-" prefix or
// ".go" suffix.
func DefaultPackageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	if strings.HasPrefix(importPath, "gopkg.in/") {
		if i := strings.Index(name, ".v"); i > 0 {
			name = name[:i]
		}
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, ".go")
	return strings.ReplaceAll(name, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
