package delegate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps described interfaces as JSON files under the artifact
// directory so the generate phase can run without reparsing sources.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file a description of importPath is stored in
func (s *Store) Path(importPath string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(importPath, "/", "__")+".json")
}

// Save writes iface, replacing any earlier description atomically
func (s *Store) Save(iface *Interface) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(iface, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode description of %s: %w", iface.ImportPath, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".describe-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write description of %s: %w", iface.ImportPath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(iface.ImportPath))
}

// Load reads the description of importPath. It returns ErrNotDescribed if
// the package has not been described.
func (s *Store) Load(importPath string) (*Interface, error) {
	data, err := os.ReadFile(s.Path(importPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotDescribed, importPath)
		}
		return nil, err
	}

	var iface Interface
	if err := json.Unmarshal(data, &iface); err != nil {
		return nil, fmt.Errorf("corrupt description of %s: %w", importPath, err)
	}
	return &iface, nil
}

// Remove deletes the description of importPath if there is one
func (s *Store) Remove(importPath string) error {
	err := os.Remove(s.Path(importPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
