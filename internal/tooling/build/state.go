package build

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	gobuild "go/build"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// StateFile is the name of the build state inside the artifact directory
const StateFile = ".state.json"

// State records the source hash each stored description was made from, so
// unchanged packages are not described again
type State struct {
	// Packages maps an import path to the hash of its non-test Go files
	Packages map[string]string `json:"packages"`
	// UpdatedAt records when the state was last saved
	UpdatedAt time.Time `json:"updated_at"`

	mu sync.Mutex
}

// LoadState reads the state saved in dir. A missing file yields an empty state.
func LoadState(dir string) (*State, error) {
	file, err := os.Open(filepath.Join(dir, StateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Packages: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("failed to open build state: %w", err)
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode build state: %w", err)
	}
	if state.Packages == nil {
		state.Packages = make(map[string]string)
	}
	return &state, nil
}

// Save writes the state to dir through a temporary file
func (s *State) Save(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	s.UpdatedAt = time.Now()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode build state: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmp.Name(), filepath.Join(dir, StateFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save build state: %w", err)
	}
	return nil
}

// Unchanged reports whether hash matches the recorded hash of importPath
func (s *State) Unchanged(importPath, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded, ok := s.Packages[importPath]
	return ok && recorded == hash
}

// Record stores the hash importPath was described from
func (s *State) Record(importPath, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Packages[importPath] = hash
}

// Forget drops importPath so its next build describes it again
func (s *State) Forget(importPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Packages, importPath)
}

// PackageHash hashes the names and contents of the non-test Go files in dir
// that build for the host platform, the same set a description is made from
func PackageHash(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		ok, err := gobuild.Default.MatchFile(dir, name)
		if err != nil {
			return "", fmt.Errorf("failed to read build constraints of %s: %w", name, err)
		}
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	hash := sha256.New()
	for _, name := range names {
		io.WriteString(hash, name)
		hash.Write([]byte{0})
		if err := hashFile(hash, filepath.Join(dir, name)); err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", name, err)
		}
		hash.Write([]byte{0})
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
