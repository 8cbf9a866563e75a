package build

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/curiosum-dev/contexted/internal/tracer"
)

// ErrCycle is returned when packages import each other in a cycle
var ErrCycle = errors.New("circular dependency")

// Node is a package of the module
type Node struct {
	ImportPath   string
	Dir          string
	Hash         string    // over the package's files, empty for synthetic nodes
	LastModified time.Time // newest file
	Dependencies []string
}

// DependencyGraph tracks import edges between packages of the module
type DependencyGraph struct {
	nodes map[string]*Node
	edges map[string][]string // package -> packages it depends on
	mu    sync.RWMutex
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node without backing files. Self edges are dropped.
func (dg *DependencyGraph) AddNode(importPath string, dependencies []string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	deps := dedupe(importPath, dependencies)
	dg.nodes[importPath] = &Node{ImportPath: importPath, Dependencies: deps}
	dg.edges[importPath] = deps
}

// AddPackage adds a scanned package, hashing its files
func (dg *DependencyGraph) AddPackage(pkg *tracer.Package, dependencies []string) error {
	hash := sha256.New()
	var newest time.Time
	for _, file := range pkg.Files {
		info, err := os.Stat(file)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", file, err)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if err := hashFile(hash, file); err != nil {
			return fmt.Errorf("failed to hash %s: %w", file, err)
		}
	}

	dg.mu.Lock()
	defer dg.mu.Unlock()

	deps := dedupe(pkg.ImportPath, dependencies)
	dg.nodes[pkg.ImportPath] = &Node{
		ImportPath:   pkg.ImportPath,
		Dir:          pkg.Dir,
		Hash:         fmt.Sprintf("%x", hash.Sum(nil)),
		LastModified: newest,
		Dependencies: deps,
	}
	dg.edges[pkg.ImportPath] = deps
	return nil
}

func dedupe(self string, deps []string) []string {
	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep == self || seen[dep] {
			continue
		}
		seen[dep] = true
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// GetNode retrieves a node by import path
func (dg *DependencyGraph) GetNode(importPath string) (*Node, bool) {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	node, ok := dg.nodes[importPath]
	return node, ok
}

// Len returns the number of nodes
func (dg *DependencyGraph) Len() int {
	dg.mu.RLock()
	defer dg.mu.RUnlock()
	return len(dg.nodes)
}

// FindAffected returns the changed packages and every package depending on
// them, directly or transitively, sorted
func (dg *DependencyGraph) FindAffected(changed []string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	affected := make(map[string]struct{})

	var visit func(string)
	visit = func(pkg string) {
		if _, ok := affected[pkg]; ok {
			return
		}
		affected[pkg] = struct{}{}

		for dependent, deps := range dg.edges {
			for _, dep := range deps {
				if dep == pkg {
					visit(dependent)
					break
				}
			}
		}
	}

	for _, pkg := range changed {
		visit(pkg)
	}

	result := make([]string, 0, len(affected))
	for pkg := range affected {
		result = append(result, pkg)
	}
	sort.Strings(result)
	return result
}

// TopologicalSort returns pkgs with dependencies first. Only edges between
// members of pkgs are considered.
func (dg *DependencyGraph) TopologicalSort(pkgs []string) ([]string, error) {
	layers, err := dg.Layers(pkgs)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(pkgs))
	for _, layer := range layers {
		result = append(result, layer...)
	}
	return result, nil
}

// Layers groups pkgs so every package only depends on packages of earlier
// layers. Packages of one layer can be processed in parallel.
func (dg *DependencyGraph) Layers(pkgs []string) ([][]string, error) {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	members := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		members[pkg] = true
	}

	// edges[A] = [B, C] means A depends on B and C, so B and C come first
	inDegree := make(map[string]int, len(members))
	for pkg := range members {
		count := 0
		for _, dep := range dg.edges[pkg] {
			if members[dep] {
				count++
			}
		}
		inDegree[pkg] = count
	}

	var layers [][]string
	done := 0
	for done < len(members) {
		var layer []string
		for pkg, degree := range inDegree {
			if degree == 0 {
				layer = append(layer, pkg)
			}
		}
		if len(layer) == 0 {
			remaining := make([]string, 0, len(inDegree))
			for pkg := range inDegree {
				remaining = append(remaining, pkg)
			}
			sort.Strings(remaining)
			return nil, fmt.Errorf("%w between %v", ErrCycle, remaining)
		}
		sort.Strings(layer)

		for _, pkg := range layer {
			delete(inDegree, pkg)
		}
		for pkg := range inDegree {
			for _, dep := range dg.edges[pkg] {
				for _, finished := range layer {
					if dep == finished {
						inDegree[pkg]--
					}
				}
			}
		}

		layers = append(layers, layer)
		done += len(layer)
	}
	return layers, nil
}

// HasCycle detects if the dependency graph has a cycle
func (dg *DependencyGraph) HasCycle() bool {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(string) bool
	hasCycle = func(pkg string) bool {
		visited[pkg] = true
		recStack[pkg] = true

		for _, dep := range dg.edges[pkg] {
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[pkg] = false
		return false
	}

	for pkg := range dg.nodes {
		if !visited[pkg] {
			if hasCycle(pkg) {
				return true
			}
		}
	}
	return false
}

// GetDependencies returns the packages importPath depends on
func (dg *DependencyGraph) GetDependencies(importPath string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	deps, ok := dg.edges[importPath]
	if !ok {
		return []string{}
	}

	// copy so callers cannot race with AddNode
	result := make([]string, len(deps))
	copy(result, deps)
	return result
}

// GetDependents returns the packages that depend on importPath, sorted
func (dg *DependencyGraph) GetDependents(importPath string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	dependents := make([]string, 0)
	for dependent, deps := range dg.edges {
		for _, dep := range deps {
			if dep == importPath {
				dependents = append(dependents, dependent)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

func hashFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(w, file)
	return err
}
