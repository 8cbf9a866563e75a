package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/curiosum-dev/contexted/internal/tracer"
)

// chain builds a -> b -> c -> d
func chain() *DependencyGraph {
	dg := NewDependencyGraph()
	dg.AddNode("example.com/a", []string{"example.com/b"})
	dg.AddNode("example.com/b", []string{"example.com/c"})
	dg.AddNode("example.com/c", []string{"example.com/d"})
	dg.AddNode("example.com/d", nil)
	return dg
}

func TestAddNode(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddNode("example.com/a", []string{"example.com/b", "example.com/a", "example.com/b"})

	node, ok := dg.GetNode("example.com/a")
	if !ok {
		t.Fatal("Expected node to exist")
	}
	if !reflect.DeepEqual(node.Dependencies, []string{"example.com/b"}) {
		t.Errorf("Expected self edge and duplicates dropped, got %v", node.Dependencies)
	}

	if _, ok := dg.GetNode("example.com/missing"); ok {
		t.Error("Expected node not to exist")
	}
	if dg.Len() != 1 {
		t.Errorf("Expected 1 node, got %d", dg.Len())
	}
}

func TestAddPackage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	if err := os.WriteFile(file, []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dg := NewDependencyGraph()
	pkg := &tracer.Package{ImportPath: "example.com/a", Dir: "a", Files: []string{file}}
	if err := dg.AddPackage(pkg, nil); err != nil {
		t.Fatalf("AddPackage failed: %v", err)
	}

	node, _ := dg.GetNode("example.com/a")
	if len(node.Hash) != 64 {
		t.Errorf("Expected SHA-256 hash, got %q", node.Hash)
	}
	if node.LastModified.IsZero() {
		t.Error("Expected modification time")
	}

	// same content, same hash
	first := node.Hash
	if err := dg.AddPackage(pkg, nil); err != nil {
		t.Fatal(err)
	}
	node, _ = dg.GetNode("example.com/a")
	if node.Hash != first {
		t.Error("Expected same hash for same content")
	}

	if err := os.WriteFile(file, []byte("package a\n\nfunc F() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := dg.AddPackage(pkg, nil); err != nil {
		t.Fatal(err)
	}
	node, _ = dg.GetNode("example.com/a")
	if node.Hash == first {
		t.Error("Expected different hash for different content")
	}

	missing := &tracer.Package{ImportPath: "example.com/b", Files: []string{filepath.Join(dir, "gone.go")}}
	if err := dg.AddPackage(missing, nil); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestFindAffected(t *testing.T) {
	dg := chain()

	affected := dg.FindAffected([]string{"example.com/c"})
	want := []string{"example.com/a", "example.com/b", "example.com/c"}
	if !reflect.DeepEqual(affected, want) {
		t.Errorf("Expected %v, got %v", want, affected)
	}

	affected = dg.FindAffected([]string{"example.com/a"})
	if !reflect.DeepEqual(affected, []string{"example.com/a"}) {
		t.Errorf("Expected only the changed package, got %v", affected)
	}
}

func TestTopologicalSort(t *testing.T) {
	dg := chain()

	sorted, err := dg.TopologicalSort([]string{"example.com/a", "example.com/c", "example.com/b"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"example.com/c", "example.com/b", "example.com/a"}
	if !reflect.DeepEqual(sorted, want) {
		t.Errorf("Expected %v, got %v", want, sorted)
	}
}

func TestLayers(t *testing.T) {
	// a and b both depend on c; d is independent
	dg := NewDependencyGraph()
	dg.AddNode("example.com/a", []string{"example.com/c"})
	dg.AddNode("example.com/b", []string{"example.com/c", "example.com/outside"})
	dg.AddNode("example.com/c", nil)
	dg.AddNode("example.com/d", nil)

	layers, err := dg.Layers([]string{"example.com/a", "example.com/b", "example.com/c", "example.com/d"})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"example.com/c", "example.com/d"},
		{"example.com/a", "example.com/b"},
	}
	if !reflect.DeepEqual(layers, want) {
		t.Errorf("Expected %v, got %v", want, layers)
	}

	layers, err = dg.Layers(nil)
	if err != nil || len(layers) != 0 {
		t.Errorf("Expected no layers, got %v (%v)", layers, err)
	}
}

func TestLayersCycle(t *testing.T) {
	dg := NewDependencyGraph()
	dg.AddNode("example.com/a", []string{"example.com/b"})
	dg.AddNode("example.com/b", []string{"example.com/a"})
	dg.AddNode("example.com/c", nil)

	_, err := dg.Layers([]string{"example.com/a", "example.com/b", "example.com/c"})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}
	if !dg.HasCycle() {
		t.Error("Expected HasCycle to report the cycle")
	}
	if chain().HasCycle() {
		t.Error("Expected no cycle in a chain")
	}
}

func TestGetDependencies(t *testing.T) {
	dg := chain()

	deps := dg.GetDependencies("example.com/a")
	if !reflect.DeepEqual(deps, []string{"example.com/b"}) {
		t.Errorf("Expected [example.com/b], got %v", deps)
	}

	if deps := dg.GetDependencies("example.com/unknown"); len(deps) != 0 {
		t.Errorf("Expected no dependencies, got %v", deps)
	}
}

func TestGetDependents(t *testing.T) {
	dg := chain()
	dg.AddNode("example.com/e", []string{"example.com/d"})

	dependents := dg.GetDependents("example.com/d")
	want := []string{"example.com/c", "example.com/e"}
	if !reflect.DeepEqual(dependents, want) {
		t.Errorf("Expected %v, got %v", want, dependents)
	}
}

func BenchmarkTopologicalSort(b *testing.B) {
	numPackages := 100
	pkgs := make([]string, numPackages)
	dg := NewDependencyGraph()
	for i := 0; i < numPackages; i++ {
		pkgs[i] = fmt.Sprintf("example.com/p%d", i)
		var deps []string
		if i > 0 {
			deps = []string{pkgs[i-1]}
		}
		dg.AddNode(pkgs[i], deps)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dg.TopologicalSort(pkgs); err != nil {
			b.Fatal(err)
		}
	}
}
