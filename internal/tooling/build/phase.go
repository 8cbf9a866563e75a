// Package build runs the contexted compilation phase: the context lint,
// the delegation generator and the optional recompilation pass.
package build

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/cli/config"
	"github.com/curiosum-dev/contexted/internal/cli/logging"
	"github.com/curiosum-dev/contexted/internal/codegen/delegate"
	"github.com/curiosum-dev/contexted/internal/tracer"
	ustrings "github.com/curiosum-dev/contexted/internal/util/strings"
)

// Result summarizes one run
type Result struct {
	References int
	Described  []string
	Unchanged  []string
	Written    []string
	Recompiled []string
}

// Phase runs the compilation steps for one configuration
type Phase struct {
	Config *config.Config
	Logger *logging.Logger
	Store  *delegate.Store
}

// NewPhase creates a phase storing descriptions in the configured artifact dir
func NewPhase(cfg *config.Config, logger *logging.Logger) *Phase {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Phase{
		Config: cfg,
		Logger: logger,
		Store:  delegate.NewStore(cfg.ArtifactDir()),
	}
}

// Run traces the module, then describes delegation sources and writes the
// delegation targets. A context violation stops the run before anything
// is generated.
func (p *Phase) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	scanner, err := p.scanner()
	if err != nil {
		return nil, err
	}

	t := tracer.New(p.Config.Contexts, p.Config.ExcludePaths)
	err = scanner.Scan(ctx, func(ref tracer.Reference) error {
		result.References++
		return t.Trace(ref)
	})
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("module traced",
		zap.String("module", scanner.ModulePath()),
		zap.Int("references", result.References))

	jobs, err := orderJobs(p.Config.Delegates)
	if err != nil {
		return nil, err
	}

	state, err := LoadState(p.Store.Dir())
	if err != nil {
		return nil, err
	}

	described := make(map[string]bool)
	for _, job := range jobs {
		for _, src := range job.Sources {
			if described[src] {
				continue
			}
			described[src] = true
			if p.upToDate(state, src) {
				p.Logger.Debug("description up to date", zap.String("package", src))
				result.Unchanged = append(result.Unchanged, src)
				continue
			}
			if err := p.describe(src, state); err != nil {
				return nil, err
			}
			result.Described = append(result.Described, src)
		}

		out, err := p.emit(job)
		if err != nil {
			return nil, err
		}
		result.Written = append(result.Written, out)
	}
	if err := state.Save(p.Store.Dir()); err != nil {
		return nil, err
	}

	if p.Config.EnableRecompilation {
		recompiled, err := p.Recompile(ctx)
		if err != nil {
			return nil, err
		}
		result.Recompiled = recompiled
	}

	return result, nil
}

// Trace runs only the context lint
func (p *Phase) Trace(ctx context.Context) error {
	scanner, err := p.scanner()
	if err != nil {
		return err
	}
	return tracer.Run(ctx, scanner, tracer.New(p.Config.Contexts, p.Config.ExcludePaths))
}

// Recompile discards the descriptions of every context and delegation
// source, describes them again layer by layer in dependency order, and
// rewrites the delegation targets. Logging below error level is silenced
// for the pass.
func (p *Phase) Recompile(ctx context.Context) ([]string, error) {
	restore := logging.WithLevel(p.Logger.Level, zapcore.ErrorLevel)
	defer restore()

	scanner, err := p.scanner()
	if err != nil {
		return nil, err
	}
	graph, err := BuildGraph(ctx, scanner)
	if err != nil {
		return nil, err
	}

	var targets []string
	seen := make(map[string]bool)
	add := func(pkg string) {
		if _, ok := graph.GetNode(pkg); ok && !seen[pkg] {
			seen[pkg] = true
			targets = append(targets, pkg)
		}
	}
	for _, ctxPath := range p.Config.Contexts {
		add(ctxPath)
	}
	for _, job := range p.Config.Delegates {
		for _, src := range job.Sources {
			add(src)
		}
	}

	state, err := LoadState(p.Store.Dir())
	if err != nil {
		return nil, err
	}
	for _, pkg := range targets {
		if err := p.Store.Remove(pkg); err != nil {
			return nil, err
		}
		state.Forget(pkg)
	}

	layers, err := graph.Layers(targets)
	if err != nil {
		return nil, err
	}

	var recompiled []string
	for _, layer := range layers {
		done := make([]bool, len(layer))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, pkg := range layer {
			i, pkg := i, pkg
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				err := p.describe(pkg, state)
				switch {
				case err == nil:
					done[i] = true
					return nil
				case errors.Is(err, delegate.ErrNotImportable), errors.Is(err, delegate.ErrNoPackage):
					p.Logger.Debug("not describable", zap.String("package", pkg), zap.Error(err))
					return nil
				default:
					return err
				}
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, pkg := range layer {
			if done[i] {
				recompiled = append(recompiled, pkg)
			}
		}
	}

	jobs, err := orderJobs(p.Config.Delegates)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if _, err := p.emit(job); err != nil {
			return nil, err
		}
	}
	if err := state.Save(p.Store.Dir()); err != nil {
		return nil, err
	}

	return recompiled, nil
}

// UnknownContexts returns the configured contexts that match no package of
// the module, with the module's package paths for suggestions
func (p *Phase) UnknownContexts() (unknown, packages []string, err error) {
	scanner, err := p.scanner()
	if err != nil {
		return nil, nil, err
	}
	pkgs, err := scanner.Packages()
	if err != nil {
		return nil, nil, err
	}

	t := tracer.New(p.Config.Contexts, nil)
	matched := make(map[string]bool)
	for _, pkg := range pkgs {
		packages = append(packages, pkg.ImportPath)
		if ctx, ok := t.ContextOf(pkg.ImportPath); ok {
			matched[ctx] = true
		}
	}
	for _, ctx := range p.Config.Contexts {
		if !matched[ctx] {
			unknown = append(unknown, ctx)
		}
	}
	return unknown, packages, nil
}

func (p *Phase) scanner() (*tracer.Scanner, error) {
	var skip []string
	if rel, err := filepath.Rel(p.Config.Root, p.Config.ArtifactDir()); err == nil && !strings.HasPrefix(rel, "..") {
		skip = append(skip, rel)
	}
	return tracer.NewScanner(p.Config.Root, skip, p.Logger.Logger)
}

// upToDate reports whether the stored description of importPath was made
// from its current sources
func (p *Phase) upToDate(state *State, importPath string) bool {
	dir, err := p.Config.PackageDir(importPath)
	if err != nil {
		return false
	}
	hash, err := PackageHash(dir)
	if err != nil || !state.Unchanged(importPath, hash) {
		return false
	}
	_, err = p.Store.Load(importPath)
	return err == nil
}

// describe writes the description of one package to the store and records
// the source hash it was made from
func (p *Phase) describe(importPath string, state *State) error {
	dir, err := p.Config.PackageDir(importPath)
	if err != nil {
		return cerrors.NewInvalidDelegateSource(importPath, err)
	}

	iface, err := delegate.Describe(dir, importPath)
	if err != nil {
		return cerrors.NewInvalidDelegateSource(importPath, err)
	}
	for _, skipped := range iface.Skipped {
		p.Logger.Warn("function not delegated",
			zap.String("package", importPath),
			zap.String("function", skipped.Name),
			zap.String("reason", skipped.Reason))
	}

	if err := p.Store.Save(iface); err != nil {
		return err
	}
	if hash, err := PackageHash(dir); err == nil {
		state.Record(importPath, hash)
	}
	p.Logger.Debug("package described",
		zap.String("package", importPath),
		zap.Int("functions", len(iface.Funcs)))
	return nil
}

// emit generates and writes the forwarders of one job
func (p *Phase) emit(job config.DelegateConfig) (string, error) {
	sources := make([]*delegate.Interface, 0, len(job.Sources))
	for _, src := range job.Sources {
		iface, err := p.Store.Load(src)
		if errors.Is(err, delegate.ErrNotDescribed) {
			return "", cerrors.NewMissingDescription(src, err)
		}
		if err != nil {
			return "", cerrors.NewInvalidDelegateSource(src, err)
		}
		sources = append(sources, iface)
	}

	out, err := p.Config.OutputPath(job)
	if err != nil {
		return "", err
	}

	pkgName := job.Package
	if pkgName == "" {
		pkgName = packageName(filepath.Dir(out), out, job.Target)
	}

	code, err := delegate.Generate(delegate.Target{Package: pkgName, ImportPath: job.Target}, sources)
	if err != nil {
		var dup *delegate.DuplicateError
		if errors.As(err, &dup) {
			return "", cerrors.NewDuplicateDelegate(dup.Name, dup.Sources, job.Target).WithCause(err)
		}
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(out), err)
	}
	if err := os.WriteFile(out, code, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}

	p.Logger.Info("delegates written",
		zap.String("target", job.Target),
		zap.String("file", out))
	return out, nil
}

// packageName reads the package clause of the first Go file in dir other
// than skip, falling back to the import path's last element
func packageName(dir, skip, importPath string) string {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			name := filepath.Join(dir, e.Name())
			if e.IsDir() || name == skip || !strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), "_test.go") {
				continue
			}
			f, err := parser.ParseFile(token.NewFileSet(), name, nil, parser.PackageClauseOnly)
			if err == nil {
				return f.Name.Name
			}
		}
	}
	return ustrings.DefaultPackageName(importPath)
}

// orderJobs runs a job after every job whose target it uses as a source
func orderJobs(jobs []config.DelegateConfig) ([]config.DelegateConfig, error) {
	byTarget := make(map[string]config.DelegateConfig, len(jobs))
	dg := NewDependencyGraph()
	targets := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if _, dup := byTarget[job.Target]; dup {
			return nil, fmt.Errorf("%w: %s is the target of more than one delegation job", config.ErrInvalidConfig, job.Target)
		}
		byTarget[job.Target] = job
		targets = append(targets, job.Target)
		dg.AddNode(job.Target, job.Sources)
	}

	sorted, err := dg.TopologicalSort(targets)
	if err != nil {
		return nil, err
	}

	ordered := make([]config.DelegateConfig, len(sorted))
	for i, target := range sorted {
		ordered[i] = byTarget[target]
	}
	return ordered, nil
}

// BuildGraph scans the module and records the imports each package makes
// of other module packages. Test files are ignored.
func BuildGraph(ctx context.Context, scanner *tracer.Scanner) (*DependencyGraph, error) {
	packages, err := scanner.Packages()
	if err != nil {
		return nil, err
	}

	modulePath := scanner.ModulePath()
	imports := make(map[string][]string)
	err = scanner.Scan(ctx, func(ref tracer.Reference) error {
		if ref.Kind != tracer.KindImport && ref.Kind != tracer.KindAlias {
			return nil
		}
		if strings.HasSuffix(ref.File, "_test.go") {
			return nil
		}
		if ref.To == modulePath || strings.HasPrefix(ref.To, modulePath+"/") {
			imports[ref.From] = append(imports[ref.From], ref.To)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dg := NewDependencyGraph()
	for _, pkg := range packages {
		if err := dg.AddPackage(pkg, imports[pkg.ImportPath]); err != nil {
			return nil, err
		}
	}
	return dg, nil
}
