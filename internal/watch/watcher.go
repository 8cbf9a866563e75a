// Package watch re-runs a callback when Go sources of a module change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DebounceInterval is how long the watcher waits for more changes
const DebounceInterval = 100 * time.Millisecond

// DefaultPatterns are the files whose changes can alter the lint result
var DefaultPatterns = []string{"*.go", "go.mod", "contexted.yml", "contexted.yaml"}

// FileWatcher monitors a directory tree and triggers callbacks
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	patterns  []string
	ignored   []string // directories relative to root
	logger    *zap.Logger
	onChange  func([]string) error
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher for the tree at root. ignored lists
// directories, relative to root, that are not watched.
func NewFileWatcher(root string, patterns, ignored []string, logger *zap.Logger, onChange func([]string) error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	cleaned := make([]string, 0, len(ignored))
	for _, dir := range ignored {
		cleaned = append(cleaned, filepath.ToSlash(filepath.Clean(dir)))
	}

	fw := &FileWatcher{
		root:      root,
		watcher:   watcher,
		debouncer: NewDebouncer(DebounceInterval),
		patterns:  patterns,
		ignored:   cleaned,
		logger:    logger,
		onChange:  onChange,
		stopChan:  make(chan struct{}),
	}

	fw.debouncer.SetCallback(func(files []string) {
		if err := fw.onChange(files); err != nil {
			fw.logger.Debug("change handler failed", zap.Error(err))
		}
	})

	return fw, nil
}

// Start watches every directory of the tree and begins handling events
func (fw *FileWatcher) Start() error {
	dirs, err := fw.findDirectories(fw.root)
	if err != nil {
		return fmt.Errorf("failed to find directories: %w", err)
	}

	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	fw.logger.Debug("watching", zap.String("root", fw.root), zap.Int("directories", len(dirs)))

	fw.wg.Add(1)
	go fw.watch()

	return nil
}

// Run starts the watcher and blocks until ctx is done
func (fw *FileWatcher) Run(ctx context.Context) error {
	if err := fw.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return fw.Stop()
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

// watch is the main event loop
func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watch error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if fw.shouldIgnore(event.Name) {
		return
	}

	// fsnotify is not recursive: pick up new directories as they appear
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			dirs, err := fw.findDirectories(event.Name)
			if err != nil {
				fw.logger.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
				return
			}
			for _, dir := range dirs {
				if err := fw.watcher.Add(dir); err != nil {
					fw.logger.Warn("cannot watch new directory", zap.String("dir", dir), zap.Error(err))
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if fw.matchesPattern(event.Name) {
		fw.logger.Debug("file changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
		fw.debouncer.Add(event.Name)
	}
}

// findDirectories lists dir and its subdirectories, skipping the ones the
// scanner skips
func (fw *FileWatcher) findDirectories(dir string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != fw.root && fw.shouldIgnore(p) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	return dirs, err
}

// shouldIgnore checks if a path should be ignored
func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return false
	}

	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") || strings.HasPrefix(elem, "_") ||
			elem == "vendor" || elem == "testdata" {
			return true
		}
	}

	for _, dir := range fw.ignored {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

// matchesPattern checks if a file matches any of the watch patterns
func (fw *FileWatcher) matchesPattern(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range fw.patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Debouncer collects file changes and triggers callbacks after a delay
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopChan chan struct{}
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Add adds a file to the debouncer
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	select {
	case <-d.stopChan:
		return
	default:
	}

	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush triggers the callback with the accumulated files, sorted
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 {
		d.mutex.Unlock()
		return
	}

	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	sort.Strings(files)
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop stops the debouncer
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
}
