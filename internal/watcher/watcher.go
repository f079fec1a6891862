// Package watcher keeps a store in step with directories on disk: changed
// files are re-ingested after a quiet period and deleted files are dropped.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/extract"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 400 * time.Millisecond

// Handler receives debounced file events. Calls are serialized.
type Handler interface {
	FileChanged(ctx context.Context, path string)
	FileRemoved(ctx context.Context, path string)
}

type eventKind int

const (
	eventChanged eventKind = iota
	eventRemoved
)

type event struct {
	kind eventKind
	path string
}

// Watcher watches directory trees and forwards file events to a Handler.
type Watcher struct {
	handler   Handler
	recursive bool
	debounce  time.Duration
	exclude   []string
	accept    func(path string) bool
	logger    *zap.Logger

	mu        sync.Mutex
	roots     []string
	rootPaths map[string][]string // root -> directories registered with fsnotify
	timers    map[string]*time.Timer
	fsw       *fsnotify.Watcher
	queue     chan event
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet period before a changed file is handed on.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExclude skips paths matching any doublestar pattern, relative to their root.
func WithExclude(patterns []string) Option {
	return func(w *Watcher) { w.exclude = append([]string(nil), patterns...) }
}

// WithFilter replaces the default supported-format check.
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) { w.accept = accept }
}

// New creates a watcher over roots. It does nothing until Start.
func New(roots []string, recursive bool, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:   handler,
		recursive: recursive,
		debounce:  DefaultDebounce,
		accept: func(path string) bool {
			_, ok := extract.FormatFromPath(path)
			return ok
		},
		logger:    zap.NewNop(),
		roots:     append([]string(nil), roots...),
		rootPaths: make(map[string][]string),
		timers:    make(map[string]*time.Timer),
		queue:     make(chan event, 256),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the roots and begins delivering events. It returns once the
// watch is in place; delivery continues until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	roots := w.roots
	w.roots = nil
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err == nil {
			err = w.addRootLocked(abs)
		}
		if err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
		w.roots = append(w.roots, abs)
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching directories",
		zap.Strings("roots", w.Directories()),
		zap.Bool("recursive", w.recursive),
		zap.Duration("debounce", w.debounce))

	w.wg.Add(2)
	go w.run(ctx, fsw)
	go w.deliver(ctx)
	return nil
}

// Wait blocks until the watcher has stopped.
func (w *Watcher) Wait() {
	<-w.done
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// deliver hands queued events to the handler one at a time.
func (w *Watcher) deliver(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.queue:
			switch ev.kind {
			case eventChanged:
				w.handler.FileChanged(ctx, ev.path)
			case eventRemoved:
				w.handler.FileRemoved(ctx, ev.path)
			}
		}
	}
}

func (w *Watcher) enqueue(ev event) {
	select {
	case w.queue <- ev:
	case <-w.done:
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	root, ok := w.rootOf(path)
	if !ok || w.excluded(root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		w.mu.Lock()
		w.forgetDirLocked(path)
		w.mu.Unlock()
		if w.accept(path) {
			w.enqueue(event{kind: eventRemoved, path: path})
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.handleNewDirectory(root, path)
			}
			return
		}
		if info.Mode().IsRegular() && w.accept(path) {
			w.debounceChanged(path)
		}
	}
}

// handleNewDirectory starts watching a directory created or moved under a
// root and reports the files already inside it.
func (w *Watcher) handleNewDirectory(root, dir string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	added := w.watchTreeLocked(root, dir)
	w.rootPaths[root] = append(w.rootPaths[root], added...)
	w.mu.Unlock()
	w.logger.Debug("watching new directory", zap.String("path", dir))
	w.syncDirectory(root, dir)
}

func (w *Watcher) rootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return root, true
		}
	}
	return "", false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) excluded(root, path string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.exclude {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceChanged(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueue(event{kind: eventChanged, path: path})
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// AddDirectory adds a root while running. When syncExisting is set, files
// already in the tree are reported as changed.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return errors.New("watcher is not running")
	}
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	w.logger.Info("directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs, abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory: " + root)
	}
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.rootPaths[root] = []string{root}
		return nil
	}
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	w.rootPaths[root] = append([]string{root}, w.watchTreeLocked(root, root)...)
	return nil
}

// watchTreeLocked registers every non-excluded directory below dir and
// returns them. Directories that cannot be watched are logged and skipped.
func (w *Watcher) watchTreeLocked(root, dir string) []string {
	var added []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if w.excluded(root, path) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("cannot watch directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		added = append(added, path)
		return nil
	})
	return added
}

func (w *Watcher) forgetDirLocked(path string) {
	for root, dirs := range w.rootPaths {
		kept := dirs[:0]
		for _, d := range dirs {
			if d != path && !inDir(path, d) {
				kept = append(kept, d)
			}
		}
		w.rootPaths[root] = kept
	}
}

func (w *Watcher) syncDirectory(root, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.excluded(root, path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.accept(path) {
			w.enqueue(event{kind: eventChanged, path: path})
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Stored documents are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if w.fsw != nil {
		for _, p := range w.rootPaths[abs] {
			_ = w.fsw.Remove(p)
		}
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Info("directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles reports every supported file under the roots as changed.
// Call it after Start to pick up files that appeared while nothing was watching.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root, root)
	}
}

// Stop stops the watcher. Pending debounced events are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
		w.fsw = nil
	}
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
