// Package hotswap reloads a module when the files it was built from change.
//
// A Watcher observes files and directories with fsnotify, batches the events
// of one burst of writes and calls its ReloadFunc once per batch. Reattacher
// adapts a definition loader into a ReloadFunc that hot swaps a Module.
package hotswap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/comalice/fractalx"
)

// ReloadFunc is called with the deduplicated, sorted paths of one batch.
type ReloadFunc func(paths []string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period that closes a batch. Defaults to 100ms.
	Debounce time.Duration
	// Extensions limits directory watches to these file extensions (".yaml").
	// Empty watches every file.
	Extensions []string
	Logger     *slog.Logger
}

// Watcher is a debounced file watcher.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reload   ReloadFunc
	debounce time.Duration
	exts     map[string]bool
	logger   *slog.Logger

	files map[string]bool // watched files, by absolute path
	dirs  map[string]bool // directories watched as a whole

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
	reloads  int
}

// New creates a watcher of paths. A file path is watched through its
// directory so editors that replace files on save are still seen.
func New(paths []string, reload ReloadFunc, opts Options) (*Watcher, error) {
	if reload == nil {
		return nil, errors.New("reload func is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		reload:   reload,
		debounce: opts.Debounce,
		exts:     make(map[string]bool, len(opts.Extensions)),
		logger:   opts.Logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		changes:  make(chan string, 256),
		done:     make(chan struct{}),
	}
	for _, ext := range opts.Extensions {
		w.exts[ext] = true
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs[abs] = true
		} else {
			w.files[abs] = true
		}
	}
	return w, nil
}

// Start begins watching. Events are processed until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	watched := make(map[string]bool)
	for dir := range w.dirs {
		watched[dir] = true
	}
	for file := range w.files {
		watched[filepath.Dir(file)] = true
	}
	for dir := range watched {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Reloads returns how many batches were handed to the ReloadFunc.
func (w *Watcher) Reloads() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reloads
}

func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	return len(w.exts) == 0 || w.exts[filepath.Ext(path)]
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.relevant(path) {
				continue
			}
			select {
			case w.changes <- path:
			default:
				w.logger.Warn("hotswap change buffer full", "path", path)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("hotswap watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	batch := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		if len(batch) == 0 {
			return
		}
		paths := make([]string, 0, len(batch))
		for p := range batch {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(batch)

		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()
		if err := w.reload(paths); err != nil {
			w.logger.Error("hotswap reload failed", "paths", paths, "error", err)
			return
		}
		w.logger.Info("hotswap reloaded", "paths", paths)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.changes:
			batch[path] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// Reattacher returns a ReloadFunc that rebuilds the root definition with load
// and hot swaps m with it. A load error leaves the module untouched.
func Reattacher(m *fractalx.Module, load func(paths []string) (*fractalx.Definition, error)) ReloadFunc {
	return func(paths []string) error {
		def, err := load(paths)
		if err != nil {
			return fmt.Errorf("load definition: %w", err)
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("validate definition: %w", err)
		}
		return m.Reattach(def)
	}
}
