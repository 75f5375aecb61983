// Package watch keeps idx files in local directories indexed as they
// appear or change.
//
// Files are selected by doublestar glob patterns ("/data/gfs/**/*.idx").
// Existing files are indexed on start; afterwards fsnotify events trigger
// a re-index once a file has been quiet for the debounce interval, so a
// file that is still being written is parsed once it is complete.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gribidx/internal/idx"
	"gribidx/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

var ErrNoPatterns = errors.New("watch: no patterns")

// Event reports the outcome of indexing one file. Exactly one of Index and
// Err is set.
type Event struct {
	Path  string
	Index *idx.GribIndex
	Err   error
}

// Config configures a Watcher.
type Config struct {
	Patterns []string
	Debounce time.Duration
	Logger   *slog.Logger

	// Handler receives every result, from the Run goroutine.
	Handler func(Event)
}

// Watcher indexes files matching a set of patterns.
type Watcher struct {
	patterns []string
	debounce time.Duration
	logger   *slog.Logger
	handler  func(Event)
}

// New validates cfg and creates a Watcher. Relative patterns are resolved
// against the working directory.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Patterns) == 0 {
		return nil, ErrNoPatterns
	}
	patterns, err := absPatterns(cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("resolve patterns: %w", err)
	}
	for _, p := range patterns {
		if !doublestar.ValidatePathPattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Handler == nil {
		cfg.Handler = func(Event) {}
	}
	return &Watcher{
		patterns: patterns,
		debounce: cfg.Debounce,
		logger:   logging.Default(cfg.Logger).With("component", "watch"),
		handler:  cfg.Handler,
	}, nil
}

// Run indexes existing files and then follows changes until ctx is done.
// Parse failures are reported to the handler and logged; they never stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	// Watch before discovering so files created in between are not missed.
	for _, root := range watchRoots(w.patterns) {
		w.addTree(fsw, root)
	}

	paths, err := discoverFiles(w.patterns)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	w.logger.Info("watching", "patterns", w.patterns, "files", len(paths))
	for _, p := range paths {
		w.index(ctx, p)
	}

	deb := newDebouncer(w.debounce)
	defer deb.close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event, deb)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)

		case f := <-deb.C:
			if deb.accept(f) {
				w.index(ctx, f.path)
			}
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event, deb *debouncer) {
	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// New directory: watch it and pick up anything already inside.
			w.addTree(fsw, event.Name)
			for _, dir := range subdirs(event.Name) {
				entries, err := os.ReadDir(dir)
				if err != nil {
					continue
				}
				for _, e := range entries {
					p := filepath.Join(dir, e.Name())
					if e.Type().IsRegular() && matchesAny(p, w.patterns) {
						deb.schedule(p)
					}
				}
			}
			return
		}
		if info.Mode().IsRegular() && matchesAny(event.Name, w.patterns) {
			deb.schedule(event.Name)
		}

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if deb.cancel(event.Name) {
			w.logger.Debug("file removed before indexing", "path", event.Name)
		}
	}
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) {
	dirs := subdirs(root)
	if len(dirs) == 0 {
		w.logger.Warn("watch root does not exist", "dir", root)
		return
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}
}

func (w *Watcher) index(ctx context.Context, path string) {
	start := time.Now()
	g, err := parseFile(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.logger.Warn("index failed", "path", path, "error", err)
		w.handler(Event{Path: path, Err: err})
		return
	}
	w.logger.Debug("indexed", "path", path, "entries", g.Len(), "duration", time.Since(start))
	w.handler(Event{Path: path, Index: g})
}

func parseFile(ctx context.Context, path string) (*idx.GribIndex, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	g, err := idx.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
