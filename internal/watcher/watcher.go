// Package watcher structures CI log files as they appear in a directory.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/newhook/pipewatch/internal/logging"
	"github.com/newhook/pipewatch/internal/logtree"
	"github.com/newhook/pipewatch/internal/pipeline"
	"github.com/newhook/pipewatch/internal/render"
)

const (
	// DefaultPattern selects log archives and job traces.
	DefaultPattern = "*.{zip,log}"
	// DefaultDebounce is how long a file must be quiet before it is processed.
	DefaultDebounce = 500 * time.Millisecond
	// OutputSuffix is appended to a processed file's name to form its output.
	OutputSuffix = ".json"

	tempPrefix = ".pipewatch-"
)

type archiveDocument struct {
	CleanedLog logtree.Node `json:"cleanedLog"`
	Skipped    []string     `json:"skipped,omitempty"`
}

type traceDocument struct {
	Logs []string `json:"logs"`
}

// Options configures a Watcher.
type Options struct {
	Dir string
	// Pattern is a doublestar glob matched against paths relative to Dir.
	Pattern  string
	Debounce time.Duration
	// ProcessExisting processes matching files already present when Run starts.
	ProcessExisting bool
	// OnProcessed is called after each file is processed.
	OnProcessed func(path, output string, err error)
}

// Watcher monitors a directory tree and writes a structured JSON file next to
// every matching log file that is created or modified. Directories created
// while it runs are watched too.
type Watcher struct {
	fsw         *fsnotify.Watcher
	dir         string
	pattern     string
	debounce    time.Duration
	existing    bool
	onProcessed func(path, output string, err error)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher for opts.Dir.
func New(opts Options) (*Watcher, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", opts.Pattern)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:         fsw,
		dir:         dir,
		pattern:     opts.Pattern,
		debounce:    opts.Debounce,
		existing:    opts.ProcessExisting,
		onProcessed: opts.OnProcessed,
		timers:      make(map[string]*time.Timer),
	}
	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// addCreatedDir watches a directory created while running and schedules the
// matching files that appeared in it before its watch was in place.
func (w *Watcher) addCreatedDir(ctx context.Context, dir string, ready chan<- string) {
	if err := w.addTree(dir); err != nil {
		logging.Warn("failed to watch new directory", "dir", dir, "error", err)
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.matches(path) {
			w.schedule(ctx, path, ready)
		}
		return nil
	})
}

// Run processes files until ctx is cancelled. It closes the underlying
// watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.stopTimers()

	logging.Info("watching directory", "dir", w.dir, "pattern", w.pattern)

	if w.existing {
		matches, err := doublestar.Glob(os.DirFS(w.dir), w.pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("failed to list existing files: %w", err)
		}
		for _, rel := range matches {
			w.handle(filepath.Join(w.dir, filepath.FromSlash(rel)))
		}
	}

	ready := make(chan string, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 && isDir(ev.Name) {
				w.addCreatedDir(ctx, ev.Name, ready)
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.matches(ev.Name) {
				w.schedule(ctx, ev.Name, ready)
			}
		case path := <-ready:
			w.handle(path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watcher error", "error", err)
		}
	}
}

// matches reports whether path is a regular file selected by the pattern.
// Files written by the watcher itself never match.
func (w *Watcher) matches(path string) bool {
	if strings.HasSuffix(path, OutputSuffix) || strings.HasPrefix(filepath.Base(path), tempPrefix) {
		return false
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	if err != nil || !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(ctx, path, ready)
}

// scheduleLocked replaces any pending timer for path. A replaced timer that
// already fired finds itself superseded and does nothing. w.mu must be held.
func (w *Watcher) scheduleLocked(ctx context.Context, path string, ready chan<- string) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	w.timers[path] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) handle(path string) {
	output, err := ProcessFile(path)
	if err != nil {
		logging.Error("failed to process log file", "path", path, "error", err)
	} else {
		logging.Info("processed log file", "path", path, "output", output)
	}
	if w.onProcessed != nil {
		w.onProcessed(path, output, err)
	}
}

// ProcessFile structures one file and writes the result to path+OutputSuffix.
// A .zip file is treated as a run log archive and yields {"cleanedLog": tree};
// anything else is a job trace and yields {"logs": lines}.
func ProcessFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		result, err := pipeline.BuildTree(data)
		if err != nil {
			return "", err
		}
		skipped := make([]string, 0, len(result.Skipped))
		for _, s := range result.Skipped {
			skipped = append(skipped, s.Name)
		}
		doc = archiveDocument{CleanedLog: result.Tree, Skipped: skipped}
	} else {
		doc = traceDocument{Logs: pipeline.TraceLines(data)}
	}

	output := path + OutputSuffix
	if err := writeJSON(output, doc); err != nil {
		return "", err
	}
	return output, nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := render.JSON(tmp, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
