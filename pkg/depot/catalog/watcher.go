package catalog

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/depotkit/pkg/depot/logging"
)

// EventKind describes what the watcher did in response to a filesystem
// event.
type EventKind int

// Watcher event kinds.
const (
	EventIndexed EventKind = iota
	EventRemoved
	EventFailed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventIndexed:
		return "indexed"
	case EventRemoved:
		return "removed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is reported to the Run callback after the catalog was updated.
type Event struct {
	Kind    EventKind
	Path    string
	Summary *Summary
	Err     error
}

// Watcher keeps the catalog current by re-indexing manifests as they are
// created, rewritten or removed.
type Watcher struct {
	indexer *Indexer
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// NewWatcher creates a watcher that writes through idx.
func NewWatcher(idx *Indexer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		indexer: idx,
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch starts watching a path recursively.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

// Watched reports whether dir is being watched.
func (w *Watcher) Watched(dir string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[dir]
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Run starts the event loop. It blocks until the context is cancelled or
// the watcher is closed. onEvent may be nil.
func (w *Watcher) Run(ctx context.Context, onEvent func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			for _, ev := range w.handleEvent(ctx, event) {
				if onEvent != nil {
					onEvent(ev)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) []Event {
	switch {
	case event.Op&fsnotify.Create != 0:
		return w.handleCreate(ctx, event.Name)
	case event.Op&fsnotify.Write != 0:
		return w.handleWrite(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename's new name arrives as a separate Create.
		return w.handleRemove(event.Name)
	}
	return nil
}

func (w *Watcher) handleCreate(ctx context.Context, path string) []Event {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}

	if !info.IsDir() {
		return w.handleWrite(path)
	}

	// Watch the new tree first so files written into it are not missed,
	// then index whatever it already holds.
	if err := w.Watch(path); err != nil {
		return nil
	}
	result, err := w.indexer.Index(ctx, path, nil)
	if err != nil {
		return []Event{{Kind: EventFailed, Path: path, Err: err}}
	}
	events := make([]Event, 0, result.Indexed)
	if result.Indexed > 0 {
		list, err := w.indexer.Catalog().List(0)
		if err == nil {
			for _, s := range list {
				if IsPathUnder(s.Path, path) {
					events = append(events, Event{Kind: EventIndexed, Path: s.Path, Summary: s})
				}
			}
		}
	}
	return events
}

func (w *Watcher) handleWrite(path string) []Event {
	if !w.indexer.Matches(path) {
		return nil
	}

	s, err := w.indexer.IndexFile(path)
	if err != nil {
		// Writers often produce several events; a partial file is picked
		// up again on the next write.
		logging.Get("watcher").Debug("manifest not indexed", "path", path, "error", err)
		return []Event{{Kind: EventFailed, Path: path, Err: err}}
	}
	return []Event{{Kind: EventIndexed, Path: path, Summary: s}}
}

func (w *Watcher) handleRemove(path string) []Event {
	w.mu.Lock()
	if w.paths[path] {
		_ = w.watcher.Remove(path)
		delete(w.paths, path)
	}
	for childPath := range w.paths {
		if isSubPath(childPath, path) {
			_ = w.watcher.Remove(childPath)
			delete(w.paths, childPath)
		}
	}
	w.mu.Unlock()

	removed, err := w.indexer.Catalog().DeleteUnder(path)
	if err != nil {
		logging.Get("watcher").Warn("failed to drop removed path", "path", path, "error", err)
		return []Event{{Kind: EventFailed, Path: path, Err: err}}
	}
	if removed == 0 {
		return nil
	}
	return []Event{{Kind: EventRemoved, Path: path}}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
