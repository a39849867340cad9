package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/depotkit/pkg/depot/logging"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

// DefaultExtensions are the file extensions treated as manifests.
var DefaultExtensions = []string{".manifest"}

// Progress reports indexing progress.
type Progress struct {
	Root        string
	Scanned     int64
	Indexed     int64
	Failed      int64
	CurrentPath string
}

// ProgressFunc is called with progress updates.
type ProgressFunc func(Progress)

// IndexError records a manifest that could not be indexed.
type IndexError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Result contains the final indexing results.
type Result struct {
	Root     string
	Scanned  int64
	Indexed  int64
	Failed   int64
	Removed  int
	Errors   []IndexError
	Duration time.Duration
}

// Indexer walks directories and records every manifest it can parse.
type Indexer struct {
	catalog    *Catalog
	extensions []string
	now        func() time.Time
}

// NewIndexer creates an indexer for files with the given extensions.
// An empty list uses DefaultExtensions.
func NewIndexer(c *Catalog, extensions []string) *Indexer {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &Indexer{catalog: c, extensions: normalized, now: time.Now}
}

// Catalog returns the catalog the indexer writes to.
func (idx *Indexer) Catalog() *Catalog {
	return idx.catalog
}

// Matches reports whether path has one of the manifest extensions.
func (idx *Indexer) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range idx.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// summarizeFile loads path and builds its summary without storing it.
func (idx *Indexer) summarizeFile(path string, info fs.FileInfo) (*Summary, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	s := Summarize(path, m)
	s.FileSize = info.Size()
	s.ModTime = info.ModTime().UTC()
	s.IndexedAt = idx.now().UTC()
	return s, nil
}

// IndexFile loads one manifest and stores its summary.
func (idx *Indexer) IndexFile(path string) (*Summary, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := statFile(absPath)
	if err != nil {
		return nil, err
	}
	s, err := idx.summarizeFile(absPath, info)
	if err != nil {
		return nil, err
	}
	if err := idx.catalog.Put(s); err != nil {
		return nil, err
	}
	logging.Get("catalog").Debug("manifest indexed", "path", absPath, "depot", s.DepotID, "manifest", s.ManifestID)
	return s, nil
}

// indexState holds the state during indexing.
type indexState struct {
	scanned     atomic.Int64
	indexed     atomic.Int64
	failed      atomic.Int64
	currentPath atomic.Value

	mu        sync.Mutex
	summaries []*Summary
	errors    []IndexError
}

// Index walks root, stores a summary for every manifest found and drops
// catalog entries under root whose files are gone.
func (idx *Indexer) Index(ctx context.Context, root string, onProgress ProgressFunc) (*Result, error) {
	startTime := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	state := &indexState{}
	state.currentPath.Store("")

	done := idx.startProgressReporter(ctx, absRoot, state, onProgress)
	defer func() {
		close(done)
		idx.sendProgress(absRoot, state, onProgress)
	}()

	if err := idx.walk(ctx, absRoot, state); err != nil {
		return nil, err
	}

	if err := idx.catalog.PutBatch(state.summaries); err != nil {
		return nil, err
	}

	removed, err := idx.pruneMissing(absRoot, state.summaries)
	if err != nil {
		return nil, err
	}

	sort.Slice(state.errors, func(i, j int) bool {
		return state.errors[i].Path < state.errors[j].Path
	})

	result := &Result{
		Root:     absRoot,
		Scanned:  state.scanned.Load(),
		Indexed:  state.indexed.Load(),
		Failed:   state.failed.Load(),
		Removed:  removed,
		Errors:   state.errors,
		Duration: time.Since(startTime),
	}

	logging.Get("catalog").Info("index complete",
		"root", absRoot,
		"scanned", result.Scanned,
		"indexed", result.Indexed,
		"failed", result.Failed,
		"removed", result.Removed,
		"duration", result.Duration)

	return result, nil
}

func (idx *Indexer) walk(ctx context.Context, absRoot string, state *indexState) error {
	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return nil //nolint:nilerr // Intentionally skip errors and continue walking
		}
		if d.IsDir() || !d.Type().IsRegular() || !idx.Matches(path) {
			return nil
		}

		state.scanned.Add(1)
		state.currentPath.Store(path)

		info, err := d.Info()
		if err == nil {
			var s *Summary
			if s, err = idx.summarizeFile(path, info); err == nil {
				state.indexed.Add(1)
				state.mu.Lock()
				state.summaries = append(state.summaries, s)
				state.mu.Unlock()
				return nil
			}
		}

		state.failed.Add(1)
		logging.Get("catalog").Warn("skipping manifest", "path", path, "error", err)
		state.mu.Lock()
		state.errors = append(state.errors, IndexError{Path: path, Err: err.Error()})
		state.mu.Unlock()
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("walking %s: %w", absRoot, err)
	}
	return nil
}

// pruneMissing removes catalog entries under root that were not seen in
// this walk.
func (idx *Indexer) pruneMissing(root string, seen []*Summary) (int, error) {
	present := make(map[string]bool, len(seen))
	for _, s := range seen {
		present[s.Path] = true
	}

	all, err := idx.catalog.List(0)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range all {
		if !IsPathUnder(s.Path, root) || present[s.Path] {
			continue
		}
		if err := idx.catalog.Delete(s.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// sendProgress sends a progress update if callback is provided.
func (idx *Indexer) sendProgress(absRoot string, state *indexState, onProgress ProgressFunc) {
	if onProgress != nil {
		cp, _ := state.currentPath.Load().(string)
		onProgress(Progress{
			Root:        absRoot,
			Scanned:     state.scanned.Load(),
			Indexed:     state.indexed.Load(),
			Failed:      state.failed.Load(),
			CurrentPath: cp,
		})
	}
}

// startProgressReporter starts the progress reporting goroutine.
func (idx *Indexer) startProgressReporter(ctx context.Context, absRoot string, state *indexState, onProgress ProgressFunc) chan struct{} {
	done := make(chan struct{})

	idx.sendProgress(absRoot, state, onProgress)

	if onProgress != nil {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					idx.sendProgress(absRoot, state, onProgress)
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	return done
}

func statFile(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	return info, nil
}
