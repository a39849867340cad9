// Package chunkstore verifies decompressed depot chunks on disk against the
// checksums recorded in a manifest. A store is a flat directory holding one
// file per chunk, named by the lower-case hex SHA of the chunk.
package chunkstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/depotkit/pkg/depot/adler32"
	"github.com/jamesainslie/depotkit/pkg/depot/logging"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

var (
	// ErrChecksumMismatch is returned when chunk bytes do not match the
	// recorded Adler-32.
	ErrChecksumMismatch = errors.New("chunk checksum mismatch")

	// ErrSizeMismatch is returned when the chunk length differs from the
	// recorded size.
	ErrSizeMismatch = errors.New("chunk size mismatch")

	// ErrMissingChunk is returned when a chunk file does not exist.
	ErrMissingChunk = errors.New("chunk not found")
)

var logger = logging.Get("chunkstore")

// Store is a directory of decompressed chunk files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is not created.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for the chunk with the given SHA.
func (s *Store) Path(sha []byte) string {
	return filepath.Join(s.dir, hex.EncodeToString(sha))
}

// Put writes data as a chunk and returns its entry. Offset and
// CompressedSize are left for the caller.
func (s *Store) Put(data []byte) (manifest.ChunkEntry, error) {
	sum := sha1.Sum(data) //nolint:gosec // chunk identifiers are SHA-1 by format
	entry := manifest.ChunkEntry{
		SHA:     sum[:],
		Adler32: adler32.Checksum(data),
		Size:    uint32(len(data)),
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return manifest.ChunkEntry{}, fmt.Errorf("creating chunk directory: %w", err)
	}
	if err := os.WriteFile(s.Path(entry.SHA), data, 0o644); err != nil {
		return manifest.ChunkEntry{}, fmt.Errorf("writing chunk: %w", err)
	}
	return entry, nil
}

// Check verifies one chunk file against entry.
func (s *Store) Check(entry *manifest.ChunkEntry) error {
	f, err := os.Open(s.Path(entry.SHA))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %x", ErrMissingChunk, entry.SHA)
		}
		return fmt.Errorf("opening chunk: %w", err)
	}
	defer func() { _ = f.Close() }()

	return VerifyChunk(f, entry)
}

// VerifyChunk streams r through Adler-32 and compares the checksum and
// length with entry.
func VerifyChunk(r io.Reader, entry *manifest.ChunkEntry) error {
	h := adler32.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return fmt.Errorf("reading chunk: %w", err)
	}

	if n != int64(entry.Size) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, entry.Size)
	}
	if got := h.Sum32(); got != entry.Adler32 {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, got, entry.Adler32)
	}
	return nil
}

// Options configures Verify.
type Options struct {
	// Workers is the number of files verified concurrently.
	// Values below 1 use runtime.NumCPU().
	Workers int

	// OnProgress is called after each file with the number of chunks
	// checked so far. It must be safe to call from multiple goroutines.
	OnProgress func(checked int64)
}

// Failure describes one chunk that did not verify.
type Failure struct {
	File   string `json:"file"`
	Offset uint64 `json:"offset"`
	SHA    string `json:"sha"`
	Reason string `json:"reason"`
}

// Report summarizes a verification run.
type Report struct {
	Files      int       `json:"files"`
	ValidFiles int       `json:"valid_files"`
	Checked    int64     `json:"checked"`
	Valid      int64     `json:"valid"`
	Missing    int64     `json:"missing"`
	Mismatched int64     `json:"mismatched"`
	Failures   []Failure `json:"failures,omitempty"`
}

// OK reports whether every chunk verified.
func (r *Report) OK() bool {
	return r.Checked == r.Valid
}

// Verify checks every chunk of every file in m. It sets Valid on each
// chunk and on each file whose chunks all verified. Missing and corrupt
// chunks are recorded in the report; only I/O errors and cancellation
// abort the run.
func (s *Store) Verify(ctx context.Context, m *manifest.Manifest, opts Options) (*Report, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var (
		checked, valid, missing, mismatched atomic.Int64
		validFiles                          atomic.Int64

		failures   []Failure
		failuresMu sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	entries := m.Listing.Entries
	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		f := &entries[i]

		g.Go(func() error {
			ok := true
			for j := range f.Chunks {
				if err := gctx.Err(); err != nil {
					return err
				}
				c := &f.Chunks[j]
				checked.Add(1)

				err := s.Check(&c.ChunkEntry)
				switch {
				case err == nil:
					c.Valid = true
					valid.Add(1)
					continue
				case errors.Is(err, ErrMissingChunk):
					missing.Add(1)
				case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrSizeMismatch):
					mismatched.Add(1)
				default:
					return fmt.Errorf("%s at offset %d: %w", f.Name, c.Offset, err)
				}

				c.Valid = false
				ok = false
				failuresMu.Lock()
				failures = append(failures, Failure{
					File:   f.Name,
					Offset: c.Offset,
					SHA:    hex.EncodeToString(c.SHA),
					Reason: err.Error(),
				})
				failuresMu.Unlock()
			}

			f.Valid = ok
			if ok {
				validFiles.Add(1)
			}
			if opts.OnProgress != nil {
				opts.OnProgress(checked.Load())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(failures, func(i, j int) bool {
		if failures[i].File != failures[j].File {
			return failures[i].File < failures[j].File
		}
		return failures[i].Offset < failures[j].Offset
	})

	report := &Report{
		Files:      len(entries),
		ValidFiles: int(validFiles.Load()),
		Checked:    checked.Load(),
		Valid:      valid.Load(),
		Missing:    missing.Load(),
		Mismatched: mismatched.Load(),
		Failures:   failures,
	}

	logger.Info("chunk verification finished",
		"depot", m.Metadata.DepotID,
		"manifest", m.Metadata.ManifestID,
		"checked", report.Checked,
		"valid", report.Valid,
		"missing", report.Missing,
		"mismatched", report.Mismatched)

	return report, nil
}
