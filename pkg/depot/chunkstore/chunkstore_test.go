package chunkstore_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/depotkit/pkg/depot/adler32"
	"github.com/jamesainslie/depotkit/pkg/depot/chunkstore"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

// buildDepot stores the given file contents split into chunkSize pieces
// and returns a manifest describing them.
func buildDepot(t *testing.T, store *chunkstore.Store, chunkSize int, files map[string]string) *manifest.Manifest {
	t.Helper()

	m := &manifest.Manifest{Metadata: manifest.Metadata{DepotID: 440, ManifestID: 99}}
	for name, content := range files {
		f := manifest.File{FileEntry: manifest.FileEntry{Name: name, Size: uint64(len(content))}}
		for off := 0; off < len(content); off += chunkSize {
			end := min(off+chunkSize, len(content))
			entry, err := store.Put([]byte(content[off:end]))
			require.NoError(t, err)
			entry.Offset = uint64(off)
			f.Chunks = append(f.Chunks, manifest.Chunk{ChunkEntry: entry})
		}
		m.Listing.Add(f)
	}
	m.Listing.Sort()
	return m
}

func TestPutAndCheck(t *testing.T) {
	t.Parallel()

	store := chunkstore.New(t.TempDir())
	data := []byte("Wikipedia")

	entry, err := store.Put(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11E60398), entry.Adler32)
	assert.Equal(t, uint32(len(data)), entry.Size)
	assert.Len(t, entry.SHA, 20)

	_, err = os.Stat(store.Path(entry.SHA))
	require.NoError(t, err)
	assert.NoError(t, store.Check(&entry))
}

func TestVerifyChunk(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("depot"), 3000)
	good := manifest.ChunkEntry{Adler32: adler32.Checksum(data), Size: uint32(len(data))}

	tests := []struct {
		name    string
		entry   manifest.ChunkEntry
		wantErr error
	}{
		{"match", good, nil},
		{"wrong checksum", manifest.ChunkEntry{Adler32: good.Adler32 + 1, Size: good.Size}, chunkstore.ErrChecksumMismatch},
		{"wrong size", manifest.ChunkEntry{Adler32: good.Adler32, Size: good.Size - 1}, chunkstore.ErrSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := chunkstore.VerifyChunk(bytes.NewReader(data), &tt.entry)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyAllValid(t *testing.T) {
	t.Parallel()

	store := chunkstore.New(t.TempDir())
	m := buildDepot(t, store, 7, map[string]string{
		"bin/game":   strings.Repeat("g", 50),
		"readme.txt": "hello depot",
		"empty":      "",
	})

	var progress atomic.Int64
	report, err := store.Verify(context.Background(), m, chunkstore.Options{
		Workers:    2,
		OnProgress: func(int64) { progress.Add(1) },
	})
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 3, report.ValidFiles)
	assert.Equal(t, int64(8+2), report.Checked)
	assert.Zero(t, report.Missing)
	assert.Zero(t, report.Mismatched)
	assert.Empty(t, report.Failures)
	assert.Equal(t, int64(3), progress.Load())

	for i := range m.Listing.Entries {
		f := &m.Listing.Entries[i]
		assert.True(t, f.Valid, f.Name)
		for j := range f.Chunks {
			assert.True(t, f.Chunks[j].Valid)
		}
	}
}

func TestVerifyReportsMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	store := chunkstore.New(t.TempDir())
	m := buildDepot(t, store, 4, map[string]string{
		"a.bin": "aaaabbbbcccc",
		"b.bin": "xxxxyyyy",
		"c.bin": "ok",
	})

	a := &m.Listing.Entries[0]
	b := &m.Listing.Entries[1]
	require.Equal(t, "a.bin", a.Name)
	require.Equal(t, "b.bin", b.Name)

	require.NoError(t, os.Remove(store.Path(a.Chunks[1].SHA)))
	require.NoError(t, os.WriteFile(store.Path(b.Chunks[0].SHA), []byte("XXXX"), 0o644))

	report, err := store.Verify(context.Background(), m, chunkstore.Options{})
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, int64(6), report.Checked)
	assert.Equal(t, int64(4), report.Valid)
	assert.Equal(t, int64(1), report.Missing)
	assert.Equal(t, int64(1), report.Mismatched)
	assert.Equal(t, 1, report.ValidFiles)

	require.Len(t, report.Failures, 2)
	assert.Equal(t, "a.bin", report.Failures[0].File)
	assert.Equal(t, uint64(4), report.Failures[0].Offset)
	assert.Equal(t, "b.bin", report.Failures[1].File)
	assert.Equal(t, uint64(0), report.Failures[1].Offset)

	assert.False(t, a.Valid)
	assert.True(t, a.Chunks[0].Valid)
	assert.False(t, a.Chunks[1].Valid)
	assert.False(t, b.Valid)
	assert.True(t, m.Listing.Entries[2].Valid)
}

func TestVerifyCancelled(t *testing.T) {
	t.Parallel()

	store := chunkstore.New(t.TempDir())
	m := buildDepot(t, store, 1, map[string]string{"f": "abcdef"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Verify(ctx, m, chunkstore.Options{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
