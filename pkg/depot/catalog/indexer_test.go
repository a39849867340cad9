package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/depotkit/pkg/depot/catalog"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

func writeManifest(t *testing.T, path string, depot uint32, gid uint64, names ...string) {
	t.Helper()

	m := &manifest.Manifest{Metadata: manifest.Metadata{DepotID: depot, ManifestID: gid, CreationTime: 1700000000}}
	for _, name := range names {
		m.Listing.Add(manifest.File{FileEntry: manifest.FileEntry{Name: name, Size: 1}})
	}
	require.NoError(t, m.Save(path))
}

func TestIndexerMatches(t *testing.T) {
	idx := catalog.NewIndexer(nil, []string{"manifest", ".MFST", " "})

	assert.True(t, idx.Matches("/a/b.manifest"))
	assert.True(t, idx.Matches("/a/b.Manifest"))
	assert.True(t, idx.Matches("/a/b.mfst"))
	assert.False(t, idx.Matches("/a/b.txt"))
	assert.False(t, idx.Matches("/a/manifest"))

	def := catalog.NewIndexer(nil, nil)
	assert.True(t, def.Matches("x.manifest"))
}

func TestIndex(t *testing.T) {
	c := openTestCatalog(t)
	root := t.TempDir()

	writeManifest(t, filepath.Join(root, "731", "1.manifest"), 731, 1, "a", "b")
	writeManifest(t, filepath.Join(root, "731", "deep", "2.manifest"), 731, 2, "c")
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.manifest"), []byte("garbage!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))

	idx := catalog.NewIndexer(c, nil)
	var progressCalls atomic.Int64
	result, err := idx.Index(context.Background(), root, func(catalog.Progress) { progressCalls.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Scanned)
	assert.Equal(t, int64(2), result.Indexed)
	assert.Equal(t, int64(1), result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, filepath.Join(root, "broken.manifest"), result.Errors[0].Path)
	assert.GreaterOrEqual(t, progressCalls.Load(), int64(2))

	list, err := c.List(731)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].Files+list[1].Files)
	assert.NotZero(t, list[0].FileSize)
	assert.False(t, list[0].IndexedAt.IsZero())

	// Removed files are dropped on the next run.
	require.NoError(t, os.Remove(filepath.Join(root, "731", "deep", "2.manifest")))
	result, err = idx.Index(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	_, err = c.Find(731, 2)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	found, err := c.Find(731, 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIndexLeavesOtherRootsAlone(t *testing.T) {
	c := openTestCatalog(t)
	rootA := t.TempDir()
	rootB := t.TempDir()

	writeManifest(t, filepath.Join(rootA, "a.manifest"), 1, 1, "x")
	writeManifest(t, filepath.Join(rootB, "b.manifest"), 2, 2, "y")

	idx := catalog.NewIndexer(c, nil)
	_, err := idx.Index(context.Background(), rootA, nil)
	require.NoError(t, err)
	_, err = idx.Index(context.Background(), rootB, nil)
	require.NoError(t, err)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndexCancelled(t *testing.T) {
	c := openTestCatalog(t)
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a.manifest"), 1, 1, "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := catalog.NewIndexer(c, nil).Index(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexFile(t *testing.T) {
	c := openTestCatalog(t)
	path := filepath.Join(t.TempDir(), "one.manifest")
	writeManifest(t, path, 440, 9, "a", "b", "c")

	s, err := catalog.NewIndexer(c, nil).IndexFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Files)

	got, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.ManifestID)

	_, err = catalog.NewIndexer(c, nil).IndexFile(filepath.Dir(path))
	assert.Error(t, err)
}
