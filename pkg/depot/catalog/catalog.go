// Package catalog keeps a Badger-backed index of the manifests found on
// disk so they can be listed by depot without parsing every file again.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

// Key prefixes for different data types
const (
	prefixPath   = "p:" // p:<path> -> Summary
	prefixDepot  = "d:" // d:<depot>:<manifest>:<path> -> empty, per-depot index
	prefixSchema = "s:"
)

// CurrentSchemaVersion is written by every Put. Open refuses newer
// databases.
const CurrentSchemaVersion = 1

const schemaKey = prefixSchema + "__schema__"

// putBatchSize bounds the number of summaries written per transaction.
const putBatchSize = 256

// ErrNotFound is returned when no summary matches.
var ErrNotFound = errors.New("manifest not in catalog")

// ErrSchemaTooNew is returned by Open for a database written by a newer
// version.
var ErrSchemaTooNew = errors.New("catalog schema is newer than supported")

// Summary is what the catalog records about one manifest file.
type Summary struct {
	Path                 string    `json:"path"`
	DepotID              uint32    `json:"depot_id"`
	ManifestID           uint64    `json:"manifest_id"`
	Created              time.Time `json:"created"`
	FilenamesEncrypted   bool      `json:"filenames_encrypted"`
	Files                int       `json:"files"`
	Directories          int       `json:"directories"`
	InstallScripts       int       `json:"install_scripts"`
	Chunks               int       `json:"chunks"`
	UniqueChunks         uint32    `json:"unique_chunks"`
	SizeOnDisk           uint64    `json:"size_on_disk"`
	CompressedSizeOnDisk uint64    `json:"compressed_size_on_disk"`
	CRCEncrypted         uint32    `json:"crc_encrypted"`
	CRCClear             uint32    `json:"crc_clear"`
	SignatureSize        int       `json:"signature_size"`
	FileSize             int64     `json:"file_size"`
	ModTime              time.Time `json:"mod_time"`
	IndexedAt            time.Time `json:"indexed_at"`
}

// Summarize builds the summary of m as loaded from path.
func Summarize(path string, m *manifest.Manifest) *Summary {
	return &Summary{
		Path:                 path,
		DepotID:              m.Metadata.DepotID,
		ManifestID:           m.Metadata.ManifestID,
		Created:              m.Metadata.Created(),
		FilenamesEncrypted:   m.Metadata.FilenamesEncrypted,
		Files:                len(m.Files()),
		Directories:          len(m.Directories()),
		InstallScripts:       len(m.InstallScripts()),
		Chunks:               m.TotalChunks(),
		UniqueChunks:         m.Metadata.UniqueChunks,
		SizeOnDisk:           m.Metadata.SizeOnDisk,
		CompressedSizeOnDisk: m.Metadata.CompressedSizeOnDisk,
		CRCEncrypted:         m.Metadata.CRCEncrypted,
		CRCClear:             m.Metadata.CRCClear,
		SignatureSize:        len(m.Signature.Data),
	}
}

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog is the manifest index backed by Badger DB.
type Catalog struct {
	db *badger.DB
}

// Open opens or creates a catalog at the given directory.
func Open(path string) (*Catalog, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	c := &Catalog{db: db}

	if schema := c.Schema(); schema != nil && schema.Version > CurrentSchemaVersion {
		_ = db.Close()
		return nil, fmt.Errorf("%w: version %d", ErrSchemaTooNew, schema.Version)
	}
	return c, nil
}

// Close closes the catalog.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func pathKey(path string) []byte {
	return []byte(prefixPath + path)
}

func depotPrefix(depotID uint32) string {
	return fmt.Sprintf("%s%010d:", prefixDepot, depotID)
}

func depotKey(s *Summary) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", depotPrefix(s.DepotID), s.ManifestID, s.Path))
}

// Put stores a summary, replacing any previous summary for the same path.
func (c *Catalog) Put(s *Summary) error {
	return c.PutBatch([]*Summary{s})
}

// PutBatch stores several summaries.
func (c *Catalog) PutBatch(summaries []*Summary) error {
	for start := 0; start < len(summaries); start += putBatchSize {
		end := min(start+putBatchSize, len(summaries))
		err := c.db.Update(func(txn *badger.Txn) error {
			for _, s := range summaries[start:end] {
				if err := putTxn(txn, s); err != nil {
					return err
				}
			}
			return setSchemaTxn(txn)
		})
		if err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
	}
	return nil
}

func putTxn(txn *badger.Txn, s *Summary) error {
	if old, err := getTxn(txn, s.Path); err == nil {
		if err := txn.Delete(depotKey(old)); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := txn.Set(pathKey(s.Path), data); err != nil {
		return err
	}
	return txn.Set(depotKey(s), nil)
}

func getTxn(txn *badger.Txn, path string) (*Summary, error) {
	item, err := txn.Get(pathKey(path))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	var s Summary
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	}); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the summary recorded for path.
func (c *Catalog) Get(path string) (*Summary, error) {
	var s *Summary
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getTxn(txn, path)
		return err
	})
	return s, err
}

// Find returns every file recorded for the given depot and manifest id.
func (c *Catalog) Find(depotID uint32, manifestID uint64) ([]*Summary, error) {
	prefix := fmt.Sprintf("%s%020d:", depotPrefix(depotID), manifestID)
	out, err := c.listIndexed(prefix)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: depot %d manifest %d", ErrNotFound, depotID, manifestID)
	}
	return out, nil
}

// List returns the summaries for one depot, or for all depots when
// depotID is zero, ordered by depot, creation time and path.
func (c *Catalog) List(depotID uint32) ([]*Summary, error) {
	var (
		out []*Summary
		err error
	)
	if depotID != 0 {
		out, err = c.listIndexed(depotPrefix(depotID))
	} else {
		out, err = c.listAll()
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DepotID != b.DepotID {
			return a.DepotID < b.DepotID
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		return a.Path < b.Path
	})
	return out, nil
}

func (c *Catalog) listAll() ([]*Summary, error) {
	var out []*Summary
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPath)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s Summary
				if err := json.Unmarshal(val, &s); err != nil {
					return err
				}
				out = append(out, &s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// listIndexed resolves the depot index keys under prefix to summaries.
func (c *Catalog) listIndexed(prefix string) ([]*Summary, error) {
	var out []*Summary
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			path, ok := pathFromDepotKey(string(it.Item().Key()))
			if !ok {
				continue
			}
			s, err := getTxn(txn, path)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// pathFromDepotKey extracts the path from d:<depot>:<manifest>:<path>.
func pathFromDepotKey(key string) (string, bool) {
	rest := strings.TrimPrefix(key, prefixDepot)
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

// Delete removes the summary for path. Deleting a missing path is not an
// error.
func (c *Catalog) Delete(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return deleteTxn(txn, path)
	})
}

func deleteTxn(txn *badger.Txn, path string) error {
	s, err := getTxn(txn, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := txn.Delete(depotKey(s)); err != nil {
		return err
	}
	return txn.Delete(pathKey(path))
}

// DeleteUnder removes path and every summary below it, returning the
// number removed.
func (c *Catalog) DeleteUnder(path string) (int, error) {
	var removed int
	err := c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var paths []string
		prefix := pathKey(path)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			p := string(it.Item().Key()[len(prefixPath):])
			if IsPathUnder(p, path) {
				paths = append(paths, p)
			}
		}
		it.Close()

		for _, p := range paths {
			if err := deleteTxn(txn, p); err != nil {
				return err
			}
		}
		removed = len(paths)
		return nil
	})
	return removed, err
}

// Count returns the number of manifests in the catalog.
func (c *Catalog) Count() (int, error) {
	var n int
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPath)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes everything from the catalog.
func (c *Catalog) Clear() error {
	return c.db.DropAll()
}

// Schema returns the stored schema, or nil if none has been written.
func (c *Catalog) Schema() *Schema {
	var schema *Schema

	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})

	return schema
}

func setSchemaTxn(txn *badger.Txn) error {
	if _, err := txn.Get([]byte(schemaKey)); err == nil {
		return nil
	}
	data, err := json.Marshal(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return txn.Set([]byte(schemaKey), data)
}

// IsPathUnder checks if path is root or below it.
func IsPathUnder(path, root string) bool {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)
	return cleanPath == cleanRoot || strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator))
}
