// Package output provides formatters for displaying manifest listings in
// various output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.FromManifest(path, m, m.Files())); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
)

// FileInfo is one listing entry prepared for output.
type FileInfo struct {
	// Name is the path of the file inside the depot.
	Name string `json:"name" yaml:"name"`

	// Size is the declared file size in bytes.
	Size uint64 `json:"size" yaml:"size"`

	// SizeHuman is the human-readable size (e.g., "1.5 GiB").
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// Flags is the flag set rendered as names joined with "|".
	Flags string `json:"flags" yaml:"flags"`

	// Chunks is the number of chunks making up the file.
	Chunks int `json:"chunks" yaml:"chunks"`

	// SHA is the hex content hash.
	SHA string `json:"sha,omitempty" yaml:"sha,omitempty"`

	// Directory is true for directory entries.
	Directory bool `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Header summarizes the manifest a listing came from.
type Header struct {
	DepotID              uint32    `json:"depot_id" yaml:"depot_id"`
	ManifestID           uint64    `json:"manifest_id" yaml:"manifest_id"`
	Created              time.Time `json:"created" yaml:"created"`
	FilenamesEncrypted   bool      `json:"filenames_encrypted" yaml:"filenames_encrypted"`
	SizeOnDisk           uint64    `json:"size_on_disk" yaml:"size_on_disk"`
	CompressedSizeOnDisk uint64    `json:"compressed_size_on_disk" yaml:"compressed_size_on_disk"`
	UniqueChunks         uint32    `json:"unique_chunks" yaml:"unique_chunks"`
	CRCEncrypted         uint32    `json:"crc_encrypted" yaml:"crc_encrypted"`
	CRCClear             uint32    `json:"crc_clear" yaml:"crc_clear"`
	SignatureSize        int       `json:"signature_size" yaml:"signature_size"`
}

// Result contains the complete output data for formatting.
type Result struct {
	// Source is the manifest path.
	Source string `json:"source" yaml:"source"`

	// Header is the manifest summary.
	Header Header `json:"header" yaml:"header"`

	// Files contains the selected entries in listing order.
	Files []FileInfo `json:"files" yaml:"files"`

	// Warnings contains any warning messages, such as a failed decryption.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FromManifest builds a Result from the selected files of m.
func FromManifest(source string, m *manifest.Manifest, files []*manifest.File) *Result {
	r := &Result{
		Source: source,
		Header: Header{
			DepotID:              m.Metadata.DepotID,
			ManifestID:           m.Metadata.ManifestID,
			Created:              m.Metadata.Created(),
			FilenamesEncrypted:   m.Metadata.FilenamesEncrypted,
			SizeOnDisk:           m.Metadata.SizeOnDisk,
			CompressedSizeOnDisk: m.Metadata.CompressedSizeOnDisk,
			UniqueChunks:         m.Metadata.UniqueChunks,
			CRCEncrypted:         m.Metadata.CRCEncrypted,
			CRCClear:             m.Metadata.CRCClear,
			SignatureSize:        len(m.Signature.Data),
		},
		Files: make([]FileInfo, 0, len(files)),
	}

	for _, f := range files {
		r.Files = append(r.Files, FileInfo{
			Name:      f.Name,
			Size:      f.Size,
			SizeHuman: formatSize(f.Size),
			Flags:     f.Flags.String(),
			Chunks:    len(f.Chunks),
			SHA:       hex.EncodeToString(f.SHAContent),
			Directory: f.IsDirectory(),
		})
	}
	return r
}

// TotalSize returns the sum of all file sizes in the result.
func (r *Result) TotalSize() uint64 {
	var total uint64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// TotalChunks returns the sum of chunk counts in the result.
func (r *Result) TotalChunks() int {
	var total int
	for _, f := range r.Files {
		total += f.Chunks
	}
	return total
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatSize renders a byte count with binary units.
func formatSize(n uint64) string {
	return humanize.IBytes(n)
}
