// Package manifest decodes, decrypts and re-encodes depot manifests.
//
// A manifest is three sections framed by the container package: the file
// listing, the summary metadata and an optional signature. Parse and Load
// read one; Bytes and Save write it back deterministically, sorting the
// listing and refreshing Metadata.CRCClear on every call.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/depotkit/pkg/depot/container"
	"github.com/jamesainslie/depotkit/pkg/depot/logging"
)

var (
	// ErrNotFound is returned by Load when the path does not exist.
	ErrNotFound = errors.New("manifest not found")

	// ErrInvalidSection is returned when a section body cannot be decoded.
	ErrInvalidSection = errors.New("invalid manifest section")

	// ErrMissingField is returned when a required metadata field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrMissingSection is returned when the payload or metadata record is
	// absent from the container.
	ErrMissingSection = errors.New("missing manifest section")
)

// Encode modes per section.
const (
	ListingMode   = OmitDefaults
	MetadataMode  = EmitAll
	SignatureMode = OmitDefaults
)

var logger = logging.Get("manifest")

// Manifest is a decoded depot manifest.
type Manifest struct {
	Listing   Listing   `json:"listing"`
	Metadata  Metadata  `json:"metadata"`
	Signature Signature `json:"signature"`
}

// Parse decodes a manifest from data. Errors from the framing wrap
// container.ErrMalformedContainer.
func Parse(data []byte) (*Manifest, error) {
	records, err := container.Decode(data)
	if err != nil {
		return nil, err
	}

	var (
		m                         Manifest
		havePayload, haveMetadata bool
	)
	for _, rec := range records {
		switch rec.Kind {
		case container.KindPayload:
			if m.Listing, err = decodeListing(rec.Payload); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", rec.Kind, err)
			}
			havePayload = true
		case container.KindMetadata:
			if m.Metadata, err = decodeMetadata(rec.Payload); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", rec.Kind, err)
			}
			haveMetadata = true
		case container.KindSignature:
			if m.Signature, err = decodeSignature(rec.Payload); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", rec.Kind, err)
			}
		}
	}

	if !havePayload {
		return nil, fmt.Errorf("%w: %s", ErrMissingSection, container.KindPayload)
	}
	if !haveMetadata {
		return nil, fmt.Errorf("%w: %s", ErrMissingSection, container.KindMetadata)
	}

	for i := range m.Listing.Entries {
		m.Listing.Entries[i].ParentDepotID = m.Metadata.DepotID
	}

	logger.Debug("manifest parsed",
		"depot", m.Metadata.DepotID,
		"manifest", m.Metadata.ManifestID,
		"files", len(m.Listing.Entries),
		"encrypted", m.Metadata.FilenamesEncrypted)

	return &m, nil
}

// Load reads and parses the manifest at path. A missing file yields an
// error matching both ErrNotFound and fs.ErrNotExist.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

type saveOptions struct {
	stripSignature bool
}

// SaveOption configures Bytes and Save.
type SaveOption func(*saveOptions)

// WithStripSignature controls whether the signature is written empty.
// Signatures are stripped by default.
func WithStripSignature(strip bool) SaveOption {
	return func(o *saveOptions) {
		o.stripSignature = strip
	}
}

// KeepSignature writes the signature unchanged.
func KeepSignature() SaveOption {
	return WithStripSignature(false)
}

// Bytes encodes the manifest. The listing is sorted in place and
// Metadata.CRCClear is set to the checksum of the encoded listing. A
// stripped signature is written empty without clearing m.Signature.
func (m *Manifest) Bytes(opts ...SaveOption) []byte {
	o := saveOptions{stripSignature: true}
	for _, opt := range opts {
		opt(&o)
	}

	payload := m.Listing.Encode(ListingMode)
	m.Metadata.CRCClear = m.Listing.Checksum()
	metadata := m.Metadata.encode(MetadataMode)

	sig := m.Signature
	if o.stripSignature {
		sig = Signature{}
	}

	return container.Encode(container.Sections{
		Payload:   payload,
		Metadata:  metadata,
		Signature: sig.encode(SignatureMode),
	})
}

// Save encodes the manifest and writes it to path. Backslashes in path are
// treated as separators and missing parent directories are created. The
// file is replaced atomically.
func (m *Manifest) Save(path string, opts ...SaveOption) error {
	path = filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	data := m.Bytes(opts...)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}

	logger.Info("manifest saved",
		"path", path,
		"depot", m.Metadata.DepotID,
		"manifest", m.Metadata.ManifestID,
		"bytes", len(data))
	return nil
}

// ComputeListingChecksum returns the checksum the next save will write to
// Metadata.CRCClear. The manifest is not modified.
func (m *Manifest) ComputeListingChecksum() uint32 {
	files := make([]File, len(m.Listing.Entries))
	copy(files, m.Listing.Entries)
	sortFiles(files)
	return container.Checksum(encodeFiles(files, ListingMode))
}

// Files returns the listing entries that are not directories.
func (m *Manifest) Files() []*File {
	return m.Listing.Files()
}

// Directories returns the listing entries that are directories.
func (m *Manifest) Directories() []*File {
	return m.Listing.Directories()
}

// InstallScripts returns the listing entries flagged as install scripts.
func (m *Manifest) InstallScripts() []*File {
	return m.Listing.InstallScripts()
}

// TotalChunks returns the number of chunk references in the listing.
func (m *Manifest) TotalChunks() int {
	n := 0
	for i := range m.Listing.Entries {
		n += len(m.Listing.Entries[i].Chunks)
	}
	return n
}
