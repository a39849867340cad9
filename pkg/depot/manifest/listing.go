package manifest

import (
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jamesainslie/depotkit/pkg/depot/container"
)

// Wire field numbers of the payload section.
const (
	fieldListingMappings protowire.Number = 1

	fieldFileName        protowire.Number = 1
	fieldFileSize        protowire.Number = 2
	fieldFileFlags       protowire.Number = 3
	fieldFileSHAFilename protowire.Number = 4
	fieldFileSHAContent  protowire.Number = 5
	fieldFileChunks      protowire.Number = 6

	fieldChunkSHA            protowire.Number = 1
	fieldChunkAdler32        protowire.Number = 2
	fieldChunkOffset         protowire.Number = 3
	fieldChunkSize           protowire.Number = 4
	fieldChunkCompressedSize protowire.Number = 5
)

// Listing is the payload section: the ordered file entries.
type Listing struct {
	Entries []File `json:"files"`

	// checksum is valid only after Encode.
	checksum uint32
}

// Add appends files to the listing and links their chunks.
func (l *Listing) Add(files ...File) {
	l.Entries = append(l.Entries, files...)
	l.link()
}

// Checksum returns the checksum computed by the most recent Encode.
func (l *Listing) Checksum() uint32 {
	return l.checksum
}

// Parent returns the file that owns c, or nil when c is not linked to
// this listing.
func (l *Listing) Parent(c *Chunk) *File {
	i := c.parent - 1
	if i < 0 || i >= len(l.Entries) {
		return nil
	}
	return &l.Entries[i]
}

// link stamps every chunk with the index of its file. It must run after
// anything that reorders Entries.
func (l *Listing) link() {
	for i := range l.Entries {
		chunks := l.Entries[i].Chunks
		for j := range chunks {
			chunks[j].parent = i + 1
		}
	}
}

// Sort orders entries by name, ignoring case. Equal names keep their
// relative order.
func (l *Listing) Sort() {
	sortFiles(l.Entries)
	l.link()
}

func sortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		return compareFold(files[i].Name, files[j].Name) < 0
	})
}

// compareFold compares two names rune by rune after upper-casing, with no
// locale rules applied.
func compareFold(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		ua, ub := unicode.ToUpper(ra), unicode.ToUpper(rb)
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
		a, b = a[na:], b[nb:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// All returns every entry in listing order.
func (l *Listing) All() []*File {
	return l.filter(func(*File) bool { return true })
}

// Files returns the entries without the Directory flag.
func (l *Listing) Files() []*File {
	return l.filter(func(f *File) bool { return !f.IsDirectory() })
}

// Directories returns the entries with the Directory flag.
func (l *Listing) Directories() []*File {
	return l.filter(func(f *File) bool { return f.IsDirectory() })
}

// InstallScripts returns the entries with the InstallScript flag,
// directories included.
func (l *Listing) InstallScripts() []*File {
	return l.filter(func(f *File) bool { return f.Flags.Has(FlagInstallScript) })
}

func (l *Listing) filter(keep func(*File) bool) []*File {
	var out []*File
	for i := range l.Entries {
		if keep(&l.Entries[i]) {
			out = append(out, &l.Entries[i])
		}
	}
	return out
}

// Encode sorts the listing, encodes it in mode and records the checksum
// over the encoded body.
func (l *Listing) Encode(mode EncodeMode) []byte {
	l.Sort()
	body := encodeFiles(l.Entries, mode)
	l.checksum = container.Checksum(body)
	return body
}

func encodeFiles(files []File, mode EncodeMode) []byte {
	e := &encoder{mode: mode}
	for i := range files {
		e.message(fieldListingMappings, encodeFile(&files[i], mode))
	}
	return e.buf
}

func encodeFile(f *File, mode EncodeMode) []byte {
	e := &encoder{mode: mode}
	e.string(fieldFileName, f.Name)
	e.uint(fieldFileSize, f.Size)
	e.uint(fieldFileFlags, uint64(f.Flags))
	e.bytes(fieldFileSHAFilename, f.SHAFilename)
	e.bytes(fieldFileSHAContent, f.SHAContent)
	for i := range f.Chunks {
		e.message(fieldFileChunks, encodeChunk(&f.Chunks[i].ChunkEntry, mode))
	}
	return e.buf
}

func encodeChunk(c *ChunkEntry, mode EncodeMode) []byte {
	e := &encoder{mode: mode}
	e.bytes(fieldChunkSHA, c.SHA)
	e.fixed32(fieldChunkAdler32, c.Adler32)
	e.uint(fieldChunkOffset, c.Offset)
	e.uint(fieldChunkSize, uint64(c.Size))
	e.uint(fieldChunkCompressedSize, uint64(c.CompressedSize))
	return e.buf
}

func decodeListing(b []byte) (Listing, error) {
	var l Listing
	err := decodeFields(b, func(f field) error {
		if f.num != fieldListingMappings {
			return nil
		}
		body, err := f.message()
		if err != nil {
			return err
		}
		file, err := decodeFile(body)
		if err != nil {
			return fmt.Errorf("file %d: %w", len(l.Entries), err)
		}
		l.Entries = append(l.Entries, file)
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	l.link()
	return l, nil
}

func decodeFile(b []byte) (File, error) {
	var file File
	err := decodeFields(b, func(f field) error {
		var err error
		switch f.num {
		case fieldFileName:
			file.Name, err = f.string()
		case fieldFileSize:
			file.Size, err = f.uint()
		case fieldFileFlags:
			var v uint32
			v, err = f.uint32()
			file.Flags = FileFlag(v)
		case fieldFileSHAFilename:
			file.SHAFilename, err = f.bytes()
		case fieldFileSHAContent:
			file.SHAContent, err = f.bytes()
		case fieldFileChunks:
			var body []byte
			if body, err = f.message(); err != nil {
				return err
			}
			var c ChunkEntry
			if c, err = decodeChunk(body); err != nil {
				return fmt.Errorf("chunk %d: %w", len(file.Chunks), err)
			}
			file.Chunks = append(file.Chunks, Chunk{ChunkEntry: c})
		}
		return err
	})
	return file, err
}

func decodeChunk(b []byte) (ChunkEntry, error) {
	var c ChunkEntry
	err := decodeFields(b, func(f field) error {
		var err error
		switch f.num {
		case fieldChunkSHA:
			c.SHA, err = f.bytes()
		case fieldChunkAdler32:
			c.Adler32, err = f.fixed()
		case fieldChunkOffset:
			c.Offset, err = f.uint()
		case fieldChunkSize:
			c.Size, err = f.uint32()
		case fieldChunkCompressedSize:
			c.CompressedSize, err = f.uint32()
		}
		return err
	})
	return c, err
}
