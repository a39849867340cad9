package manifest

import "time"

// FileEntry holds the persisted fields of a file in the listing.
type FileEntry struct {
	// Name is the path relative to the depot root. While the manifest's
	// filenames are encrypted it holds base64 ciphertext.
	Name string `json:"name"`

	// Size is the declared size of the reconstructed file in bytes.
	Size uint64 `json:"size"`

	// Flags is the file's attribute bit set.
	Flags FileFlag `json:"flags"`

	// SHAFilename is the SHA-1 of the lower-cased plain filename.
	SHAFilename []byte `json:"sha_filename,omitempty"`

	// SHAContent is the SHA-1 of the reconstructed file content.
	SHAContent []byte `json:"sha_content,omitempty"`
}

// FileState is per-file working state. It is never serialized.
type FileState struct {
	// Valid is set by chunk verification when every chunk checked out.
	Valid bool `json:"-"`

	// ParentDepotID is the depot the file was loaded from.
	ParentDepotID uint32 `json:"-"`
}

// File is a listing entry: persisted fields, its chunks and working state.
type File struct {
	FileEntry
	FileState

	Chunks []Chunk `json:"chunks,omitempty"`
}

// IsDirectory reports whether the entry carries the Directory flag.
func (f *File) IsDirectory() bool {
	return f.Flags.Has(FlagDirectory)
}

// ChunkEntry holds the persisted fields of a chunk.
type ChunkEntry struct {
	// SHA is the chunk's content hash and its identifier in a chunk store.
	SHA []byte `json:"sha"`

	// Adler32 is the checksum of the decompressed chunk bytes.
	Adler32 uint32 `json:"adler32"`

	// Offset is the chunk's position within the reconstructed file.
	Offset uint64 `json:"offset"`

	// Size is the decompressed length.
	Size uint32 `json:"size"`

	// CompressedSize is the length as stored.
	CompressedSize uint32 `json:"compressed_size"`
}

// ChunkState is per-chunk working state. It is never serialized.
type ChunkState struct {
	Valid bool `json:"-"`

	// parent is one plus the index of the owning File in its Listing, or
	// zero when the chunk has not been linked.
	parent int
}

// Chunk is a chunk entry together with its working state.
type Chunk struct {
	ChunkEntry
	ChunkState
}

// Metadata is the summary section.
type Metadata struct {
	DepotID              uint32 `json:"depot_id"`
	ManifestID           uint64 `json:"manifest_id"`
	CreationTime         uint32 `json:"creation_time"`
	FilenamesEncrypted   bool   `json:"filenames_encrypted"`
	SizeOnDisk           uint64 `json:"size_on_disk"`
	CompressedSizeOnDisk uint64 `json:"compressed_size_on_disk"`
	UniqueChunks         uint32 `json:"unique_chunks"`

	// CRCEncrypted is the listing checksum taken while filenames were
	// encrypted. It is carried through unchanged.
	CRCEncrypted uint32 `json:"crc_encrypted"`

	// CRCClear is the checksum of the listing as last encoded. Every save
	// overwrites it.
	CRCClear uint32 `json:"crc_clear"`
}

// Created returns CreationTime as a UTC time.
func (m Metadata) Created() time.Time {
	return time.Unix(int64(m.CreationTime), 0).UTC()
}

// Signature is the optional signature section.
type Signature struct {
	Data []byte `json:"data,omitempty"`
}
