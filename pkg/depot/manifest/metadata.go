package manifest

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldMetaDepotID protowire.Number = iota + 1
	fieldMetaManifestID
	fieldMetaCreationTime
	fieldMetaFilenamesEncrypted
	fieldMetaSizeOnDisk
	fieldMetaCompressedSizeOnDisk
	fieldMetaUniqueChunks
	fieldMetaCRCEncrypted
	fieldMetaCRCClear

	metadataFieldCount = 9
)

var metadataFieldNames = [metadataFieldCount + 1]string{
	fieldMetaDepotID:              "depot_id",
	fieldMetaManifestID:           "gid_manifest",
	fieldMetaCreationTime:         "creation_time",
	fieldMetaFilenamesEncrypted:   "filenames_encrypted",
	fieldMetaSizeOnDisk:           "cb_disk_original",
	fieldMetaCompressedSizeOnDisk: "cb_disk_compressed",
	fieldMetaUniqueChunks:         "unique_chunks",
	fieldMetaCRCEncrypted:         "crc_encrypted",
	fieldMetaCRCClear:             "crc_clear",
}

func (m *Metadata) encode(mode EncodeMode) []byte {
	e := &encoder{mode: mode}
	e.uint(fieldMetaDepotID, uint64(m.DepotID))
	e.uint(fieldMetaManifestID, m.ManifestID)
	e.uint(fieldMetaCreationTime, uint64(m.CreationTime))
	e.bool(fieldMetaFilenamesEncrypted, m.FilenamesEncrypted)
	e.uint(fieldMetaSizeOnDisk, m.SizeOnDisk)
	e.uint(fieldMetaCompressedSizeOnDisk, m.CompressedSizeOnDisk)
	e.uint(fieldMetaUniqueChunks, uint64(m.UniqueChunks))
	e.uint(fieldMetaCRCEncrypted, uint64(m.CRCEncrypted))
	e.uint(fieldMetaCRCClear, uint64(m.CRCClear))
	return e.buf
}

// decodeMetadata requires every field to be present.
func decodeMetadata(b []byte) (Metadata, error) {
	var (
		m    Metadata
		seen [metadataFieldCount + 1]bool
	)
	err := decodeFields(b, func(f field) error {
		var err error
		switch f.num {
		case fieldMetaDepotID:
			m.DepotID, err = f.uint32()
		case fieldMetaManifestID:
			m.ManifestID, err = f.uint()
		case fieldMetaCreationTime:
			m.CreationTime, err = f.uint32()
		case fieldMetaFilenamesEncrypted:
			m.FilenamesEncrypted, err = f.bool()
		case fieldMetaSizeOnDisk:
			m.SizeOnDisk, err = f.uint()
		case fieldMetaCompressedSizeOnDisk:
			m.CompressedSizeOnDisk, err = f.uint()
		case fieldMetaUniqueChunks:
			m.UniqueChunks, err = f.uint32()
		case fieldMetaCRCEncrypted:
			m.CRCEncrypted, err = f.uint32()
		case fieldMetaCRCClear:
			m.CRCClear, err = f.uint32()
		default:
			return nil
		}
		seen[f.num] = true
		return err
	})
	if err != nil {
		return Metadata{}, err
	}

	for num := 1; num <= metadataFieldCount; num++ {
		if !seen[num] {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMissingField, metadataFieldNames[num])
		}
	}
	return m, nil
}
