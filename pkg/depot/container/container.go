// Package container reads and writes the outer framing of a depot manifest:
// a stream of little-endian magic + length + payload records closed by a
// terminator magic that carries no length.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Kind identifies a record by its magic value.
type Kind uint32

// Record kinds. The terminator carries no length and no payload.
const (
	KindPayload    Kind = 0x71F617D0
	KindMetadata   Kind = 0x1F4812BE
	KindSignature  Kind = 0x1B81B817
	KindTerminator Kind = 0x32C415AB
)

const (
	magicSize  = 4
	lengthSize = 4

	// HeaderSize is the size of the magic and length fields of a record.
	HeaderSize = magicSize + lengthSize
)

// ErrMalformedContainer is returned when the framing cannot be decoded.
var ErrMalformedContainer = errors.New("malformed manifest container")

// String returns the section name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPayload:
		return "payload"
	case KindMetadata:
		return "metadata"
	case KindSignature:
		return "signature"
	case KindTerminator:
		return "terminator"
	default:
		return fmt.Sprintf("unknown(%08X)", uint32(k))
	}
}

// Known reports whether k is one of the four record kinds.
func (k Kind) Known() bool {
	switch k {
	case KindPayload, KindMetadata, KindSignature, KindTerminator:
		return true
	}
	return false
}

// Record is a decoded record. Payload aliases the decoded buffer.
type Record struct {
	Kind    Kind
	Payload []byte
}

// Decode splits data into records. Decoding stops after the terminator
// magic; bytes after it are never inspected. A buffer that runs out
// without a terminator is accepted as long as it ends on a record boundary.
func Decode(data []byte) ([]Record, error) {
	var records []Record

	for off := 0; off < len(data); {
		if len(data)-off < magicSize {
			return nil, fmt.Errorf("%w: truncated magic at offset %d", ErrMalformedContainer, off)
		}
		kind := Kind(binary.LittleEndian.Uint32(data[off:]))
		if !kind.Known() {
			return nil, fmt.Errorf("%w: unrecognized magic value %08X at offset %d",
				ErrMalformedContainer, uint32(kind), off)
		}
		off += magicSize

		if kind == KindTerminator {
			break
		}

		if len(data)-off < lengthSize {
			return nil, fmt.Errorf("%w: truncated %s length at offset %d", ErrMalformedContainer, kind, off)
		}
		length := uint64(binary.LittleEndian.Uint32(data[off:]))
		off += lengthSize

		if length > uint64(len(data)-off) {
			return nil, fmt.Errorf("%w: %s record declares %d bytes, %d remain",
				ErrMalformedContainer, kind, length, len(data)-off)
		}
		end := off + int(length)
		records = append(records, Record{Kind: kind, Payload: data[off:end:end]})
		off = end
	}

	return records, nil
}

// AppendRecord appends a magic + length + payload record to buf.
func AppendRecord(buf []byte, kind Kind, payload []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(kind))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// AppendSignature appends the signature record followed by the terminator
// magic, which acts as the signature record's footer.
func AppendSignature(buf []byte, payload []byte) []byte {
	buf = AppendRecord(buf, KindSignature, payload)
	return binary.LittleEndian.AppendUint32(buf, uint32(KindTerminator))
}

// Sections holds the encoded bodies of the three manifest sections.
type Sections struct {
	Payload   []byte
	Metadata  []byte
	Signature []byte
}

// Size returns the number of bytes Encode produces for s.
func (s Sections) Size() int {
	return 3*HeaderSize + magicSize + len(s.Payload) + len(s.Metadata) + len(s.Signature)
}

// Encode writes the sections in payload, metadata, signature order and
// closes the stream with the terminator.
func Encode(s Sections) []byte {
	buf := make([]byte, 0, s.Size())
	buf = AppendRecord(buf, KindPayload, s.Payload)
	buf = AppendRecord(buf, KindMetadata, s.Metadata)
	return AppendSignature(buf, s.Signature)
}

// Checksum returns the CRC-32 (IEEE) of a record's length field followed by
// its payload. This is the window the listing checksum covers.
func Checksum(payload []byte) uint32 {
	var length [lengthSize]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))

	crc := crc32.Update(0, crc32.IEEETable, length[:])
	return crc32.Update(crc, crc32.IEEETable, payload)
}
