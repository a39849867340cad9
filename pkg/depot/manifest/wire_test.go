package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeFileOmitsDefaults(t *testing.T) {
	t.Parallel()

	f := File{FileEntry: FileEntry{Name: "a"}}
	got := encodeFiles([]File{f}, OmitDefaults)

	// mappings{ name: "a" }
	assert.Equal(t, []byte{0x0A, 0x03, 0x0A, 0x01, 'a'}, got)
}

func TestEncodeFileEmitAll(t *testing.T) {
	t.Parallel()

	f := File{FileEntry: FileEntry{Name: "a"}}
	got := encodeFile(&f, EmitAll)

	assert.Equal(t, []byte{
		0x0A, 0x01, 'a', // name
		0x10, 0x00, // size
		0x18, 0x00, // flags
		0x22, 0x00, // sha_filename
		0x2A, 0x00, // sha_content
	}, got)
}

func TestEncodeEmptyChunkIsStillWritten(t *testing.T) {
	t.Parallel()

	f := File{Chunks: []Chunk{{}}}
	got := encodeFile(&f, OmitDefaults)
	assert.Equal(t, []byte{0x32, 0x00}, got)

	decoded, err := decodeFile(got)
	require.NoError(t, err)
	assert.Len(t, decoded.Chunks, 1)
}

func TestChunkAdler32IsFixed32(t *testing.T) {
	t.Parallel()

	c := ChunkEntry{Adler32: 0x11E60398}
	assert.Equal(t, []byte{0x15, 0x98, 0x03, 0xE6, 0x11}, encodeChunk(&c, OmitDefaults))
}

func TestMetadataEncodeModes(t *testing.T) {
	t.Parallel()

	var zero Metadata

	all := zero.encode(EmitAll)
	got, err := decodeMetadata(all)
	require.NoError(t, err)
	assert.Equal(t, zero, got)

	// Omitting defaults drops every field, which the decoder rejects.
	assert.Empty(t, zero.encode(OmitDefaults))
	_, err = decodeMetadata(zero.encode(OmitDefaults))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestDecodeMetadataMissingField(t *testing.T) {
	t.Parallel()

	full := Metadata{DepotID: 1, ManifestID: 2, CreationTime: 3, CRCClear: 9}
	body := full.encode(EmitAll)

	// Drop the trailing crc_clear field (tag 0x48, value 0x09).
	require.Equal(t, []byte{0x48, 0x09}, body[len(body)-2:])
	_, err := decodeMetadata(body[:len(body)-2])
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "crc_clear")
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	t.Parallel()

	sig := Signature{Data: []byte{1, 2, 3}}
	body := sig.encode(OmitDefaults)
	body = protowire.AppendTag(body, 15, protowire.VarintType)
	body = protowire.AppendVarint(body, 42)
	body = protowire.AppendTag(body, 16, protowire.Fixed64Type)
	body = protowire.AppendFixed64(body, 7)

	got, err := decodeSignature(body)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestDecodeRejectsWrongWireType(t *testing.T) {
	t.Parallel()

	// name encoded as a varint
	body := protowire.AppendTag(nil, fieldFileName, protowire.VarintType)
	body = protowire.AppendVarint(body, 1)

	_, err := decodeFile(body)
	assert.ErrorIs(t, err, ErrInvalidSection)
}

func TestDecodeRejectsTruncatedField(t *testing.T) {
	t.Parallel()

	body := encodeFiles([]File{{FileEntry: FileEntry{Name: "truncated"}}}, OmitDefaults)
	_, err := decodeListing(body[:len(body)-3])
	assert.ErrorIs(t, err, ErrInvalidSection)
}

func TestDecodedBytesDoNotAliasInput(t *testing.T) {
	t.Parallel()

	body := (&Signature{Data: []byte{1, 2, 3}}).encode(OmitDefaults)
	got, err := decodeSignature(body)
	require.NoError(t, err)

	body[len(body)-1] = 0xFF
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
}

func TestCompareFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"a.txt", "B.txt", -1},
		{"B.txt", "a.txt", 1},
		{"README", "readme", 0},
		{"bin", "bin/game", -1},
		{"", "", 0},
		{"_x", "ax", 1}, // '_' sorts after 'A' once upper-cased
		{"straße", "STRASSE", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareFold(tt.a, tt.b))
		})
	}
}

func TestFileFlagString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", FileFlag(0).String())
	assert.Equal(t, "directory|installscript", (FlagDirectory | FlagInstallScript).String())
	assert.Equal(t, "executable|0x400", (FlagExecutable | 1<<10).String())
	assert.True(t, (FlagDirectory | FlagHidden).Has(FlagHidden))
	assert.False(t, FlagHidden.Has(FlagHidden|FlagDirectory))
}

func TestEncodeModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "omit-defaults", OmitDefaults.String())
	assert.Equal(t, "emit-all", EmitAll.String())
	assert.Equal(t, "EncodeMode(7)", EncodeMode(7).String())
}
