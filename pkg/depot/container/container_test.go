package container

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func TestEncode_Layout(t *testing.T) {
	out := Encode(Sections{
		Payload:   []byte{0x01, 0x02},
		Metadata:  []byte{0x03},
		Signature: nil,
	})

	var want []byte
	want = append(want, 0xD0, 0x17, 0xF6, 0x71)
	want = append(want, le32(2)...)
	want = append(want, 0x01, 0x02)
	want = append(want, 0xBE, 0x12, 0x48, 0x1F)
	want = append(want, le32(1)...)
	want = append(want, 0x03)
	want = append(want, 0x17, 0xB8, 0x81, 0x1B)
	want = append(want, le32(0)...)
	want = append(want, 0xAB, 0x15, 0xC4, 0x32)

	assert.Equal(t, want, out)
	assert.Len(t, out, Sections{Payload: []byte{1, 2}, Metadata: []byte{3}}.Size())
}

func TestDecode_RoundTrip(t *testing.T) {
	in := Sections{
		Payload:   []byte("payload-bytes"),
		Metadata:  []byte("meta"),
		Signature: []byte("sig"),
	}

	records, err := Decode(Encode(in))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, KindPayload, records[0].Kind)
	assert.Equal(t, in.Payload, records[0].Payload)
	assert.Equal(t, KindMetadata, records[1].Kind)
	assert.Equal(t, in.Metadata, records[1].Payload)
	assert.Equal(t, KindSignature, records[2].Kind)
	assert.Equal(t, in.Signature, records[2].Payload)
}

func TestDecode_AnyOrder(t *testing.T) {
	var buf []byte
	buf = AppendRecord(buf, KindSignature, []byte("s"))
	buf = AppendRecord(buf, KindMetadata, []byte("m"))
	buf = AppendRecord(buf, KindPayload, []byte("p"))
	buf = append(buf, le32(uint32(KindTerminator))...)

	records, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []Kind{KindSignature, KindMetadata, KindPayload},
		[]Kind{records[0].Kind, records[1].Kind, records[2].Kind})
}

func TestDecode_TerminatorEndsStream(t *testing.T) {
	t.Run("buffer ending exactly at terminator is fully consumed", func(t *testing.T) {
		buf := AppendSignature(nil, []byte("sig"))

		records, err := Decode(buf)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, KindSignature, records[0].Kind)
	})

	t.Run("bytes after terminator are never read", func(t *testing.T) {
		buf := AppendSignature(nil, nil)
		buf = append(buf, 0xDE, 0xAD, 0xBE, 0xEF, 0x01)

		records, err := Decode(buf)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("lone terminator", func(t *testing.T) {
		records, err := Decode(le32(uint32(KindTerminator)))
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestDecode_Malformed(t *testing.T) {
	valid := Encode(Sections{Payload: []byte("p"), Metadata: []byte("m")})

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "unknown magic first",
			data: append(le32(0xCAFEBABE), le32(0)...),
		},
		{
			name: "unknown magic after a valid record",
			data: append(AppendRecord(nil, KindPayload, []byte("p")), le32(0x12345678)...),
		},
		{
			name: "truncated magic",
			data: append(AppendRecord(nil, KindPayload, nil), 0xBE, 0x12),
		},
		{
			name: "truncated length",
			data: append(le32(uint32(KindMetadata)), 0x01, 0x00),
		},
		{
			name: "length past end of buffer",
			data: append(append(le32(uint32(KindPayload)), le32(10)...), 0x01, 0x02),
		},
		{
			name: "huge length",
			data: append(le32(uint32(KindPayload)), le32(0xFFFFFFFF)...),
		},
		{
			name: "valid stream with corrupted terminator",
			data: append(valid[:len(valid)-4:len(valid)-4], 0xAB, 0x15, 0xC4, 0x33),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedContainer)
		})
	}
}

func TestChecksum_CoversLengthAndPayload(t *testing.T) {
	payload := []byte("file listing body")

	window := append(le32(uint32(len(payload))), payload...)
	assert.Equal(t, crc32.ChecksumIEEE(window), Checksum(payload))
	assert.NotEqual(t, crc32.ChecksumIEEE(payload), Checksum(payload))

	assert.Equal(t, crc32.ChecksumIEEE(le32(0)), Checksum(nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "payload", KindPayload.String())
	assert.Equal(t, "metadata", KindMetadata.String())
	assert.Equal(t, "signature", KindSignature.String())
	assert.Equal(t, "terminator", KindTerminator.String())
	assert.Equal(t, "unknown(DEADBEEF)", Kind(0xDEADBEEF).String())
	assert.False(t, Kind(0).Known())
}
