package adler32

import (
	stdadler "hash/adler32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{name: "empty", input: nil, want: 1},
		{name: "single byte", input: []byte("a"), want: 0x00620062},
		{name: "short string", input: []byte("Wikipedia"), want: 0x11E60398},
		{name: "abc", input: []byte("abc"), want: 0x024d0127},
		{name: "sixteen bytes", input: []byte("0123456789abcdef"), want: stdadler.Checksum([]byte("0123456789abcdef"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.input))
		})
	}
}

func TestChecksum_MatchesReferenceAcrossBlockBoundaries(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	lengths := []int{2, 15, 16, 17, 31, 32, 33, 255, 1024, nmax - 1, nmax, nmax + 1, nmax + 16, 2*nmax + 7, 65536}
	for _, n := range lengths {
		buf := make([]byte, n)
		rng.Read(buf)
		assert.Equal(t, stdadler.Checksum(buf), Checksum(buf), "length %d", n)
	}
}

func TestChecksum_AllOnesDoesNotOverflow(t *testing.T) {
	buf := make([]byte, 3*nmax+11)
	for i := range buf {
		buf[i] = 0xff
	}
	assert.Equal(t, stdadler.Checksum(buf), Checksum(buf))
}

func TestUpdate_IsRestartable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	buf := make([]byte, 20000)
	rng.Read(buf)

	want := Checksum(buf)
	for _, split := range []int{0, 1, 9, 16, 5552, 12345, len(buf)} {
		got := Update(Update(1, buf[:split]), buf[split:])
		assert.Equal(t, want, got, "split at %d", split)
	}
}

func TestNew_Streaming(t *testing.T) {
	h := New()
	_, err := h.Write([]byte("Wiki"))
	require.NoError(t, err)
	_, err = h.Write([]byte("p"))
	require.NoError(t, err)
	_, err = h.Write([]byte("edia"))
	require.NoError(t, err)

	assert.Equal(t, uint32(0x11E60398), h.Sum32())
	assert.Equal(t, []byte{0x11, 0xE6, 0x03, 0x98}, h.Sum(nil))
	assert.Equal(t, Size, h.Size())

	h.Reset()
	assert.Equal(t, uint32(1), h.Sum32())
}
