// Package adler32 implements the Adler-32 checksum used to validate
// decompressed depot chunk payloads against ChunkEntry.Adler32.
//
// The routine mirrors the zlib reference: short inputs skip the modulo
// until the end, long inputs are folded in blocks of NMAX bytes with a
// 16-way unrolled inner loop.
package adler32

import "hash"

const (
	// mod is the largest prime smaller than 65536.
	mod = 65521

	// nmax is the largest n such that 255n(n+1)/2 + (n+1)(mod-1) <= 2^32-1.
	nmax = 5552
)

// Size is the size of an Adler-32 checksum in bytes.
const Size = 4

// Checksum returns the Adler-32 checksum of p.
func Checksum(p []byte) uint32 {
	return Update(1, p)
}

// Update continues the running checksum adler with the bytes of p.
// Update(1, p) is equal to Checksum(p) and
// Update(Update(1, a), b) is equal to Checksum(append(a, b...)).
func Update(adler uint32, p []byte) uint32 {
	s1, s2 := adler&0xffff, adler>>16

	switch n := len(p); {
	case n == 0:
		return adler

	case n == 1:
		s1 += uint32(p[0])
		if s1 >= mod {
			s1 -= mod
		}
		s2 += s1
		if s2 >= mod {
			s2 -= mod
		}
		return s2<<16 | s1

	case n < 16:
		for _, b := range p {
			s1 += uint32(b)
			s2 += s1
		}
		if s1 >= mod {
			s1 -= mod
		}
		s2 %= mod
		return s2<<16 | s1
	}

	for len(p) >= nmax {
		block := p[:nmax]
		p = p[nmax:]
		for len(block) > 0 {
			s1, s2 = do16(block, s1, s2)
			block = block[16:]
		}
		s1 %= mod
		s2 %= mod
	}

	if len(p) > 0 {
		for len(p) >= 16 {
			s1, s2 = do16(p, s1, s2)
			p = p[16:]
		}
		for _, b := range p {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= mod
		s2 %= mod
	}

	return s2<<16 | s1
}

// do16 folds exactly 16 bytes of p into the accumulators.
func do16(p []byte, s1, s2 uint32) (uint32, uint32) {
	_ = p[15]
	s1 += uint32(p[0])
	s2 += s1
	s1 += uint32(p[1])
	s2 += s1
	s1 += uint32(p[2])
	s2 += s1
	s1 += uint32(p[3])
	s2 += s1
	s1 += uint32(p[4])
	s2 += s1
	s1 += uint32(p[5])
	s2 += s1
	s1 += uint32(p[6])
	s2 += s1
	s1 += uint32(p[7])
	s2 += s1
	s1 += uint32(p[8])
	s2 += s1
	s1 += uint32(p[9])
	s2 += s1
	s1 += uint32(p[10])
	s2 += s1
	s1 += uint32(p[11])
	s2 += s1
	s1 += uint32(p[12])
	s2 += s1
	s1 += uint32(p[13])
	s2 += s1
	s1 += uint32(p[14])
	s2 += s1
	s1 += uint32(p[15])
	s2 += s1
	return s1, s2
}

// digest is a streaming Adler-32 over Update.
type digest uint32

// New returns a hash.Hash32 computing the Adler-32 checksum.
func New() hash.Hash32 {
	d := digest(1)
	return &d
}

func (d *digest) Write(p []byte) (int, error) {
	*d = digest(Update(uint32(*d), p))
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return uint32(*d) }

func (d *digest) Sum(in []byte) []byte {
	s := uint32(*d)
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset() { *d = 1 }

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 4 }

// Ensure digest implements hash.Hash32.
var _ hash.Hash32 = (*digest)(nil)
