// Package xsha256 is a from-scratch FIPS 180-4 SHA-256 implementation with
// an incremental init/update/final interface.
//
// The pipeline's core is required (CT-MATH-001 §4.8) to carry its own
// hash implementation rather than delegate to the platform's crypto
// library: the certification boundary for this system is the core itself,
// and a hash primitive reached for via an external crypto package would
// sit outside the artifact being certified. This is the one place in the
// repository where "use a third-party/stdlib implementation" is
// deliberately not the answer — see DESIGN.md.
//
// Digest implements the standard library's hash.Hash shape (Write, Sum,
// Reset, Size, BlockSize) so it drops into idiomatic Go call sites, but
// every byte of the compression function below is our own.
package xsha256

import "encoding/binary"

// Size is the length in bytes of a SHA-256 digest.
const Size = 32

// BlockSize is the block size, in bytes, of the SHA-256 hash function.
const BlockSize = 64

var initialH = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

var roundK = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// Digest holds the incremental state of a SHA-256 computation.
type Digest struct {
	h    [8]uint32
	buf  [BlockSize]byte
	nbuf int   // bytes currently buffered, < BlockSize
	len  uint64 // total bytes written so far
}

// New returns a freshly initialized Digest.
func New() *Digest {
	d := &Digest{}
	d.Reset()
	return d
}

// Reset restores the Digest to its initial state, as if freshly created.
func (d *Digest) Reset() {
	d.h = initialH
	d.nbuf = 0
	d.len = 0
}

// Size returns the number of bytes Sum will return.
func (d *Digest) Size() int { return Size }

// BlockSize returns the hash's underlying block size.
func (d *Digest) BlockSize() int { return BlockSize }

// Write absorbs p into the running hash state. It never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	total := len(p)
	d.len += uint64(total)

	if d.nbuf > 0 {
		n := copy(d.buf[d.nbuf:], p)
		d.nbuf += n
		p = p[n:]
		if d.nbuf == BlockSize {
			d.blocks(d.buf[:])
			d.nbuf = 0
		}
	}

	for len(p) >= BlockSize {
		d.blocks(p[:BlockSize])
		p = p[BlockSize:]
	}

	if len(p) > 0 {
		d.nbuf = copy(d.buf[:], p)
	}

	return total, nil
}

// Sum appends the current digest to b and returns the resulting slice. It
// does not mutate the receiver's state, matching hash.Hash semantics: a
// caller may keep writing after calling Sum.
func (d *Digest) Sum(b []byte) []byte {
	clone := *d
	digest := clone.final()
	return append(b, digest[:]...)
}

// final pads the buffered tail per FIPS 180-4 §5.1.1 and produces the
// digest bytes. It mutates the receiver, which is why Sum operates on a
// copy.
func (d *Digest) final() [Size]byte {
	// Append the 0x80 terminator bit, then zero-pad until the length field
	// fits, then the 64-bit big-endian bit length.
	bitLen := d.len * 8

	var pad [BlockSize + 8]byte
	pad[0] = 0x80
	padLen := 1
	mod := int(d.len % uint64(BlockSize))
	if mod < 56 {
		padLen += 55 - mod
	} else {
		padLen += 119 - mod
	}
	binary.BigEndian.PutUint64(pad[padLen:padLen+8], bitLen)
	d.Write(pad[:padLen+8])

	var out [Size]byte
	for i, word := range d.h {
		binary.BigEndian.PutUint32(out[i*4:i*4+4], word)
	}
	return out
}

// Sum256 hashes data in one call and returns the 32-byte digest.
func Sum256(data []byte) [Size]byte {
	d := New()
	_, _ = d.Write(data)
	return d.final()
}

func rotr(x uint32, n uint) uint32 {
	return (x >> n) | (x << (32 - n))
}

// blocks processes exactly one 64-byte block, per FIPS 180-4 §6.2.2.
func (d *Digest) blocks(block []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4 : i*4+4])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr(w[i-15], 7) ^ rotr(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr(w[i-2], 17) ^ rotr(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, e, f, g := d.h[0], d.h[1], d.h[2], d.h[4], d.h[5], d.h[6]
	dd, hh := d.h[3], d.h[7]

	for i := 0; i < 64; i++ {
		s1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		ch := (e & f) ^ (^e & g)
		temp1 := hh + s1 + ch + roundK[i] + w[i]
		s0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		temp2 := s0 + maj

		hh = g
		g = f
		f = e
		e = dd + temp1
		dd = c
		c = b
		b = a
		a = temp1 + temp2
	}

	d.h[0] += a
	d.h[1] += b
	d.h[2] += c
	d.h[3] += dd
	d.h[4] += e
	d.h[5] += f
	d.h[6] += g
	d.h[7] += hh
}
