// Package merkle implements sample/leaf hashing, odd-leaf-promotion Merkle
// tree construction, and the batch/epoch/provenance commitment chain
// (spec.md §4.6). It owns every domain-separation byte in the system so
// that no other package can drift from the canonical prefix table.
package merkle

import (
	"encoding/binary"

	"github.com/roach88/ctpipeline/internal/tensor"
	"github.com/roach88/ctpipeline/internal/xsha256"
)

// Digest is a 32-byte SHA-256 commitment.
type Digest = [32]byte

// Domain-separation prefixes, frozen per spec.md §4.6's resolution of the
// open question (the draft corpus disagreed; these are the values the
// source implementation actually uses).
const (
	domainLeaf           byte = 0x00
	domainInternal       byte = 0x01
	domainBatch          byte = 0x02 // unused: batch_hash resolved to the plain root (spec.md §9), never SHA256(0x02 || ...); kept to hold this byte out of the frozen table
	domainProvenanceInit byte = 0x03
	domainEpochChain     byte = 0x04
)

// serializeSample produces the canonical byte sequence hashed into a leaf:
// version_LE(4) || dtype_LE(4) || ndims_LE(4) || dims[0..MAX_DIMS]_LE ||
// data[i]_LE(4) for i in [0, total_elements).
func serializeSample(s tensor.Sample) []byte {
	buf := make([]byte, 0, 16+tensor.MaxDims*4+len(s.Data)*4)
	var u32 [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		buf = append(buf, u32[:]...)
	}

	putU32(s.Version)
	putU32(s.Dtype)
	putU32(s.NDims)
	for i := 0; i < tensor.MaxDims; i++ {
		putU32(s.Dims[i])
	}
	for _, v := range s.Data {
		putU32(uint32(int32(v)))
	}
	return buf
}

// HashSample computes H_sample(s) = SHA256(LEAF || serialize_sample(s)).
func HashSample(s tensor.Sample) Digest {
	h := xsha256.New()
	h.Write([]byte{domainLeaf})
	h.Write(serializeSample(s))
	var out Digest
	h.Sum(out[:0])
	return out
}

// hashNode computes H_node(L, R) = SHA256(INTERNAL || L || R).
func hashNode(l, r Digest) Digest {
	h := xsha256.New()
	h.Write([]byte{domainInternal})
	h.Write(l[:])
	h.Write(r[:])
	var out Digest
	h.Sum(out[:0])
	return out
}

// MaxLeaves bounds the size of a single merkle_root computation. The
// source keeps Merkle scratch space in a fixed-size stack buffer; this is
// the Go analogue of that compile-time capacity.
const MaxLeaves = 1 << 20

// CapacityExceeded reports that a Root call was asked to hash more leaves
// than MaxLeaves permits. Per spec.md §4.6's no-dynamic-allocation note,
// this case refuses to compute a root rather than silently truncating.
type CapacityExceeded struct {
	Requested int
}

func (e *CapacityExceeded) Error() string {
	return "merkle: leaf count exceeds compile-time capacity"
}

// Root computes the Merkle root over leaves using odd-leaf promotion: for
// an odd-sized level, the last node is copied unchanged into the next
// level rather than duplicated and hashed with itself. Zero leaves yields
// an all-zero digest; one leaf yields that leaf unchanged.
//
// This diverges from the common "duplicate last leaf" convention and
// changes every interior digest — spec.md §4.6 requires this be
// documented prominently, not silently matched to the common convention.
func Root(leaves []Digest) (Digest, error) {
	if len(leaves) > MaxLeaves {
		return Digest{}, &CapacityExceeded{Requested: len(leaves)}
	}
	if len(leaves) == 0 {
		return Digest{}, nil
	}
	level := make([]Digest, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]Digest, 0, (len(level)+1)/2)
		i := 0
		for ; i+1 < len(level); i += 2 {
			next = append(next, hashNode(level[i], level[i+1]))
		}
		if i < len(level) {
			next = append(next, level[i]) // odd-leaf promotion
		}
		level = next
	}
	return level[0], nil
}

// BatchHash computes the stored batch_hash as the plain Merkle root of the
// sample-hash array — spec.md §4.6 flags the alternative (a SHA over root
// + epoch + batch_index + batch_size) as an open question and resolves it
// in favor of matching the source implementation's plain-root behavior.
func BatchHash(sampleHashes []Digest) (Digest, error) {
	return Root(sampleHashes)
}

// EpochHash computes H_epoch = merkle_root(batch_hashes_of_epoch).
func EpochHash(batchHashes []Digest) (Digest, error) {
	return Root(batchHashes)
}

// ComputeDatasetHash commits to an entire dataset as the Merkle root of
// every sample's leaf hash, in sample order. internal/tensor defers this
// computation here to avoid an import cycle (tensor must not depend on
// merkle).
func ComputeDatasetHash(samples []tensor.Sample) (Digest, error) {
	leaves := make([]Digest, len(samples))
	for i, s := range samples {
		leaves[i] = HashSample(s)
	}
	return Root(leaves)
}
