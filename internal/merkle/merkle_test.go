package merkle

import (
	"testing"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWithData(data ...fixed.Q16) tensor.Sample {
	s := tensor.NewSample([]uint32{uint32(len(data))})
	copy(s.Data, data)
	return s
}

func TestHashSample_Deterministic(t *testing.T) {
	s := sampleWithData(1, 2, 3)
	assert.Equal(t, HashSample(s), HashSample(s))
}

func TestHashSample_DiffersOnData(t *testing.T) {
	a := sampleWithData(1, 2, 3)
	b := sampleWithData(1, 2, 4)
	assert.NotEqual(t, HashSample(a), HashSample(b))
}

func TestRoot_ZeroLeaves(t *testing.T) {
	root, err := Root(nil)
	require.NoError(t, err)
	assert.Equal(t, Digest{}, root)
}

func TestRoot_OneLeaf(t *testing.T) {
	var leaf Digest
	leaf[0] = 0xAB
	root, err := Root([]Digest{leaf})
	require.NoError(t, err)
	assert.Equal(t, leaf, root)
}

func TestRoot_TwoLeaves(t *testing.T) {
	var a, b Digest
	a[0] = 1
	b[0] = 2
	root, err := Root([]Digest{a, b})
	require.NoError(t, err)
	assert.Equal(t, hashNode(a, b), root)
}

// The defining behavioral test: odd-leaf promotion, not duplicate-and-hash.
// merkle_root([a,b,c]) = H_node(H_node(a,b), c).
func TestRoot_ThreeLeaves_OddLeafIsPromotedNotDuplicated(t *testing.T) {
	var a, b, c Digest
	a[0], b[0], c[0] = 1, 2, 3

	root, err := Root([]Digest{a, b, c})
	require.NoError(t, err)

	want := hashNode(hashNode(a, b), c)
	assert.Equal(t, want, root)

	// Explicitly distinguish from the duplicate-and-hash convention.
	duplicated := hashNode(hashNode(a, b), hashNode(c, c))
	assert.NotEqual(t, duplicated, root)
}

func TestRoot_FiveLeaves_PromotionAtEachOddLevel(t *testing.T) {
	leaves := make([]Digest, 5)
	for i := range leaves {
		leaves[i][0] = byte(i + 1)
	}
	// Level 0 (5): pair (0,1),(2,3), promote 4 -> level 1 has 3 nodes.
	// Level 1 (3): pair (0,1), promote 2 -> level 2 has 2 nodes.
	// Level 2 (2): pair -> root.
	n01 := hashNode(leaves[0], leaves[1])
	n23 := hashNode(leaves[2], leaves[3])
	lvl1 := []Digest{n01, n23, leaves[4]}
	n0 := hashNode(lvl1[0], lvl1[1])
	lvl2 := []Digest{n0, lvl1[2]}
	want := hashNode(lvl2[0], lvl2[1])

	root, err := Root(leaves)
	require.NoError(t, err)
	assert.Equal(t, want, root)
}

func TestRoot_ExceedsCapacity(t *testing.T) {
	leaves := make([]Digest, MaxLeaves+1)
	_, err := Root(leaves)
	require.Error(t, err)
	var capErr *CapacityExceeded
	assert.ErrorAs(t, err, &capErr)
}

func TestBatchHash_IsPlainMerkleRootOfSampleHashes(t *testing.T) {
	a := HashSample(sampleWithData(1))
	b := HashSample(sampleWithData(2))
	want, err := Root([]Digest{a, b})
	require.NoError(t, err)

	got, err := BatchHash([]Digest{a, b})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEpochHash_IsMerkleRootOfBatchHashes(t *testing.T) {
	var b1, b2, b3 Digest
	b1[0], b2[0], b3[0] = 1, 2, 3
	want, err := Root([]Digest{b1, b2, b3})
	require.NoError(t, err)

	got, err := EpochHash([]Digest{b1, b2, b3})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestComputeDatasetHash_MatchesManualLeafHashing(t *testing.T) {
	samples := []tensor.Sample{
		sampleWithData(1, 2),
		sampleWithData(3, 4),
		sampleWithData(5, 6),
	}
	leaves := []Digest{HashSample(samples[0]), HashSample(samples[1]), HashSample(samples[2])}
	want, err := Root(leaves)
	require.NoError(t, err)

	got, err := ComputeDatasetHash(samples)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSerializeSample_IncludesAllFourDimSlotsRegardlessOfNDims(t *testing.T) {
	s := tensor.NewSample([]uint32{3})
	other := sampleWithData(0, 0, 0)
	other.Dims = s.Dims
	// A 1-D sample still serializes all MaxDims dim slots:
	// version/dtype/ndims (3*4) + 4 dims (4*4) + 3 elements (3*4) = 40 bytes.
	assert.Len(t, serializeSample(s), 3*4+tensor.MaxDims*4+3*4)
	// Two samples with the same NDims/Dims/Data hash identically.
	assert.Equal(t, HashSample(s), HashSample(other))
}
