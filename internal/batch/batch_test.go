package batch

import (
	"testing"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeDistinctSamples() tensor.Dataset {
	s0 := tensor.NewSample([]uint32{2})
	s0.Data = []fixed.Q16{1, 2}
	s1 := tensor.NewSample([]uint32{2})
	s1.Data = []fixed.Q16{3, 4}
	s2 := tensor.NewSample([]uint32{2})
	s2.Data = []fixed.Q16{5, 6}
	return tensor.NewDataset([]tensor.Sample{s0, s1, s2})
}

func identityConfig() Config {
	return Config{}
}

func TestFill_EffectiveCountsAndPadding(t *testing.T) {
	ds := threeDistinctSamples()
	var faults fixed.FaultFlags

	b := Fill(identityConfig(), &ds, 0, 2, 0, 0x123456789ABCDEF0, &faults)
	assert.Equal(t, uint32(2), b.Effective)
	assert.Equal(t, uint32(2), b.BatchSize)

	b2 := Fill(identityConfig(), &ds, 1, 2, 0, 0x123456789ABCDEF0, &faults)
	assert.Equal(t, uint32(1), b2.Effective) // N=3, start=2, only 1 remains
	assert.Equal(t, uint32(2), b2.BatchSize)
	// Padding slot (index 1) stays zero-valued.
	assert.Equal(t, merkle0(), b2.Hashes[1])
}

func merkle0() (z [32]byte) { return }

func TestFill_BatchHashExcludesPaddingSlots(t *testing.T) {
	ds := threeDistinctSamples()
	var faults fixed.FaultFlags

	b := Fill(identityConfig(), &ds, 1, 2, 0, 0x123456789ABCDEF0, &faults)
	var verifyFaults fixed.FaultFlags
	assert.True(t, Verify(b, &verifyFaults))
	assert.False(t, verifyFaults.HashMismatch)
}

func TestFill_BatchHashDiffersAcrossEpochs(t *testing.T) {
	ds := threeDistinctSamples()
	var f1, f2 fixed.FaultFlags

	b0 := Fill(identityConfig(), &ds, 0, 2, 0, 0x123456789ABCDEF0, &f1)
	b1 := Fill(identityConfig(), &ds, 0, 2, 1, 0x123456789ABCDEF0, &f2)

	assert.NotEqual(t, b0.Hash, b1.Hash)
}

func TestVerify_TamperDetection(t *testing.T) {
	ds := threeDistinctSamples()
	var faults fixed.FaultFlags

	b := Fill(identityConfig(), &ds, 0, 2, 0, 0x123456789ABCDEF0, &faults)
	var verifyFaults fixed.FaultFlags
	require.True(t, Verify(b, &verifyFaults))
	assert.False(t, verifyFaults.HashMismatch)

	b.Hash[0] ^= 0xFF
	assert.False(t, Verify(b, &verifyFaults))
	assert.True(t, verifyFaults.HashMismatch)
}

func TestFill_RefsRecordOriginalAndShuffledIndices(t *testing.T) {
	ds := threeDistinctSamples()
	var faults fixed.FaultFlags

	b := Fill(identityConfig(), &ds, 0, 3, 0, 0x123456789ABCDEF0, &faults)
	seen := map[uint32]bool{}
	for i, ref := range b.Refs {
		assert.Equal(t, uint32(i), ref.OriginalIndex)
		seen[ref.ShuffledIndex] = true
	}
	assert.Len(t, seen, 3) // a bijection over N=3: all shuffled indices distinct
}
