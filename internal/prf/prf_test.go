package prf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPRF_Deterministic(t *testing.T) {
	a := PRF(42, 3, 7)
	b := PRF(42, 3, 7)
	assert.Equal(t, a, b)
}

func TestPRF_AvalancheOnSeedBit(t *testing.T) {
	base := PRF(0x123456789ABCDEF0, 0, 0)
	flipped := PRF(0x123456789ABCDEF0^1, 0, 0)
	assert.GreaterOrEqual(t, popcount(base^flipped), 20)
}

func TestPRF_AvalancheOnEpoch(t *testing.T) {
	base := PRF(1, 0, 0)
	flipped := PRF(1, 1, 0)
	assert.GreaterOrEqual(t, popcount(base^flipped), 20)
}

func TestPRF_AvalancheOnOpID(t *testing.T) {
	base := PRF(1, 0, 0)
	flipped := PRF(1, 0, 1)
	assert.GreaterOrEqual(t, popcount(base^flipped), 20)
}

func TestPRF_DiffersAcrossOpIDs(t *testing.T) {
	seen := map[uint64]bool{}
	for opID := uint32(0); opID < 64; opID++ {
		v := PRF(99, 5, opID)
		assert.False(t, seen[v], "collision at opID=%d", opID)
		seen[v] = true
	}
}

func TestUniform_DegenerateRanges(t *testing.T) {
	v, f := Uniform(1, 0, 0, 0)
	assert.Equal(t, uint32(0), v)
	assert.False(t, f.RejectionExhausted)

	v, f = Uniform(1, 0, 0, 1)
	assert.Equal(t, uint32(0), v)
	assert.False(t, f.RejectionExhausted)
}

func TestUniform_AlwaysInRange(t *testing.T) {
	ns := []uint32{2, 3, 7, 17, 65536, 65537, 100000, 1 << 20}
	for _, n := range ns {
		for opID := uint32(0); opID < 50; opID++ {
			v, _ := Uniform(0xFEDCBA9876543210, opID, opID*3, n)
			assert.Less(t, v, n, "n=%d opID=%d", n, opID)
		}
	}
}

func TestUniform_Deterministic(t *testing.T) {
	v1, f1 := Uniform(7, 2, 9, 1000)
	v2, f2 := Uniform(7, 2, 9, 1000)
	assert.Equal(t, v1, v2)
	assert.Equal(t, f1, f2)
}

func TestUniform_LargeNUsesPlainModulo(t *testing.T) {
	n := uint32(100000)
	v, f := Uniform(5, 1, 2, n)
	expected := uint32(PRF(5, 1, 2) % uint64(n))
	assert.Equal(t, expected, v)
	assert.False(t, f.RejectionExhausted)
}

func popcount(x uint64) int {
	count := 0
	for x != 0 {
		count += int(x & 1)
		x >>= 1
	}
	return count
}
