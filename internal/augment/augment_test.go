package augment

import (
	"testing"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/prf"
	"github.com/roach88/ctpipeline/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square4x4() tensor.Sample {
	s := tensor.NewSample([]uint32{4, 4})
	for i := range s.Data {
		s.Data[i] = fixed.Q16(i)
	}
	return s
}

func TestApply_Deterministic(t *testing.T) {
	cfg := Config{}
	in := square4x4()
	var f1, f2 fixed.FaultFlags

	out1 := Apply(cfg, 42, 0, 3, in, &f1)
	out2 := Apply(cfg, 42, 0, 3, in, &f2)

	assert.Equal(t, out1.Data, out2.Data)
	assert.Equal(t, out1.Dims, out2.Dims)
}

func TestApply_AllDisabled_StillConsumesPRFButIsShapeIdentity(t *testing.T) {
	cfg := Config{} // everything disabled, crop dims zero -> full-size centre crop
	in := square4x4()
	var faults fixed.FaultFlags

	out := Apply(cfg, 1, 0, 0, in, &faults)

	assert.Equal(t, in.Dims, out.Dims)
	assert.Equal(t, in.TotalElements, out.TotalElements)
	assert.False(t, faults.AnyFault())
}

func TestHFlip_EnabledReversesColumnsWhenDecisionBitIsOne(t *testing.T) {
	in := square4x4()
	// Find a (seed, epoch, sampleIdx) combination whose hflip decision bit is 1.
	var seed uint64
	var found bool
	for seed = 0; seed < 64; seed++ {
		op := packOpID(augIDHFlip, 0, 0)
		if prf.PRF(seed, 0, op)&1 == 1 {
			found = true
			break
		}
	}
	require.True(t, found, "expected to find a seed with decision bit 1 within 64 tries")

	cfg := Config{HFlipEnabled: true}
	var faults fixed.FaultFlags
	out := applyHFlip(cfg, seed, 0, 0, in, &faults)

	// Row 0 reversed: [0,1,2,3] -> [3,2,1,0].
	assert.Equal(t, fixed.Q16(3), out.Data[0])
	assert.Equal(t, fixed.Q16(2), out.Data[1])
	assert.Equal(t, fixed.Q16(1), out.Data[2])
	assert.Equal(t, fixed.Q16(0), out.Data[3])
}

func TestHFlip_DisabledNeverMutatesRegardlessOfDecisionBit(t *testing.T) {
	in := square4x4()
	cfg := Config{HFlipEnabled: false}
	var faults fixed.FaultFlags

	for seed := uint64(0); seed < 16; seed++ {
		out := applyHFlip(cfg, seed, 0, 0, in, &faults)
		assert.Equal(t, in.Data, out.Data)
	}
}

func TestCrop_DisabledUsesCentreCropButStillDraws(t *testing.T) {
	in := square4x4()
	cfg := Config{CropEnabled: false, CropHeight: 2, CropWidth: 2}
	var faults fixed.FaultFlags

	out := applyCrop(cfg, 7, 0, 0, in, &faults)
	require.Equal(t, uint32(2), out.Dims[0])
	require.Equal(t, uint32(2), out.Dims[1])

	// Centre crop of a 4x4 with crop 2x2: maxY = maxX = 2, offset = 1.
	// Expected elements at (1,1),(1,2),(2,1),(2,2) = indices 5,6,9,10.
	assert.Equal(t, fixed.Q16(5), out.Data[0])
	assert.Equal(t, fixed.Q16(6), out.Data[1])
	assert.Equal(t, fixed.Q16(9), out.Data[2])
	assert.Equal(t, fixed.Q16(10), out.Data[3])
}

func TestCrop_EnabledChangesShapeAndTotalElements(t *testing.T) {
	in := square4x4()
	cfg := Config{CropEnabled: true, CropHeight: 2, CropWidth: 3}
	var faults fixed.FaultFlags

	out := applyCrop(cfg, 1, 0, 0, in, &faults)
	assert.Equal(t, uint32(2), out.Dims[0])
	assert.Equal(t, uint32(3), out.Dims[1])
	assert.Equal(t, uint32(6), out.TotalElements)
}

func TestBrightness_DisabledIsIdentityDespiteDraw(t *testing.T) {
	in := square4x4()
	cfg := Config{BrightnessEnabled: false, BrightnessDelta: fixed.One}
	var faults fixed.FaultFlags

	out := applyBrightness(cfg, 9, 0, 0, in, &faults)
	assert.Equal(t, in.Data, out.Data)
}

func TestNoise_EnabledPerturbsAtLeastOneElement(t *testing.T) {
	in := square4x4()
	cfg := Config{NoiseEnabled: true, NoiseAmplitude: fixed.One}
	var faults fixed.FaultFlags

	out := applyNoise(cfg, 123, 0, 0, in, &faults)
	differs := false
	for i := range out.Data {
		if out.Data[i] != in.Data[i] {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestNoise_DisabledIsIdentityDespiteDraws(t *testing.T) {
	in := square4x4()
	cfg := Config{NoiseEnabled: false, NoiseAmplitude: fixed.One}
	var faults fixed.FaultFlags

	out := applyNoise(cfg, 123, 0, 0, in, &faults)
	assert.Equal(t, in.Data, out.Data)
}

func TestApply_DifferentSampleIdxYieldsIndependentStreams(t *testing.T) {
	cfg := Config{HFlipEnabled: true, VFlipEnabled: true, BrightnessEnabled: true, BrightnessDelta: fixed.One, NoiseEnabled: true, NoiseAmplitude: fixed.One}
	in := square4x4()
	var f1, f2 fixed.FaultFlags

	out1 := Apply(cfg, 55, 0, 0, in, &f1)
	out2 := Apply(cfg, 55, 0, 1, in, &f2)

	assert.NotEqual(t, out1.Data, out2.Data)
}

func TestPackOpID_EncodesAugIDInTopByte(t *testing.T) {
	op := packOpID(augIDNoise, 0x1234, 0x56)
	assert.Equal(t, augIDNoise, op>>24)
}
