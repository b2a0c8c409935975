// Package augment implements the fixed-order, PRF-consumption-independent
// augmentation pipeline (spec.md §4.5): random_crop -> horizontal_flip ->
// vertical_flip -> brightness -> additive_noise. Every stage runs for every
// sample regardless of whether it is enabled; a disabled stage still draws
// the same PRF values its enabled counterpart would, so that toggling a
// flag never changes how many PRF draws precede a later stage.
package augment

import (
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/prf"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// Augment op_id byte, per spec.md §4.5's fixed assignment table.
const (
	augIDHFlip      uint32 = 0x01
	augIDVFlip      uint32 = 0x02
	augIDCropY      uint32 = 0x03
	augIDCropX      uint32 = 0x04
	augIDBrightness uint32 = 0x05
	augIDNoise      uint32 = 0x06
)

// Config holds the augmentation parameters for one pipeline run. Enabled
// flags gate whether a stage's result is applied; they never gate PRF
// consumption.
type Config struct {
	CropEnabled       bool
	CropHeight        uint32
	CropWidth         uint32
	HFlipEnabled      bool
	VFlipEnabled      bool
	BrightnessEnabled bool
	BrightnessDelta   fixed.Q16
	NoiseEnabled      bool
	NoiseAmplitude    fixed.Q16
}

// packOpID builds the 32-bit op_id from the augmentation byte and a
// sample-derived context: op_id = augID(8 bits) || sampleIdx_low16(16
// bits) || elementLowByte(8 bits). This packing is fixed and documented
// here per spec.md §4.5's "any bijective packing, provided it is fixed"
// allowance; it is not required to be globally injective across arbitrary
// sampleIdx values, only stable and reproducible for a given call.
func packOpID(augID uint32, sampleIdx uint32, elementLowByte byte) uint32 {
	return (augID << 24) | ((sampleIdx & 0xFFFF) << 8) | uint32(elementLowByte)
}

// Apply runs the fixed five-stage augmentation pipeline over in and
// returns a freshly allocated output sample. sampleIdx feeds the op_id
// packing so that different samples in the same epoch draw independent
// PRF streams. Shape may change (random_crop) so total_elements and dims
// are recomputed; all other stages are shape-preserving.
//
// The five stages run unconditionally: Start -> CropApplied -> HFlipApplied
// -> VFlipApplied -> BrightnessApplied -> NoiseApplied -> End. No stage
// ever branches on whether a later stage is enabled.
func Apply(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	cropped := applyCrop(cfg, seed, epoch, sampleIdx, in, faults)
	hflipped := applyHFlip(cfg, seed, epoch, sampleIdx, cropped, faults)
	vflipped := applyVFlip(cfg, seed, epoch, sampleIdx, hflipped, faults)
	brightened := applyBrightness(cfg, seed, epoch, sampleIdx, vflipped, faults)
	noised := applyNoise(cfg, seed, epoch, sampleIdx, brightened, faults)
	return noised
}

// dims2D returns the (height, width) of a 2D sample, treating Dims[0] as
// height and Dims[1] as width. Samples with fewer than 2 dims are passed
// through unchanged by the crop stage (there is nothing to crop).
func dims2D(s tensor.Sample) (h, w uint32, ok bool) {
	if s.NDims < 2 {
		return 0, 0, false
	}
	return s.Dims[0], s.Dims[1], true
}

func applyCrop(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	h, w, ok := dims2D(in)
	if !ok {
		return in.Clone()
	}

	cropH, cropW := cfg.CropHeight, cfg.CropWidth
	if cropH == 0 || cropH > h {
		cropH = h
	}
	if cropW == 0 || cropW > w {
		cropW = w
	}
	maxY := h - cropH
	maxX := w - cropW

	opY := packOpID(augIDCropY, sampleIdx, 0)
	opX := packOpID(augIDCropX, sampleIdx, 0)
	drawY, faultY := prf.Uniform(seed, epoch, opY, maxY+1)
	drawX, faultX := prf.Uniform(seed, epoch, opX, maxX+1)
	if faultY.RejectionExhausted || faultX.RejectionExhausted {
		faults.SetDomain()
	}

	if !cfg.CropEnabled {
		// Discard the draws; use the centre crop instead.
		drawY = maxY / 2
		drawX = maxX / 2
	}
	offsetY, offsetX := drawY, drawX

	out := tensor.NewSample([]uint32{cropH, cropW})
	for y := uint32(0); y < cropH; y++ {
		for x := uint32(0); x < cropW; x++ {
			srcIdx := (offsetY+y)*w + (offsetX + x)
			dstIdx := y*cropW + x
			out.Data[dstIdx] = in.Data[srcIdx]
		}
	}
	return out
}

func applyHFlip(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	op := packOpID(augIDHFlip, sampleIdx, 0)
	r := prf.PRF(seed, epoch, op)
	decision := r & 1

	out := in.Clone()
	h, w, ok := dims2D(in)
	if !ok || !cfg.HFlipEnabled || decision != 1 {
		return out
	}
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w/2; x++ {
			left := y*w + x
			right := y*w + (w - 1 - x)
			out.Data[left], out.Data[right] = out.Data[right], out.Data[left]
		}
	}
	return out
}

func applyVFlip(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	op := packOpID(augIDVFlip, sampleIdx, 0)
	r := prf.PRF(seed, epoch, op)
	decision := r & 1

	out := in.Clone()
	h, w, ok := dims2D(in)
	if !ok || !cfg.VFlipEnabled || decision != 1 {
		return out
	}
	for y := uint32(0); y < h/2; y++ {
		top := y * w
		bottom := (h - 1 - y) * w
		for x := uint32(0); x < w; x++ {
			out.Data[top+x], out.Data[bottom+x] = out.Data[bottom+x], out.Data[top+x]
		}
	}
	return out
}

func applyBrightness(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	op := packOpID(augIDBrightness, sampleIdx, 0)
	r := prf.PRF(seed, epoch, op)
	rSigned := int32(r&0xFFFF) - 32768

	offset := fixed.RoundShiftRNE(fixed.Mul64(fixed.Q16(rSigned), cfg.BrightnessDelta), 15, faults)
	factor := fixed.Add32(fixed.One, offset, faults)

	out := in.Clone()
	if !cfg.BrightnessEnabled {
		return out
	}
	for i := range out.Data {
		out.Data[i] = fixed.RoundShiftRNE(fixed.Mul64(in.Data[i], factor), 16, faults)
	}
	return out
}

func applyNoise(cfg Config, seed uint64, epoch uint32, sampleIdx uint32, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	out := in.Clone()
	for i := range out.Data {
		op := packOpID(augIDNoise, sampleIdx, byte(uint32(i)&0xFF))
		r := prf.PRF(seed, epoch, op)
		rSigned := int32(r&0xFFFF) - 32768
		noise := fixed.RoundShiftRNE(fixed.Mul64(fixed.Q16(rSigned), cfg.NoiseAmplitude), 15, faults)

		if !cfg.NoiseEnabled {
			continue
		}
		out.Data[i] = fixed.Add32(in.Data[i], noise, faults)
	}
	return out
}
