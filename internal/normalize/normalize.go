// Package normalize implements the per-feature affine normalization
// transform: out[i] = (in[i] - mean[i]) * inv_std[i], computed entirely in
// Q16.16 via the DVM primitives (spec.md §4.4).
package normalize

import (
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// Config holds the precomputed per-feature statistics. Runtime statistics
// estimation is forbidden by the spec: Means and InvStds must be supplied
// by an offline computation (see loadNormalizeConfig in internal/cli,
// which reads them from a binary statistics file).
type Config struct {
	Means   []fixed.Q16
	InvStds []fixed.Q16
}

// NumFeatures returns the number of features this config normalizes.
func (c Config) NumFeatures() int {
	if len(c.Means) < len(c.InvStds) {
		return len(c.Means)
	}
	return len(c.InvStds)
}

// Apply normalizes in into a freshly allocated output Sample. Metadata
// (version, dtype, ndims, dims, total_elements) is copied verbatim; shape
// is unchanged. Elements at index >= NumFeatures() are copied through
// unmodified. Overflow/underflow on any element sets the corresponding
// sticky fault and processing continues through the remaining elements —
// there is no early exit.
func Apply(cfg Config, in tensor.Sample, faults *fixed.FaultFlags) tensor.Sample {
	out := in.Clone()
	numFeatures := cfg.NumFeatures()

	limit := int(in.TotalElements)
	if numFeatures < limit {
		limit = numFeatures
	}

	for i := 0; i < limit; i++ {
		centered := fixed.Sub32(in.Data[i], cfg.Means[i], faults)
		out.Data[i] = fixed.MulQ16(centered, cfg.InvStds[i], faults)
	}
	// Remaining elements (i >= numFeatures) are already correct in out
	// because Clone copied in.Data verbatim.

	return out
}

// ApplyInPlace normalizes in using the same element loop as Apply but
// writes directly into in.Data, matching the spec's allowance that the
// out buffer may alias the in buffer.
func ApplyInPlace(cfg Config, s *tensor.Sample, faults *fixed.FaultFlags) {
	numFeatures := cfg.NumFeatures()
	limit := int(s.TotalElements)
	if numFeatures < limit {
		limit = numFeatures
	}
	for i := 0; i < limit; i++ {
		centered := fixed.Sub32(s.Data[i], cfg.Means[i], faults)
		s.Data[i] = fixed.MulQ16(centered, cfg.InvStds[i], faults)
	}
}
