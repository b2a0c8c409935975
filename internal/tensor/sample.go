// Package tensor holds the Sample/Dataset data model and the on-disk
// formats that produce and consume them: the binary tensor file, the
// binary statistics file, and the decimal CSV format (spec.md §3, §6).
package tensor

import "github.com/roach88/ctpipeline/internal/fixed"

// MaxDims is the maximum number of dimensions a Sample may carry.
const MaxDims = 4

// DtypeQ16 is the only dtype value the pipeline defines: Q16.16 fixed-point.
const DtypeQ16 uint32 = 0

// Sample is a tensor-like record: a row-major, fixed-size sequence of
// Q16.16 values with a small fixed-size shape header.
//
// Data is non-owning: the pipeline never mutates a Sample it did not
// itself allocate, and treats dataset samples strictly as read-only
// references. Callers own the backing array of Data.
type Sample struct {
	Version       uint32
	Dtype         uint32
	NDims         uint32
	Dims          [MaxDims]uint32
	TotalElements uint32
	Data          []fixed.Q16
}

// NewSample allocates a Sample with the given dims (up to MaxDims) and a
// freshly zeroed Data buffer sized to the product of dims.
func NewSample(dims []uint32) Sample {
	var s Sample
	s.Version = 1
	s.Dtype = DtypeQ16
	s.NDims = uint32(len(dims))
	total := uint32(1)
	for i, d := range dims {
		if i >= MaxDims {
			break
		}
		s.Dims[i] = d
		total *= d
	}
	s.TotalElements = total
	s.Data = make([]fixed.Q16, total)
	return s
}

// Validate checks the format invariant that TotalElements equals the
// product of the used dims and that NDims/len(Data) are within bounds.
// A violation is reported as format_error, matching §3's "violation is a
// format fault at load time" rule — this function never panics.
func (s *Sample) Validate(faults *fixed.FaultFlags) bool {
	if s.NDims > MaxDims {
		faults.SetFormatError()
		return false
	}
	product := uint32(1)
	for i := uint32(0); i < s.NDims; i++ {
		product *= s.Dims[i]
	}
	if product != s.TotalElements {
		faults.SetFormatError()
		return false
	}
	if uint32(len(s.Data)) != s.TotalElements {
		faults.SetFormatError()
		return false
	}
	return true
}

// Clone returns a deep copy of s, including its own backing Data array.
// The pipeline never mutates a shared Sample in place; every stage that
// transforms a sample produces a fresh output Sample via Clone or
// NewSample.
func (s Sample) Clone() Sample {
	out := s
	out.Data = make([]fixed.Q16, len(s.Data))
	copy(out.Data, s.Data)
	return out
}

// Dataset is the logical owner of a uniform collection of Samples plus a
// commitment to its contents. Once DatasetHash is computed (internal/merkle
// owns that computation, to keep this package hash-layout-agnostic) the
// dataset is immutable: the pipeline treats every Sample in it as a
// read-only reference for the remainder of the run.
type Dataset struct {
	NumSamples  uint32
	Samples     []Sample
	DatasetHash [32]byte
}

// NewDataset wraps samples into a Dataset, deriving NumSamples from the
// slice length so the two can never desynchronize. DatasetHash is left
// zero; callers compute it via merkle.ComputeDatasetHash once loading is
// complete.
func NewDataset(samples []Sample) Dataset {
	return Dataset{
		NumSamples: uint32(len(samples)),
		Samples:    samples,
	}
}
