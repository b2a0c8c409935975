// Package batch implements batch assembly (spec.md §4.7): selecting
// samples by permuted index, applying augmentation and normalization,
// hashing each resulting sample, and committing the batch to a Merkle
// root over those hashes.
package batch

import (
	"github.com/roach88/ctpipeline/internal/augment"
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/merkle"
	"github.com/roach88/ctpipeline/internal/normalize"
	"github.com/roach88/ctpipeline/internal/permute"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// Ref pairs an output slot with the original and shuffled dataset index
// that produced it.
type Ref struct {
	OriginalIndex uint32
	ShuffledIndex uint32
}

// Batch is a fully assembled, never-mutated-after-construction commitment
// to one (epoch, batch_index) slice of an epoch's data. Padding slots
// (when the dataset's tail is shorter than BatchSize) carry a zero Ref, a
// zero-value Sample, and a zero sample hash; they are excluded from
// Effective and therefore from the Merkle root.
type Batch struct {
	Epoch      uint32
	BatchIndex uint32
	BatchSize  uint32
	Effective  uint32
	Refs       []Ref
	Samples    []tensor.Sample
	Hashes     []merkle.Digest
	Root       merkle.Digest
	Hash       merkle.Digest
}

// Config bundles the augmentation and normalization parameters that Fill
// applies to every selected sample before hashing it, matching the full
// pipeline data flow of Permute -> Augment -> Normalize -> Hash.
type Config struct {
	Augment   augment.Config
	Normalize normalize.Config
}

// Fill constructs a Batch for (epoch, batchIndex) against dataset, per
// spec.md §4.7: start = batchIndex * batchSize, effective =
// min(batchSize, N - start). For i in [0, effective), the global index
// start+i is permuted to a shuffled dataset index, the shuffled sample is
// augmented then normalized, and the result's hash is recorded. Slots
// [effective, batchSize) are left zero-valued (padding). batch_hash is
// the Merkle root of sample_hashes[0:effective] only.
func Fill(cfg Config, dataset *tensor.Dataset, batchIndex uint32, batchSize uint32, epoch uint32, seed uint64, faults *fixed.FaultFlags) Batch {
	n := dataset.NumSamples
	start := batchIndex * batchSize
	var effective uint32
	if start < n {
		effective = n - start
		if effective > batchSize {
			effective = batchSize
		}
	}

	b := Batch{
		Epoch:      epoch,
		BatchIndex: batchIndex,
		BatchSize:  batchSize,
		Effective:  effective,
		Refs:       make([]Ref, batchSize),
		Samples:    make([]tensor.Sample, batchSize),
		Hashes:     make([]merkle.Digest, batchSize),
	}

	for i := uint32(0); i < effective; i++ {
		global := start + i
		shuffled, domainFault := permute.Index(global, n, seed, epoch)
		if domainFault.Exhausted {
			faults.SetDomain()
		}

		b.Refs[i] = Ref{OriginalIndex: global, ShuffledIndex: shuffled}

		raw := dataset.Samples[shuffled]
		augmented := augment.Apply(cfg.Augment, seed, epoch, shuffled, raw, faults)
		normalized := normalize.Apply(cfg.Normalize, augmented, faults)

		b.Samples[i] = normalized
		b.Hashes[i] = merkle.HashSample(normalized)
	}

	root, err := merkle.Root(b.Hashes[:effective])
	if err != nil {
		faults.SetDomain()
	}
	b.Root = root
	b.Hash = root

	return b
}

// Verify recomputes the Merkle root of b's recorded sample hashes and
// compares it byte-for-byte against b.Hash, setting hash_mismatch on faults
// when the two disagree (spec.md §4.6: "Mismatch sets hash_mismatch"). Per
// spec.md §4.6, any fault set at any point during construction must also
// surface as a failure here, so callers should AND this result with
// !faults.AnyFault().
func Verify(b Batch, faults *fixed.FaultFlags) bool {
	root, err := merkle.Root(b.Hashes[:b.Effective])
	if err != nil || root != b.Hash {
		faults.SetHashMismatch()
		return false
	}
	return true
}
