package merkle

import (
	"encoding/binary"

	"github.com/roach88/ctpipeline/internal/xsha256"
)

// Provenance is the rolling commitment chain binding a dataset, a
// configuration, a seed, and the ordered history of completed epochs
// (spec.md §4.6, §3). It is strictly append-only: Advance is the only
// mutator, and it always moves current_epoch and total_epochs forward.
type Provenance struct {
	DatasetHash  Digest
	ConfigHash   Digest
	Seed         uint64
	CurrentEpoch uint32
	TotalEpochs  uint32
	PrevHash     Digest
	CurrentHash  Digest
}

// InitProvenance computes h0 = SHA256(PROVENANCE_INIT || dataset_hash ||
// config_hash || seed_LE(8)) and returns a chain with both prev_hash and
// current_hash set to h0, current_epoch = 0, total_epochs = 0.
func InitProvenance(datasetHash, configHash Digest, seed uint64) Provenance {
	h := xsha256.New()
	h.Write([]byte{domainProvenanceInit})
	h.Write(datasetHash[:])
	h.Write(configHash[:])
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], seed)
	h.Write(seedBuf[:])

	var h0 Digest
	h.Sum(h0[:0])

	return Provenance{
		DatasetHash:  datasetHash,
		ConfigHash:   configHash,
		Seed:         seed,
		CurrentEpoch: 0,
		TotalEpochs:  0,
		PrevHash:     h0,
		CurrentHash:  h0,
	}
}

// Advance folds an epoch's commitment into the chain: prev_hash becomes
// the current current_hash, and the new current_hash is
// SHA256(EPOCH_CHAIN || prev_hash || epochHash || current_epoch_LE(4)),
// where the epoch number bound into the hash is the epoch that just
// completed (pre-increment semantics). current_epoch and total_epochs are
// incremented only after the hash is computed.
func (p *Provenance) Advance(epochHash Digest) {
	h := xsha256.New()
	h.Write([]byte{domainEpochChain})
	h.Write(p.CurrentHash[:])
	h.Write(epochHash[:])
	var epochBuf [4]byte
	binary.LittleEndian.PutUint32(epochBuf[:], p.CurrentEpoch)
	h.Write(epochBuf[:])

	var next Digest
	h.Sum(next[:0])

	p.PrevHash = p.CurrentHash
	p.CurrentHash = next
	p.CurrentEpoch++
	p.TotalEpochs++
}
