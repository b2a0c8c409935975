// Package pipeline wires the core primitives (PRF, Permute, Augment,
// Normalize, Hash, Merkle, Provenance) into the exact per-epoch data flow
// of the original spec's §2 data-flow line, and drives the audit store and
// structured logging around that core (SPEC_FULL.md §4.12).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/ctpipeline/internal/audit"
	"github.com/roach88/ctpipeline/internal/augment"
	"github.com/roach88/ctpipeline/internal/batch"
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/merkle"
	"github.com/roach88/ctpipeline/internal/normalize"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// Config bundles everything RunEpoch needs beyond the dataset and
// provenance chain it is threading through.
type Config struct {
	Augment     augment.Config
	Normalize   normalize.Config
	Seed        uint64
	BatchSize   uint32
	DatasetHash merkle.Digest
	ConfigHash  merkle.Digest
}

// RunEpoch runs one epoch of the pipeline: for each batch index in
// ascending order it fills a batch (which internally permutes, augments,
// normalizes, and hashes each sample), persists the batch to the audit
// store, accumulates the epoch's batch hashes, computes the epoch hash,
// advances prov, and persists the epoch row.
//
// ctx is honored only between batches — per spec.md §5 the data path
// itself has no suspension points, so cancellation never interrupts a
// single batch's construction. Any FaultFlags observed during the epoch
// is folded into the returned faults and logged via slog.Warn; per
// spec.md §4.6/§7, a nonzero fault set means prov is not advanced for
// this epoch: the audit row is still persisted (with valid=0 and the
// unchanged provenance hash) and err is non-nil.
func RunEpoch(ctx context.Context, cfg Config, dataset *tensor.Dataset, prov *merkle.Provenance, store *audit.Store, runID uuid.UUID, epoch uint32, logger *slog.Logger) (merkle.Digest, fixed.FaultFlags, error) {
	if logger == nil {
		logger = slog.Default()
	}

	numBatches := (dataset.NumSamples + cfg.BatchSize - 1) / cfg.BatchSize
	if dataset.NumSamples == 0 {
		numBatches = 0
	}

	var epochFaults fixed.FaultFlags
	batchHashes := make([]merkle.Digest, 0, numBatches)

	batchCfg := batch.Config{Augment: cfg.Augment, Normalize: cfg.Normalize}

	for bi := uint32(0); bi < numBatches; bi++ {
		if err := ctx.Err(); err != nil {
			return merkle.Digest{}, epochFaults, fmt.Errorf("pipeline: epoch %d cancelled before batch %d: %w", epoch, bi, err)
		}

		var batchFaults fixed.FaultFlags
		b := batch.Fill(batchCfg, dataset, bi, cfg.BatchSize, epoch, cfg.Seed, &batchFaults)
		epochFaults.Merge(batchFaults)

		batchHashes = append(batchHashes, b.Hash)

		logger.Info("batch constructed", "run_id", runID, "epoch", epoch, "batch_index", bi, "effective", b.Effective, "fault_bits", batchFaults.Bits())
		if batchFaults.AnyFault() {
			logger.Warn("batch faulted", "run_id", runID, "epoch", epoch, "batch_index", bi, "fault_bits", batchFaults.Bits())
		}

		if store != nil {
			rec := audit.BatchRecord{
				RunID:       runID.String(),
				DatasetHash: cfg.DatasetHash,
				ConfigHash:  cfg.ConfigHash,
				Seed:        cfg.Seed,
				Epoch:       epoch,
				BatchIndex:  bi,
				BatchHash:   b.Hash,
				FaultBits:   batchFaults.Bits(),
			}
			if err := store.WriteBatch(ctx, rec); err != nil {
				return merkle.Digest{}, epochFaults, fmt.Errorf("pipeline: persisting batch %d of epoch %d: %w", bi, epoch, err)
			}
		}
	}

	epochHash, err := merkle.EpochHash(batchHashes)
	if err != nil {
		epochFaults.SetDomain()
	}

	if !epochFaults.AnyFault() {
		prov.Advance(epochHash)
	}

	logger.Info("epoch complete", "run_id", runID, "epoch", epoch, "epoch_hash", fmt.Sprintf("%x", epochHash), "fault_bits", epochFaults.Bits())
	if epochFaults.AnyFault() {
		logger.Warn("epoch faulted; provenance chain not advanced and this epoch is not certifiable", "run_id", runID, "epoch", epoch, "fault_bits", epochFaults.Bits())
	}

	if store != nil {
		rec := audit.EpochRecord{
			RunID:          runID.String(),
			DatasetHash:    cfg.DatasetHash,
			ConfigHash:     cfg.ConfigHash,
			Seed:           cfg.Seed,
			Epoch:          epoch,
			EpochHash:      epochHash,
			ProvenanceHash: prov.CurrentHash,
			FaultBits:      epochFaults.Bits(),
		}
		if err := store.WriteEpoch(ctx, rec); err != nil {
			return epochHash, epochFaults, fmt.Errorf("pipeline: persisting epoch %d: %w", epoch, err)
		}
	}

	if epochFaults.AnyFault() {
		return epochHash, epochFaults, fmt.Errorf("pipeline: epoch %d completed with faults (bits=%#x)", epoch, epochFaults.Bits())
	}
	return epochHash, epochFaults, nil
}
