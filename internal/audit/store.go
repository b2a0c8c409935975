// Package audit provides a durable, replayable log of every batch and
// epoch commitment a pipeline run produces, so a certification auditor can
// inspect or verify a run after the process exits (SPEC_FULL.md §4.11).
// It is a SQLite-backed single-writer store adapted from the sync engine's
// event-log store: same WAL-mode pragmas, same ON CONFLICT DO NOTHING
// idempotency discipline for replay safety.
package audit

import (
	"context"
	_ "embed"
	"fmt"

	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is a durable audit log for pipeline runs.
type Store struct {
	db  *sql.DB
	seq int64
}

// Open creates or opens a SQLite database at path, applies WAL-mode
// pragmas, and ensures the schema exists. Idempotent: safe to call
// multiple times against the same file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}

	s := &Store{db: db}
	if err := db.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) FROM (SELECT seq FROM batches UNION ALL SELECT seq FROM epochs)
	`).Scan(&s.seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: read sequence counter: %w", err)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("audit: apply pragma %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct read queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// nextSeq returns the next value of the store's monotonic sequence
// counter, which Open starts from the highest seq already in the database.
// Ordering is recorded via this explicit counter rather than wall-clock
// time (SPEC_FULL.md §3's AuditRecord note).
func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// BatchRecord is one persisted row of the batches table.
type BatchRecord struct {
	RunID       string
	DatasetHash [32]byte
	ConfigHash  [32]byte
	Seed        uint64
	Epoch       uint32
	BatchIndex  uint32
	BatchHash   [32]byte
	FaultBits   uint16
}

// WriteBatch persists rec. Replaying the same (run_id, epoch, batch_index)
// is a no-op, matching the store's idempotent replay contract.
func (s *Store) WriteBatch(ctx context.Context, rec BatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches
		(run_id, dataset_hash, config_hash, seed, epoch, batch_index, batch_hash, fault_bits, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch, batch_index) DO NOTHING
	`,
		rec.RunID, rec.DatasetHash[:], rec.ConfigHash[:], rec.Seed,
		rec.Epoch, rec.BatchIndex, rec.BatchHash[:], rec.FaultBits, s.nextSeq(),
	)
	if err != nil {
		return fmt.Errorf("audit: write batch: %w", err)
	}
	return nil
}

// EpochRecord is one persisted row of the epochs table.
type EpochRecord struct {
	RunID          string
	DatasetHash    [32]byte
	ConfigHash     [32]byte
	Seed           uint64
	Epoch          uint32
	EpochHash      [32]byte
	ProvenanceHash [32]byte
	FaultBits      uint16
	Valid          bool
}

// WriteEpoch persists rec. Per spec.md §4.6/§7, any nonzero FaultBits
// marks the row invalid rather than deleting it — the provenance chain
// and its audit trail are append-only.
func (s *Store) WriteEpoch(ctx context.Context, rec EpochRecord) error {
	valid := 1
	if rec.FaultBits != 0 {
		valid = 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epochs
		(run_id, dataset_hash, config_hash, seed, epoch, epoch_hash, provenance_hash, fault_bits, valid, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch) DO NOTHING
	`,
		rec.RunID, rec.DatasetHash[:], rec.ConfigHash[:], rec.Seed,
		rec.Epoch, rec.EpochHash[:], rec.ProvenanceHash[:], rec.FaultBits, valid, s.nextSeq(),
	)
	if err != nil {
		return fmt.Errorf("audit: write epoch: %w", err)
	}
	return nil
}

// LatestRunID returns the run_id of the most recently written epoch row,
// for CLI commands that default to "the last run" when no run_id is
// given explicitly.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM epochs ORDER BY seq DESC LIMIT 1
	`).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("audit: reading latest run_id: %w", err)
	}
	return runID, nil
}

// ReadProvenanceChain reconstructs the ordered epoch history for runID,
// for offline verification.
func (s *Store) ReadProvenanceChain(ctx context.Context, runID string) ([]EpochRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_hash, config_hash, seed, epoch, epoch_hash, provenance_hash, fault_bits, valid
		FROM epochs
		WHERE run_id = ?
		ORDER BY epoch ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("audit: read provenance chain: %w", err)
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var rec EpochRecord
		var dsHash, cfgHash, epochHash, provHash []byte
		var valid int
		if err := rows.Scan(&dsHash, &cfgHash, &rec.Seed, &rec.Epoch, &epochHash, &provHash, &rec.FaultBits, &valid); err != nil {
			return nil, fmt.Errorf("audit: scan epoch row: %w", err)
		}
		rec.RunID = runID
		rec.Valid = valid != 0
		copy(rec.DatasetHash[:], dsHash)
		copy(rec.ConfigHash[:], cfgHash)
		copy(rec.EpochHash[:], epochHash)
		copy(rec.ProvenanceHash[:], provHash)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate epoch rows: %w", err)
	}
	return out, nil
}
