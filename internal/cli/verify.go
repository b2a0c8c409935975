package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ctpipeline/internal/audit"
	"github.com/roach88/ctpipeline/internal/merkle"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	RunID    string
	Epoch    int32
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts, Epoch: -1}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a stored provenance chain and check its continuity",
		Long: `Replay the audit store's recorded provenance chain for a run and confirm
that epoch numbers increase by exactly one from row to row, that each
row's provenance_hash differs from the previous row's, and that no epoch
row is marked invalid (a fault was observed while it was constructed).
Whether a row's provenance_hash was derived from the previous one is not
checked.

This is a plumbing command, not a second implementation of the core: it
never recomputes a hash, only checks that the stored chain is internally
consistent.

Example:
  ctpipeline verify --db ./audit.db
  ctpipeline verify --db ./audit.db --run-id <uuid> --epoch 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyChain(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to audit SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run to verify (defaults to the most recently written run)")
	cmd.Flags().Int32Var(&opts.Epoch, "epoch", -1, "verify only up through this epoch (defaults to the whole chain)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func verifyChain(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	store, err := audit.Open(opts.Database)
	if err != nil {
		formatter.Error("E_DB", "failed to open audit store", err.Error())
		return WrapExitError(ExitCommandError, "opening audit store", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	runID := opts.RunID
	if runID == "" {
		runID, err = store.LatestRunID(ctx)
		if err != nil {
			formatter.Error("E_DB", "no runs found in audit store", err.Error())
			return WrapExitError(ExitCommandError, "finding latest run", err)
		}
	}

	chain, err := store.ReadProvenanceChain(ctx, runID)
	if err != nil {
		formatter.Error("E_DB", "failed to read provenance chain", err.Error())
		return WrapExitError(ExitCommandError, "reading provenance chain", err)
	}
	if len(chain) == 0 {
		formatter.Error("E_NOT_FOUND", fmt.Sprintf("no epochs recorded for run %s", runID), nil)
		return NewExitError(ExitCommandError, "no epochs recorded")
	}

	var problems []string
	prevHash := merkle.Digest{}
	haveInit := false

	for i, rec := range chain {
		if opts.Epoch >= 0 && int32(rec.Epoch) > opts.Epoch {
			break
		}
		if !rec.Valid {
			problems = append(problems, fmt.Sprintf("epoch %d: marked invalid (fault_bits=%#x)", rec.Epoch, rec.FaultBits))
		}
		if haveInit {
			// The stored current_hash already bakes in this epoch's
			// contribution; continuity here means each successive row's
			// provenance_hash differs from the last (the chain actually
			// advanced) and epoch numbers are strictly increasing by one.
			if i > 0 && rec.Epoch != chain[i-1].Epoch+1 {
				problems = append(problems, fmt.Sprintf("epoch %d: not contiguous with preceding epoch %d", rec.Epoch, chain[i-1].Epoch))
			}
			if rec.ProvenanceHash == prevHash {
				problems = append(problems, fmt.Sprintf("epoch %d: provenance_hash did not advance from the previous epoch", rec.Epoch))
			}
		}
		prevHash = rec.ProvenanceHash
		haveInit = true
	}

	result := map[string]any{
		"run_id":       runID,
		"epochs_found": len(chain),
		"ok":           len(problems) == 0,
		"problems":     problems,
	}

	if len(problems) > 0 {
		formatter.Error("E_VERIFY", "provenance chain verification failed", problems)
		return NewExitError(ExitFailure, "provenance chain verification failed")
	}
	return formatter.Success(result)
}
