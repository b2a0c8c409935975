package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/ctpipeline/internal/audit"
	"github.com/roach88/ctpipeline/internal/augment"
	"github.com/roach88/ctpipeline/internal/config"
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/merkle"
	"github.com/roach88/ctpipeline/internal/normalize"
	"github.com/roach88/ctpipeline/internal/pipeline"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	ConfigPath string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for the configured number of epochs",
		Long: `Load a dataset and pipeline configuration, run num_epochs epochs,
writing every batch and epoch commitment to the audit store, and print the
final provenance commitment.

Example:
  ctpipeline run --db ./audit.db --config ./pipeline.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to audit SQLite database (required)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to pipeline YAML config (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	cfg, err := config.LoadPipelineConfig(opts.ConfigPath)
	if err != nil {
		formatter.Error("E_CONFIG", "failed to load config", err.Error())
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	var loadFaults fixed.FaultFlags
	dataset, err := tensor.LoadDataset(cfg.DatasetPath, nil, &loadFaults)
	if err != nil {
		formatter.Error("E_DATASET", "failed to load dataset", err.Error())
		return WrapExitError(ExitCommandError, "loading dataset", err)
	}

	datasetHash, err := merkle.ComputeDatasetHash(dataset.Samples)
	if err != nil {
		formatter.Error("E_DATASET", "failed to hash dataset", err.Error())
		return WrapExitError(ExitCommandError, "hashing dataset", err)
	}
	dataset.DatasetHash = datasetHash

	configHash, err := cfg.ConfigHash()
	if err != nil {
		formatter.Error("E_CONFIG", "failed to hash config", err.Error())
		return WrapExitError(ExitCommandError, "hashing config", err)
	}

	var parseFaults fixed.FaultFlags
	augCfg := augment.Config{
		CropEnabled:       cfg.Augment.CropEnabled,
		CropHeight:        cfg.Augment.CropHeight,
		CropWidth:         cfg.Augment.CropWidth,
		HFlipEnabled:      cfg.Augment.HFlipEnabled,
		VFlipEnabled:      cfg.Augment.VFlipEnabled,
		BrightnessEnabled: cfg.Augment.BrightnessEnabled,
		BrightnessDelta:   cfg.Augment.BrightnessDeltaQ16(&parseFaults),
		NoiseEnabled:      cfg.Augment.NoiseEnabled,
		NoiseAmplitude:    cfg.Augment.NoiseAmplitudeQ16(&parseFaults),
	}
	if parseFaults.AnyFault() {
		formatter.Error("E_CONFIG", "failed to parse augment decimal fields", parseFaults.Bits())
		return NewExitError(ExitCommandError, "parsing augment config")
	}

	normCfg, err := loadNormalizeConfig(cfg.StatsPath)
	if err != nil {
		formatter.Error("E_CONFIG", "failed to load normalization stats", err.Error())
		return WrapExitError(ExitCommandError, "loading stats", err)
	}

	store, err := audit.Open(opts.Database)
	if err != nil {
		formatter.Error("E_DB", "failed to open audit store", err.Error())
		return WrapExitError(ExitCommandError, "opening audit store", err)
	}
	defer store.Close()

	runID := uuid.Must(uuid.NewV7())
	prov := merkle.InitProvenance(datasetHash, configHash, cfg.Seed)

	pipeCfg := pipeline.Config{
		Augment:     augCfg,
		Normalize:   normCfg,
		Seed:        cfg.Seed,
		BatchSize:   cfg.BatchSize,
		DatasetHash: datasetHash,
		ConfigHash:  configHash,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var lastFaults fixed.FaultFlags
	for epoch := uint32(0); epoch < cfg.NumEpochs; epoch++ {
		_, faults, err := pipeline.RunEpoch(ctx, pipeCfg, &dataset, &prov, store, runID, epoch, logger)
		lastFaults.Merge(faults)
		if err != nil {
			formatter.Error("E_EPOCH", "epoch failed", err.Error())
			return WrapExitError(ExitFailure, "running epoch", err)
		}
	}

	result := map[string]any{
		"run_id":           runID.String(),
		"dataset_hash":     hexString(datasetHash),
		"config_hash":      hexString(configHash),
		"provenance_hash":  hexString(prov.CurrentHash),
		"epochs_completed": cfg.NumEpochs,
		"any_fault":        lastFaults.AnyFault(),
	}
	return formatter.SuccessWithRunID(result, runID.String())
}

func loadNormalizeConfig(path string) (normalize.Config, error) {
	if path == "" {
		return normalize.Config{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return normalize.Config{}, err
	}
	defer f.Close()

	var faults fixed.FaultFlags
	stats := tensor.ReadStatsFile(f, &faults)
	if faults.AnyFault() {
		return normalize.Config{}, NewExitError(ExitCommandError, "malformed statistics file")
	}

	cfg := normalize.Config{
		Means:   make([]fixed.Q16, len(stats)),
		InvStds: make([]fixed.Q16, len(stats)),
	}
	for i, c := range stats {
		cfg.Means[i] = c.Mean
		cfg.InvStds[i] = c.InvStd
	}
	return cfg, nil
}

func hexString(d [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range d {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
