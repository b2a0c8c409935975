package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/tensor"
)

// DatasetConvertOptions holds flags for the dataset convert command.
type DatasetConvertOptions struct {
	*RootOptions
	CSVPath string
	OutPath string
	DimsCSV string
}

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Dataset format conversion utilities",
	}
	cmd.AddCommand(newDatasetConvertCommand(rootOpts))
	return cmd
}

func newDatasetConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DatasetConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a single CSV row into a binary tensor file",
		Long: `Parse a single decimal CSV row (spec.md §6's ASCII decimal CSV format) into
a Sample of the given shape and write it out as a binary tensor file
(spec.md §6's "TENS" format).

Example:
  ctpipeline dataset convert --csv in.csv --dims 3,32,32 --out sample.tens`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertDataset(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CSVPath, "csv", "", "path to input CSV file (one row) (required)")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "path to output .tens file (required)")
	cmd.Flags().StringVar(&opts.DimsCSV, "dims", "", "comma-separated sample dimensions, e.g. 3,32,32 (required)")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("dims")

	return cmd
}

func convertDataset(opts *DatasetConvertOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	dims, err := parseDims(opts.DimsCSV)
	if err != nil {
		formatter.Error("E_ARGS", "invalid --dims", err.Error())
		return WrapExitError(ExitCommandError, "parsing --dims", err)
	}

	raw, err := os.ReadFile(opts.CSVPath)
	if err != nil {
		formatter.Error("E_IO", "failed to read CSV input", err.Error())
		return WrapExitError(ExitCommandError, "reading CSV", err)
	}
	line := strings.TrimRight(strings.SplitN(string(raw), "\n", 2)[0], "\r")

	var faults fixed.FaultFlags
	values := tensor.ParseCSVRow(line, &faults)
	if faults.AnyFault() {
		formatter.Error("E_FORMAT", "CSV row failed to parse", faults.Bits())
		return NewExitError(ExitCommandError, "malformed CSV row")
	}

	total := uint32(1)
	for _, d := range dims {
		total *= d
	}
	if uint32(len(values)) != total {
		err := fmt.Errorf("row has %d fields, shape %v expects %d", len(values), dims, total)
		formatter.Error("E_FORMAT", "CSV row does not match --dims", err.Error())
		return WrapExitError(ExitCommandError, "shape mismatch", err)
	}

	sample := tensor.NewSample(dims)
	copy(sample.Data, values)

	out, err := os.Create(opts.OutPath)
	if err != nil {
		formatter.Error("E_IO", "failed to create output file", err.Error())
		return WrapExitError(ExitCommandError, "creating output", err)
	}
	defer out.Close()

	if err := tensor.WriteTensorFile(out, sample); err != nil {
		formatter.Error("E_IO", "failed to write tensor file", err.Error())
		return WrapExitError(ExitCommandError, "writing tensor file", err)
	}

	return formatter.Success(map[string]any{
		"out":            opts.OutPath,
		"dims":           dims,
		"total_elements": sample.TotalElements,
	})
}

func parseDims(csv string) ([]uint32, error) {
	parts := strings.Split(csv, ",")
	dims := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid dimension %q: %w", p, err)
		}
		dims = append(dims, uint32(v))
	}
	if len(dims) == 0 || len(dims) > int(tensor.MaxDims) {
		return nil, fmt.Errorf("dims must have between 1 and %d entries, got %d", tensor.MaxDims, len(dims))
	}
	return dims, nil
}
