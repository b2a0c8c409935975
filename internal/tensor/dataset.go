package tensor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/ctpipeline/internal/fixed"
)

// LoadDatasetBinary reads a dataset from path as a back-to-back sequence
// of tensor-file records (§6's binary format, repeated once per sample,
// no outer framing), mirroring the original source's ct_load_binary. Every
// record must declare the same shape as the first; a shape mismatch is a
// format_error fault and loading stops at that record.
func LoadDatasetBinary(path string, faults *fixed.FaultFlags) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		faults.SetIOError()
		return Dataset{}, fmt.Errorf("tensor: opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var samples []Sample
	var want [MaxDims]uint32
	var wantNDims uint32

	for {
		if _, err := br.Peek(1); err == io.EOF {
			break
		} else if err != nil {
			faults.SetIOError()
			return Dataset{}, fmt.Errorf("tensor: reading record %d of %s: %w", len(samples), path, err)
		}

		// br is passed directly so ReadTensorFile reuses it instead of
		// wrapping it in a second buffer that would read past this record.
		s := ReadTensorFile(br, faults)
		if faults.AnyFault() {
			return Dataset{}, fmt.Errorf("tensor: record %d of %s failed to parse", len(samples), path)
		}

		if len(samples) == 0 {
			want = s.Dims
			wantNDims = s.NDims
		} else if s.NDims != wantNDims || s.Dims != want {
			faults.SetFormatError()
			return Dataset{}, fmt.Errorf("tensor: record %d of %s has shape %v, dataset shape is %v", len(samples), path, s.Dims, want)
		}
		samples = append(samples, s)
	}

	return NewDataset(samples), nil
}

// LoadDatasetCSV reads a dataset from path as the decimal CSV format of
// §6: one sample per row, dims giving the fixed shape every row's decoded
// row must match in element count, mirroring the original source's
// ct_load_csv. An empty field between commas, or a row whose decoded
// length disagrees with the product of dims, is a format_error fault and
// loading stops at that row.
func LoadDatasetCSV(path string, dims []uint32) (Dataset, fixed.FaultFlags) {
	var faults fixed.FaultFlags

	f, err := os.Open(path)
	if err != nil {
		faults.SetIOError()
		return Dataset{}, faults
	}
	defer f.Close()

	total := uint32(1)
	for _, d := range dims {
		total *= d
	}

	var samples []Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		values := ParseCSVRow(line, &faults)
		if faults.AnyFault() {
			return Dataset{}, faults
		}
		if uint32(len(values)) != total {
			faults.SetFormatError()
			return Dataset{}, faults
		}

		s := NewSample(dims)
		copy(s.Data, values)
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		faults.SetIOError()
		return Dataset{}, faults
	}

	return NewDataset(samples), faults
}

// LoadDataset dispatches to LoadDatasetCSV or LoadDatasetBinary by path's
// extension (".csv" vs anything else, defaulting to the binary format),
// matching the CLI's single dataset_path configuration field. dims is
// required only for the CSV path, which carries no shape header.
func LoadDataset(path string, dims []uint32, faults *fixed.FaultFlags) (Dataset, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		ds, f := LoadDatasetCSV(path, dims)
		faults.Merge(f)
		if f.AnyFault() {
			return Dataset{}, fmt.Errorf("tensor: loading CSV dataset %s: faults=%#x", path, f.Bits())
		}
		return ds, nil
	}
	return LoadDatasetBinary(path, faults)
}
