package tensor

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/roach88/ctpipeline/internal/fixed"
)

// statMagic is the 4-byte magic for the binary statistics file format
// (spec.md §6): "STAT".
var statMagic = [4]byte{'S', 'T', 'A', 'T'}

const statVersion uint8 = 1

// ChannelStats is a single (mean, inv_std) pair as read from a statistics
// file, both in Q16.16.
type ChannelStats struct {
	Mean     fixed.Q16
	InvStd   fixed.Q16
}

// WriteStatsFile serializes per-channel statistics in the wire format:
//
//	magic(4) version(1) num_channels(1) pad(2) (mean(4) inv_std(4))...
func WriteStatsFile(w io.Writer, stats []ChannelStats) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(statMagic[:]); err != nil {
		return err
	}
	header := []byte{statVersion, byte(len(stats)), 0, 0}
	if _, err := bw.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 8)
	for _, c := range stats {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(c.Mean)))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(c.InvStd)))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadStatsFile parses a binary statistics file. Magic/version mismatches
// and short reads are format_error/io_error faults respectively, matching
// ReadTensorFile's discipline.
func ReadStatsFile(r io.Reader, faults *fixed.FaultFlags) []ChannelStats {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		faults.SetIOError()
		return nil
	}
	if magic != statMagic {
		faults.SetFormatError()
		return nil
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(br, header); err != nil {
		faults.SetIOError()
		return nil
	}
	version, numChannels := header[0], header[1]
	if version != statVersion {
		faults.SetFormatError()
		return nil
	}

	stats := make([]ChannelStats, numChannels)
	buf := make([]byte, 8)
	for i := range stats {
		if _, err := io.ReadFull(br, buf); err != nil {
			faults.SetIOError()
			return nil
		}
		stats[i] = ChannelStats{
			Mean:   fixed.Q16(int32(binary.LittleEndian.Uint32(buf[0:4]))),
			InvStd: fixed.Q16(int32(binary.LittleEndian.Uint32(buf[4:8]))),
		}
	}

	return stats
}
