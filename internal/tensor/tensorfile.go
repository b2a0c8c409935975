package tensor

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/roach88/ctpipeline/internal/fixed"
)

// tensMagic is the 4-byte magic for the binary tensor file format
// (spec.md §6): "TENS".
var tensMagic = [4]byte{'T', 'E', 'N', 'S'}

const tensVersion uint8 = 1

// WriteTensorFile serializes a Sample to w in the wire format:
//
//	magic(4) version(1) dtype(1) ndims(1) pad(1) dims[0..4] LE-u32 data LE-i32...
func WriteTensorFile(w io.Writer, s Sample) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(tensMagic[:]); err != nil {
		return err
	}
	header := []byte{tensVersion, byte(s.Dtype), byte(s.NDims), 0}
	if _, err := bw.Write(header); err != nil {
		return err
	}

	var dimBuf [MaxDims * 4]byte
	for i := 0; i < MaxDims; i++ {
		binary.LittleEndian.PutUint32(dimBuf[i*4:i*4+4], s.Dims[i])
	}
	if _, err := bw.Write(dimBuf[:]); err != nil {
		return err
	}

	elemBuf := make([]byte, 4)
	for _, v := range s.Data {
		binary.LittleEndian.PutUint32(elemBuf, uint32(int32(v)))
		if _, err := bw.Write(elemBuf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadTensorFile parses a binary tensor file from r. Any mismatch against
// the expected magic, an unsupported version/dtype, or an ndims/dims
// product that disagrees with the declared element count is a
// format_error fault (spec.md §6, §7); a short read is an io_error fault.
// On either fault the returned Sample is the zero value.
func ReadTensorFile(r io.Reader, faults *fixed.FaultFlags) Sample {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		faults.SetIOError()
		return Sample{}
	}
	if magic != tensMagic {
		faults.SetFormatError()
		return Sample{}
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(br, header); err != nil {
		faults.SetIOError()
		return Sample{}
	}
	version, dtype, ndims := header[0], header[1], header[2]
	if version != tensVersion || dtype != byte(DtypeQ16) {
		faults.SetFormatError()
		return Sample{}
	}
	if ndims > MaxDims {
		faults.SetFormatError()
		return Sample{}
	}

	dimBuf := make([]byte, MaxDims*4)
	if _, err := io.ReadFull(br, dimBuf); err != nil {
		faults.SetIOError()
		return Sample{}
	}

	var s Sample
	s.Version = uint32(version)
	s.Dtype = uint32(dtype)
	s.NDims = uint32(ndims)
	total := uint32(1)
	for i := 0; i < MaxDims; i++ {
		d := binary.LittleEndian.Uint32(dimBuf[i*4 : i*4+4])
		s.Dims[i] = d
		if uint32(i) < s.NDims {
			total *= d
		}
	}
	s.TotalElements = total

	s.Data = make([]fixed.Q16, total)
	elemBuf := make([]byte, 4)
	for i := uint32(0); i < total; i++ {
		if _, err := io.ReadFull(br, elemBuf); err != nil {
			faults.SetIOError()
			return Sample{}
		}
		s.Data[i] = fixed.Q16(int32(binary.LittleEndian.Uint32(elemBuf)))
	}

	if !s.Validate(faults) {
		return Sample{}
	}
	return s
}
