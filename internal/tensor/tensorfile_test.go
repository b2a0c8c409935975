package tensor

import (
	"bytes"
	"testing"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorFile_RoundTrip(t *testing.T) {
	s := NewSample([]uint32{2, 2})
	for i := range s.Data {
		s.Data[i] = fixed.Q16(i * 1000)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTensorFile(&buf, s))

	var faults fixed.FaultFlags
	got := ReadTensorFile(&buf, &faults)

	require.False(t, faults.AnyFault())
	assert.Equal(t, s.Version, got.Version)
	assert.Equal(t, s.Dtype, got.Dtype)
	assert.Equal(t, s.NDims, got.NDims)
	assert.Equal(t, s.Dims, got.Dims)
	assert.Equal(t, s.TotalElements, got.TotalElements)
	assert.Equal(t, s.Data, got.Data)
}

func TestTensorFile_BadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXXX" + strings16())
	var faults fixed.FaultFlags
	ReadTensorFile(buf, &faults)
	assert.True(t, faults.FormatError)
}

func TestTensorFile_ShortRead(t *testing.T) {
	buf := bytes.NewBufferString("TE")
	var faults fixed.FaultFlags
	ReadTensorFile(buf, &faults)
	assert.True(t, faults.IOError)
}

func TestTensorFile_NegativeValuesRoundTrip(t *testing.T) {
	s := NewSample([]uint32{3})
	s.Data[0] = fixed.MinValue
	s.Data[1] = -1
	s.Data[2] = fixed.MaxValue

	var buf bytes.Buffer
	require.NoError(t, WriteTensorFile(&buf, s))

	var faults fixed.FaultFlags
	got := ReadTensorFile(&buf, &faults)
	require.False(t, faults.AnyFault())
	assert.Equal(t, s.Data, got.Data)
}

func strings16() string {
	b := make([]byte, 16)
	return string(b)
}
