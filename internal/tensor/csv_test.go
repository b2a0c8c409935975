package tensor

import (
	"testing"

	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/stretchr/testify/assert"
)

func TestParseDecimalField_Integer(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("42", &faults)
	assert.Equal(t, fixed.Q16(42*65536), got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_Fraction(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("0.5", &faults)
	assert.Equal(t, fixed.Half, got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_Negative(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("-1.5", &faults)
	assert.Equal(t, fixed.Q16(-98304), got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_TrimsWhitespace(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("  3.25  ", &faults)
	assert.Equal(t, fixed.Q16(3*65536+16384), got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_LeadingDot(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField(".25", &faults)
	assert.Equal(t, fixed.Q16(16384), got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_TrailingDot(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("5.", &faults)
	assert.Equal(t, fixed.Q16(5*65536), got)
	assert.False(t, faults.AnyFault())
}

func TestParseDecimalField_Empty(t *testing.T) {
	var faults fixed.FaultFlags
	ParseDecimalField("", &faults)
	assert.True(t, faults.FormatError)
}

func TestParseDecimalField_JustSign(t *testing.T) {
	var faults fixed.FaultFlags
	ParseDecimalField("-", &faults)
	assert.True(t, faults.FormatError)
}

func TestParseDecimalField_DoubleDot(t *testing.T) {
	var faults fixed.FaultFlags
	ParseDecimalField("1.2.3", &faults)
	assert.True(t, faults.FormatError)
}

func TestParseDecimalField_ScientificNotationRejected(t *testing.T) {
	var faults fixed.FaultFlags
	ParseDecimalField("1e10", &faults)
	assert.True(t, faults.FormatError)
}

func TestParseDecimalField_OverflowClamps(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("999999999", &faults)
	assert.Equal(t, fixed.MaxValue, got)
	assert.True(t, faults.Overflow)
}

func TestParseDecimalField_UnderflowClamps(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseDecimalField("-999999999", &faults)
	assert.Equal(t, fixed.MinValue, got)
	assert.True(t, faults.Underflow)
}

func TestParseDecimalField_ManyFractionalDigitsTruncatedAt16(t *testing.T) {
	var faults fixed.FaultFlags
	// 17 fractional digits; the 17th must be ignored, not rejected.
	got := ParseDecimalField("0.00000000000000015", &faults)
	assert.False(t, faults.FormatError)
	_ = got
}

func TestParseDecimalField_RoundsNearestNotTruncating(t *testing.T) {
	var faults fixed.FaultFlags
	// 0.9999999999999999 rounds up to 1.0, it does not truncate to 0.
	got := ParseDecimalField("0.9999999999999999", &faults)
	assert.Equal(t, fixed.One, got)
	assert.False(t, faults.AnyFault())
}

func TestParseCSVRow_Basic(t *testing.T) {
	var faults fixed.FaultFlags
	got := ParseCSVRow("1,2.5,-3", &faults)
	assert.Equal(t, []fixed.Q16{65536, 163840, -196608}, got)
	assert.False(t, faults.AnyFault())
}

func TestParseCSVRow_EmptyFieldIsFormatFault(t *testing.T) {
	var faults fixed.FaultFlags
	ParseCSVRow("1,,3", &faults)
	assert.True(t, faults.FormatError)
}
