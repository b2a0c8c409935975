package tensor

import (
	"math/big"
	"strings"

	"github.com/roach88/ctpipeline/internal/fixed"
)

// ParseCSVRow parses one ASCII comma-separated row of decimal fields into
// a slice of Q16.16 values (spec.md §6). Parsing is locale-independent and
// integer-only throughout: no float is ever materialized, even as an
// intermediate.
//
// Each field is trimmed of edge whitespace, then must match
// `-?[0-9]*(\.[0-9]*)?` with at least one digit somewhere. An empty field
// between commas is a format_error fault. Scientific notation, locale
// digits, and currency symbols are rejected as format_error.
func ParseCSVRow(row string, faults *fixed.FaultFlags) []fixed.Q16 {
	fields := strings.Split(row, ",")
	out := make([]fixed.Q16, len(fields))
	for i, f := range fields {
		out[i] = ParseDecimalField(f, faults)
	}
	return out
}

var (
	bigTen    = big.NewInt(10)
	bigOne6   = big.NewInt(1 << 16)
	bigTwo    = big.NewInt(2)
)

// ParseDecimalField parses a single trimmed decimal field into Q16.16.
//
// Algorithm (spec.md §6): accumulate the integer part, accumulate up to 16
// fractional digits, form the exact rational
// (int_part * 10^k + frac_part) / 10^k, multiply the numerator by 65536,
// integer-divide by 10^k using round-to-nearest-even at an exact tie,
// apply the sign, then clamp to [MIN, MAX] with overflow/underflow faults.
func ParseDecimalField(field string, faults *fixed.FaultFlags) fixed.Q16 {
	s := strings.TrimSpace(field)
	if s == "" {
		faults.SetFormatError()
		return 0
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}
	if s == "" {
		faults.SetFormatError()
		return 0
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			faults.SetFormatError()
			return 0
		}
	}

	if intPart == "" && fracPart == "" {
		faults.SetFormatError()
		return 0
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		faults.SetFormatError()
		return 0
	}

	const maxFracDigits = 16
	if len(fracPart) > maxFracDigits {
		fracPart = fracPart[:maxFracDigits]
	}
	k := len(fracPart)

	numerator := new(big.Int)
	if intPart != "" {
		numerator.SetString(intPart, 10)
	}
	scale := new(big.Int).Exp(bigTen, big.NewInt(int64(k)), nil)
	numerator.Mul(numerator, scale)
	if fracPart != "" {
		fracVal := new(big.Int)
		fracVal.SetString(fracPart, 10)
		numerator.Add(numerator, fracVal)
	}

	// numerator is now the exact value * 10^k; scale to Q16.16: *65536 / 10^k,
	// rounding the quotient to nearest, ties to even.
	numerator.Mul(numerator, bigOne6)

	quot, rem := new(big.Int), new(big.Int)
	quot.QuoRem(numerator, scale, rem)

	if rem.Sign() != 0 {
		twiceRem := new(big.Int).Mul(rem, bigTwo)
		twiceRem.Abs(twiceRem)
		cmp := twiceRem.Cmp(scale)
		switch {
		case cmp > 0:
			quot.Add(quot, big.NewInt(1))
		case cmp == 0:
			if quot.Bit(0) == 1 {
				quot.Add(quot, big.NewInt(1))
			}
		}
	}

	if negative {
		quot.Neg(quot)
	}

	if !quot.IsInt64() {
		if quot.Sign() > 0 {
			faults.SetOverflow()
			return fixed.MaxValue
		}
		faults.SetUnderflow()
		return fixed.MinValue
	}

	return fixed.Clamp32(quot.Int64(), faults)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
