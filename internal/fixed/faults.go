package fixed

// FaultFlags is an append-only bitset of sticky faults threaded by explicit
// reference through every fallible primitive in the data path. A flag,
// once set, is never cleared implicitly — only the caller may Reset it,
// typically at a sample/batch/epoch boundary after the fault set has been
// observed and acted on.
//
// Any fault set during construction of a committed artifact (batch, epoch)
// invalidates that commitment: the caller must refuse to advance the
// provenance chain for an epoch whose FaultFlags has AnyFault() true.
type FaultFlags struct {
	Overflow     bool
	Underflow    bool
	DivZero      bool
	Domain       bool
	Precision    bool
	IOError      bool
	FormatError  bool
	HashMismatch bool
}

func (f *FaultFlags) SetOverflow()     { f.Overflow = true }
func (f *FaultFlags) SetUnderflow()    { f.Underflow = true }
func (f *FaultFlags) SetDivZero()      { f.DivZero = true }
func (f *FaultFlags) SetDomain()       { f.Domain = true }
func (f *FaultFlags) SetPrecision()    { f.Precision = true }
func (f *FaultFlags) SetIOError()      { f.IOError = true }
func (f *FaultFlags) SetFormatError()  { f.FormatError = true }
func (f *FaultFlags) SetHashMismatch() { f.HashMismatch = true }

// AnyFault reports whether any sticky bit is set.
func (f *FaultFlags) AnyFault() bool {
	return f.Overflow || f.Underflow || f.DivZero || f.Domain ||
		f.Precision || f.IOError || f.FormatError || f.HashMismatch
}

// Reset clears every sticky bit. Callers invoke this explicitly between
// independent units of work (e.g. at the start of a new epoch); the core
// itself never calls it.
func (f *FaultFlags) Reset() {
	*f = FaultFlags{}
}

// Merge ORs every bit of other into f, leaving other unchanged. Used to
// fold a sample-scoped FaultFlags into the batch-scoped accumulator.
func (f *FaultFlags) Merge(other FaultFlags) {
	f.Overflow = f.Overflow || other.Overflow
	f.Underflow = f.Underflow || other.Underflow
	f.DivZero = f.DivZero || other.DivZero
	f.Domain = f.Domain || other.Domain
	f.Precision = f.Precision || other.Precision
	f.IOError = f.IOError || other.IOError
	f.FormatError = f.FormatError || other.FormatError
	f.HashMismatch = f.HashMismatch || other.HashMismatch
}

// Bits packs the eight sticky flags into the low 8 bits of a uint16 for
// compact storage in the audit log (internal/audit). Bit order is the
// declaration order above, LSB first.
func (f FaultFlags) Bits() uint16 {
	var b uint16
	if f.Overflow {
		b |= 1 << 0
	}
	if f.Underflow {
		b |= 1 << 1
	}
	if f.DivZero {
		b |= 1 << 2
	}
	if f.Domain {
		b |= 1 << 3
	}
	if f.Precision {
		b |= 1 << 4
	}
	if f.IOError {
		b |= 1 << 5
	}
	if f.FormatError {
		b |= 1 << 6
	}
	if f.HashMismatch {
		b |= 1 << 7
	}
	return b
}

// FaultsFromBits unpacks a value produced by Bits back into a FaultFlags.
func FaultsFromBits(b uint16) FaultFlags {
	return FaultFlags{
		Overflow:     b&(1<<0) != 0,
		Underflow:    b&(1<<1) != 0,
		DivZero:      b&(1<<2) != 0,
		Domain:       b&(1<<3) != 0,
		Precision:    b&(1<<4) != 0,
		IOError:      b&(1<<5) != 0,
		FormatError:  b&(1<<6) != 0,
		HashMismatch: b&(1<<7) != 0,
	}
}
