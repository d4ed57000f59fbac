// Package bitfield extracts and inserts fixed-position fields in 64-bit
// register values.
package bitfield

import "fmt"

// Field is a run of Width bits starting at bit Shift.
type Field struct {
	Shift uint8
	Width uint8
}

// Bits returns the field spanning bits hi down to lo inclusive, the
// notation hardware manuals use.
func Bits(hi, lo uint8) Field {
	if hi < lo || hi > 63 {
		panic(fmt.Sprintf("bitfield: invalid range %d:%d", hi, lo))
	}
	return Field{Shift: lo, Width: hi - lo + 1}
}

// Bit returns the single-bit field at position n.
func Bit(n uint8) Field { return Bits(n, n) }

// Max is the largest value the field can hold.
func (f Field) Max() uint64 {
	if f.Width >= 64 {
		return ^uint64(0)
	}
	return 1<<f.Width - 1
}

// Mask is the field's bits in register position.
func (f Field) Mask() uint64 { return f.Max() << f.Shift }

func (f Field) Get(reg uint64) uint64 { return (reg >> f.Shift) & f.Max() }

// Set returns reg with the field replaced by val. Bits of val above the
// field width are dropped.
func (f Field) Set(reg, val uint64) uint64 {
	return reg&^f.Mask() | (val&f.Max())<<f.Shift
}

// Fits reports whether val can be stored without truncation.
func (f Field) Fits(val uint64) bool { return val <= f.Max() }

func (f Field) Bool(reg uint64) bool { return reg&f.Mask() != 0 }

func (f Field) SetBool(reg uint64, on bool) uint64 {
	if on {
		return reg | f.Mask()
	}
	return reg &^ f.Mask()
}
