package bitfield

import "testing"

func TestFieldGetSet(t *testing.T) {
	for _, tt := range []struct {
		name  string
		field Field
		reg   uint64
		get   uint64
		set   uint64
		after uint64
	}{
		{"high word", Bits(63, 32), 0x1234_5678_9abc_def0, 0x1234_5678, 0xffff_ffff, 0xffff_ffff_9abc_def0},
		{"middle", Bits(12, 8), 0x0000_1f00, 0x1f, 0x02, 0x0000_0200},
		{"low byte", Bits(7, 0), 0xa201, 0x01, 0x34, 0xa234},
		{"truncates", Bits(13, 9), 0, 0, 0x3f, 0x1f << 9},
		{"whole register", Bits(63, 0), 0xdead, 0xdead, 1, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.field.Get(tt.reg); got != tt.get {
				t.Fatalf("Get = %#x, want %#x", got, tt.get)
			}
			if got := tt.field.Set(tt.reg, tt.set); got != tt.after {
				t.Fatalf("Set = %#x, want %#x", got, tt.after)
			}
		})
	}
}

func TestBit(t *testing.T) {
	f := Bit(14)
	if f.Mask() != 1<<14 {
		t.Fatalf("mask = %#x", f.Mask())
	}
	reg := f.SetBool(0xff, true)
	if !f.Bool(reg) || reg != 0x40ff {
		t.Fatalf("SetBool(true) = %#x", reg)
	}
	if reg = f.SetBool(reg, false); reg != 0xff {
		t.Fatalf("SetBool(false) = %#x", reg)
	}
}

func TestFits(t *testing.T) {
	f := Bits(13, 9)
	if !f.Fits(31) || f.Fits(32) {
		t.Fatalf("5-bit field bounds wrong")
	}
}

func TestBitsPanicsOnInvertedRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Bits(3, 7)
}
