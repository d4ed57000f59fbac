package regs

import (
	"errors"
	"fmt"

	"github.com/tinyrange/hpet/internal/bitfield"
)

// MaxCounterClockPeriod is the slowest tick the hardware may report:
// 10^8 femtoseconds, or 100ns.
const MaxCounterClockPeriod = 100_000_000

var (
	ErrZeroClockPeriod    = errors.New("main counter tick period is zero")
	ErrClockPeriodTooLong = errors.New("main counter tick period exceeds 100ns")
	ErrZeroRevision       = errors.New("revision ID is zero")
)

var (
	capCounterClockPeriod = bitfield.Bits(63, 32) // COUNTER_CLK_PERIOD
	capVendorID           = bitfield.Bits(31, 16) // VENDOR_ID
	capLegacyRoute        = bitfield.Bit(15)      // LEG_RT_CAP
	capCounterSize        = bitfield.Bit(13)      // COUNT_SIZE_CAP
	capNumTimers          = bitfield.Bits(12, 8)  // NUM_TIM_CAP
	capRevisionID         = bitfield.Bits(7, 0)   // REV_ID
)

// Capabilities is the General Capabilities and ID register. It is read-only.
type Capabilities uint64

// CounterClockPeriod is the main counter tick period in femtoseconds.
func (c Capabilities) CounterClockPeriod() uint32 {
	return uint32(capCounterClockPeriod.Get(uint64(c)))
}

// VendorID is what the device would report as a PCI function.
func (c Capabilities) VendorID() uint16 { return uint16(capVendorID.Get(uint64(c))) }

// LegacyReplacementCapable reports support for the LegacyReplacement
// interrupt route.
func (c Capabilities) LegacyReplacementCapable() bool { return capLegacyRoute.Bool(uint64(c)) }

// CounterSize64 reports a 64-bit main counter. A 64-bit counter may still be
// operated in 32-bit mode.
func (c Capabilities) CounterSize64() bool { return capCounterSize.Bool(uint64(c)) }

// NumTimersMinusOne is the raw NUM_TIM_CAP field: the index of the last
// timer.
func (c Capabilities) NumTimersMinusOne() uint8 { return uint8(capNumTimers.Get(uint64(c))) }

// NumTimers is the number of populated timer blocks, always in [1, 32].
func (c Capabilities) NumTimers() int { return int(c.NumTimersMinusOne()) + 1 }

func (c Capabilities) RevisionID() uint8 { return uint8(capRevisionID.Get(uint64(c))) }

// Validate rejects values no conforming HPET reports.
func (c Capabilities) Validate() error {
	switch period := c.CounterClockPeriod(); {
	case period == 0:
		return ErrZeroClockPeriod
	case period > MaxCounterClockPeriod:
		return fmt.Errorf("%w: %dfs", ErrClockPeriodTooLong, period)
	}
	if c.RevisionID() == 0 {
		return ErrZeroRevision
	}
	return nil
}

func (c Capabilities) String() string {
	return fmt.Sprintf("period=%dfs vendor=%#04x rev=%#02x timers=%d counter64=%t legacy=%t",
		c.CounterClockPeriod(), c.VendorID(), c.RevisionID(), c.NumTimers(),
		c.CounterSize64(), c.LegacyReplacementCapable())
}

// CapabilitiesFields is the decoded form of a Capabilities register.
type CapabilitiesFields struct {
	CounterClockPeriod       uint32
	VendorID                 uint16
	LegacyReplacementCapable bool
	CounterSize64            bool
	NumTimersMinusOne        uint8
	RevisionID               uint8
}

func (c Capabilities) Fields() CapabilitiesFields {
	return CapabilitiesFields{
		CounterClockPeriod:       c.CounterClockPeriod(),
		VendorID:                 c.VendorID(),
		LegacyReplacementCapable: c.LegacyReplacementCapable(),
		CounterSize64:            c.CounterSize64(),
		NumTimersMinusOne:        c.NumTimersMinusOne(),
		RevisionID:               c.RevisionID(),
	}
}

// MakeCapabilities encodes f. NumTimersMinusOne is truncated to its 5-bit
// field; reserved bit 14 is always zero.
func MakeCapabilities(f CapabilitiesFields) Capabilities {
	var v uint64
	v = capCounterClockPeriod.Set(v, uint64(f.CounterClockPeriod))
	v = capVendorID.Set(v, uint64(f.VendorID))
	v = capLegacyRoute.SetBool(v, f.LegacyReplacementCapable)
	v = capCounterSize.SetBool(v, f.CounterSize64)
	v = capNumTimers.Set(v, uint64(f.NumTimersMinusOne))
	v = capRevisionID.Set(v, uint64(f.RevisionID))
	return Capabilities(v)
}
