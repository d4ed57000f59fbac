// Package hpet is a typed accessor for the memory-mapped registers of a High
// Precision Event Timer.
//
// Get started by obtaining a Controller with New, passing the address of
// the register block after mapping BlockSize bytes of it as uncacheable
// memory. Locating the block (usually through the ACPI HPET table) and
// mapping it are left to the caller.
//
// A Controller is not safe for concurrent use. It represents the one
// physical device: keep a single Controller per device and serialize its
// use. Timer views borrow the Controller; a TimerMut must be the only view
// in use while it is being used.
package hpet

import (
	"fmt"
	"iter"
	"math"
	"math/bits"
	"time"
	"unsafe"

	"github.com/tinyrange/hpet/internal/mmio"
	"github.com/tinyrange/hpet/regs"
)

// BlockSize is the number of bytes the caller must map.
const BlockSize = regs.BlockSize

// Region is a window of device registers addressed by byte offset. Each call
// must perform exactly one device access, in program order.
type Region = mmio.Region

// Controller is a handle over a whole HPET register block.
type Controller struct {
	r Region
}

// New returns a Controller over the register block at base.
//
// base must point at BlockSize bytes of HPET registers mapped uncacheable,
// and the mapping must outlive the Controller. Nothing else can be checked.
func New(base unsafe.Pointer) (*Controller, error) {
	if base == nil {
		return nil, ErrNilAddress
	}
	return NewFromRegion(mmio.NewPointer(base, BlockSize))
}

// NewFromRegion returns a Controller that performs its accesses through r.
func NewFromRegion(r Region) (*Controller, error) {
	if r == nil {
		return nil, ErrNilAddress
	}
	if r.Size() < BlockSize {
		return nil, fmt.Errorf("%w: %#x bytes", ErrRegionTooSmall, r.Size())
	}
	return &Controller{r: r}, nil
}

// Capabilities reads the General Capabilities and ID register.
func (c *Controller) Capabilities() regs.Capabilities {
	return regs.Capabilities(c.r.Load64(regs.OffsetCapabilities))
}

// VendorID is the PCI vendor ID of the HPET's manufacturer.
func (c *Controller) VendorID() uint16 { return c.Capabilities().VendorID() }

// TickPeriod is the main counter tick period in femtoseconds.
func (c *Controller) TickPeriod() uint32 { return c.Capabilities().CounterClockPeriod() }

// LegacyReplacementCapable reports support for the LegacyReplacement route.
func (c *Controller) LegacyReplacementCapable() bool {
	return c.Capabilities().LegacyReplacementCapable()
}

// Supports64Bit reports a 64-bit main counter.
func (c *Controller) Supports64Bit() bool { return c.Capabilities().CounterSize64() }

// RevisionID is the implemented revision of the HPET function.
func (c *Controller) RevisionID() uint8 { return c.Capabilities().RevisionID() }

// TimersCount returns the number of populated timers, between 1 and 32.
func (c *Controller) TimersCount() int { return c.Capabilities().NumTimers() }

func (c *Controller) config() regs.GeneralConfig {
	return regs.GeneralConfig(c.r.Load64(regs.OffsetConfig))
}

func (c *Controller) storeConfig(cfg regs.GeneralConfig) {
	c.r.Store64(regs.OffsetConfig, uint64(cfg))
}

// Enabled reports the overall enable bit.
func (c *Controller) Enabled() bool { return c.config().Enabled() }

// SetEnable starts or halts the main counter and gates all timer interrupts.
func (c *Controller) SetEnable(enable bool) {
	c.storeConfig(c.config().WithEnabled(enable))
}

// LegacyReplacementEnabled reports the LegacyReplacement route bit.
func (c *Controller) LegacyReplacementEnabled() bool { return c.config().LegacyReplacement() }

// SetLegacyReplacement switches the LegacyReplacement route. Enabling it
// requires the capability; disabling always succeeds.
func (c *Controller) SetLegacyReplacement(enable bool) error {
	if enable && !c.LegacyReplacementCapable() {
		return &UnsupportedError{Timer: -1, Feature: FeatureLegacyReplacement}
	}
	c.storeConfig(c.config().WithLegacyReplacement(enable))
	return nil
}

// MainCounterValue reads the main counter. If the device has no 64-bit
// counter the value never exceeds the 32-bit range.
func (c *Controller) MainCounterValue() uint64 {
	return c.r.Load64(regs.OffsetMainCounter)
}

// SetMainCounterValue writes the main counter. The hardware only allows this
// while the device is halted.
func (c *Controller) SetMainCounterValue(val uint64) error {
	if c.Enabled() {
		return fmt.Errorf("%w: main counter written while the HPET is enabled", ErrInvalidOperation)
	}
	c.r.Store64(regs.OffsetMainCounter, val)
	return nil
}

// InterruptStatus reads the General Interrupt Status register.
func (c *Controller) InterruptStatus() regs.InterruptStatus {
	return regs.InterruptStatus(c.r.Load64(regs.OffsetInterruptStatus))
}

// ClearInterrupts acknowledges the level-triggered interrupts set in mask.
// Bits for unpopulated timers are dropped.
func (c *Controller) ClearInterrupts(mask regs.InterruptStatus) {
	c.r.Store64(regs.OffsetInterruptStatus, uint64(mask&regs.InterruptStatusMask(c.TimersCount())))
}

func (c *Controller) checkIndex(index int) error {
	if n := c.TimersCount(); index < 0 || index >= n {
		return &IndexError{Index: index, Count: n}
	}
	return nil
}

// Timer returns a read-only view of timer index.
func (c *Controller) Timer(index int) (Timer, error) {
	if err := c.checkIndex(index); err != nil {
		return Timer{}, err
	}
	return Timer{timerRegs{r: c.r, index: index}}, nil
}

// TimerMut returns a view of timer index that can reconfigure it. No other
// view of the device may be used while it is in use.
func (c *Controller) TimerMut(index int) (*TimerMut, error) {
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	return &TimerMut{timerRegs{r: c.r, index: index}}, nil
}

// Timers yields a read-only view of every populated timer in index order.
// The sequence can be ranged over any number of times.
func (c *Controller) Timers() iter.Seq[Timer] {
	return func(yield func(Timer) bool) {
		for i := 0; i < c.TimersCount(); i++ {
			if !yield(Timer{timerRegs{r: c.r, index: i}}) {
				return
			}
		}
	}
}

// Duration converts a number of main counter ticks to wall time, saturating
// at the largest time.Duration.
func (c *Controller) Duration(ticks uint64) time.Duration {
	hi, lo := bits.Mul64(ticks, uint64(c.TickPeriod()))
	const fsPerNs = 1_000_000
	if hi >= fsPerNs {
		return math.MaxInt64
	}
	ns, _ := bits.Div64(hi, lo, fsPerNs)
	if ns > math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// Ticks converts d to a number of main counter ticks, rounding down.
// Negative durations and a zero tick period give 0.
func (c *Controller) Ticks(d time.Duration) uint64 {
	period := uint64(c.TickPeriod())
	if d <= 0 || period == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(d), 1_000_000)
	if hi >= period {
		return math.MaxUint64
	}
	ticks, _ := bits.Div64(hi, lo, period)
	return ticks
}
