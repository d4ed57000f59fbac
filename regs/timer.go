package regs

import (
	"fmt"

	"github.com/tinyrange/hpet/internal/bitfield"
)

var (
	tnIntRouteCap = bitfield.Bits(63, 32) // Tn_INT_ROUTE_CAP
	tnFSBCap      = bitfield.Bit(15)      // Tn_FSB_INT_DEL_CAP
	tnFSBEnable   = bitfield.Bit(14)      // Tn_FSB_EN_CNF
	tnIntRoute    = bitfield.Bits(13, 9)  // Tn_INT_ROUTE_CNF
	tn32Mode      = bitfield.Bit(8)       // Tn_32MODE_CNF
	tnValueSet    = bitfield.Bit(6)       // Tn_VAL_SET_CNF
	tnSizeCap     = bitfield.Bit(5)       // Tn_SIZE_CAP
	tnPeriodicCap = bitfield.Bit(4)       // Tn_PER_INT_CAP
	tnPeriodic    = bitfield.Bit(3)       // Tn_TYPE_CNF
	tnIntEnable   = bitfield.Bit(2)       // Tn_INT_ENB_CNF
	tnIntType     = bitfield.Bit(1)       // Tn_INT_TYPE_CNF
)

const (
	// TimerConfigReadOnlyMask covers the capability bits of TimerConfig.
	TimerConfigReadOnlyMask = 0xFFFF_FFFF_0000_8030
	// TimerConfigWritableMask covers the configuration bits of TimerConfig.
	TimerConfigWritableMask = 0x0000_0000_0000_7F4E
)

// TriggerMode selects how a timer signals its interrupt.
type TriggerMode uint8

const (
	// EdgeTriggered raises a new edge for every event.
	EdgeTriggered TriggerMode = iota
	// LevelTriggered holds the line active until the timer's status bit is
	// cleared.
	LevelTriggered
)

func (m TriggerMode) String() string {
	switch m {
	case EdgeTriggered:
		return "edge"
	case LevelTriggered:
		return "level"
	default:
		return fmt.Sprintf("TriggerMode(%d)", uint8(m))
	}
}

// TimerConfig is the Timer N Configuration and Capability register.
type TimerConfig uint64

// IOAPICRouteCapability has bit n set if the timer can be routed to I/O APIC
// input n.
func (c TimerConfig) IOAPICRouteCapability() uint32 {
	return uint32(tnIntRouteCap.Get(uint64(c)))
}

// SupportsIOAPIC reports whether irq is set in IOAPICRouteCapability.
func (c TimerConfig) SupportsIOAPIC(irq uint8) bool {
	return irq < 32 && c.IOAPICRouteCapability()&(1<<irq) != 0
}

func (c TimerConfig) FSBCapable() bool { return tnFSBCap.Bool(uint64(c)) }

// FSBEnabled forces delivery as FSB messages through the FSB route
// register. IOAPICRoute is ignored while it is set.
func (c TimerConfig) FSBEnabled() bool { return tnFSBEnable.Bool(uint64(c)) }

func (c TimerConfig) WithFSBEnabled(on bool) TimerConfig {
	return TimerConfig(tnFSBEnable.SetBool(uint64(c), on))
}

// IOAPICRoute is the I/O APIC input the timer's interrupt is sent to.
func (c TimerConfig) IOAPICRoute() uint8 { return uint8(tnIntRoute.Get(uint64(c))) }

func (c TimerConfig) WithIOAPICRoute(irq uint8) TimerConfig {
	return TimerConfig(tnIntRoute.Set(uint64(c), uint64(irq)))
}

// Force32 makes a 64-bit timer behave as a 32-bit one. It reads as 0 and
// ignores writes on 32-bit timers.
func (c TimerConfig) Force32() bool { return tn32Mode.Bool(uint64(c)) }

func (c TimerConfig) WithForce32(on bool) TimerConfig {
	return TimerConfig(tn32Mode.SetBool(uint64(c), on))
}

// ValueSet lets the next comparator write set a periodic timer's
// accumulator. The hardware clears it by itself.
func (c TimerConfig) ValueSet() bool { return tnValueSet.Bool(uint64(c)) }

func (c TimerConfig) WithValueSet(on bool) TimerConfig {
	return TimerConfig(tnValueSet.SetBool(uint64(c), on))
}

// Size64 reports a 64-bit comparator.
func (c TimerConfig) Size64() bool { return tnSizeCap.Bool(uint64(c)) }

func (c TimerConfig) PeriodicCapable() bool { return tnPeriodicCap.Bool(uint64(c)) }

// Periodic selects periodic rather than one-shot interrupts. Only
// meaningful when PeriodicCapable.
func (c TimerConfig) Periodic() bool { return tnPeriodic.Bool(uint64(c)) }

func (c TimerConfig) WithPeriodic(on bool) TimerConfig {
	return TimerConfig(tnPeriodic.SetBool(uint64(c), on))
}

// InterruptEnabled gates interrupt delivery. A disabled timer still runs and
// updates its status bit.
func (c TimerConfig) InterruptEnabled() bool { return tnIntEnable.Bool(uint64(c)) }

func (c TimerConfig) WithInterruptEnabled(on bool) TimerConfig {
	return TimerConfig(tnIntEnable.SetBool(uint64(c), on))
}

func (c TimerConfig) TriggerMode() TriggerMode {
	if tnIntType.Bool(uint64(c)) {
		return LevelTriggered
	}
	return EdgeTriggered
}

func (c TimerConfig) WithTriggerMode(m TriggerMode) TimerConfig {
	return TimerConfig(tnIntType.SetBool(uint64(c), m == LevelTriggered))
}

// Capabilities returns only the read-only bits.
func (c TimerConfig) Capabilities() TimerConfig { return c & TimerConfigReadOnlyMask }

func (c TimerConfig) String() string {
	return fmt.Sprintf("routes=%#08x fsbcap=%t fsb=%t route=%d 32mode=%t size64=%t percap=%t periodic=%t int=%t %s",
		c.IOAPICRouteCapability(), c.FSBCapable(), c.FSBEnabled(), c.IOAPICRoute(),
		c.Force32(), c.Size64(), c.PeriodicCapable(), c.Periodic(),
		c.InterruptEnabled(), c.TriggerMode())
}

var (
	fsbAddress = bitfield.Bits(63, 32) // Tn_FSB_INT_ADDR
	fsbValue   = bitfield.Bits(31, 0)  // Tn_FSB_INT_VAL
)

// FSBRoute is the Timer N FSB Interrupt Route register: where and what the
// timer writes when it delivers an FSB interrupt.
type FSBRoute uint64

func MakeFSBRoute(address, value uint32) FSBRoute {
	var v uint64
	v = fsbAddress.Set(v, uint64(address))
	v = fsbValue.Set(v, uint64(value))
	return FSBRoute(v)
}

// Address is the location the interrupt message is written to.
func (r FSBRoute) Address() uint32 { return uint32(fsbAddress.Get(uint64(r))) }

// Value is the data written in the interrupt message.
func (r FSBRoute) Value() uint32 { return uint32(fsbValue.Get(uint64(r))) }

func (r FSBRoute) String() string {
	return fmt.Sprintf("addr=%#08x val=%#08x", r.Address(), r.Value())
}
