package hpet

import (
	"fmt"

	"github.com/tinyrange/hpet/regs"
)

// InterruptMode is how a timer currently delivers its interrupt. It is
// derived from the FSB enable bit every time it is read.
type InterruptMode uint8

const (
	// IOAPICMode sends interrupts to an I/O APIC input, which routes them on
	// to a local APIC.
	IOAPICMode InterruptMode = iota
	// FSBMode writes interrupt messages directly to a local APIC.
	FSBMode
)

func (m InterruptMode) String() string {
	switch m {
	case IOAPICMode:
		return "ioapic"
	case FSBMode:
		return "fsb"
	default:
		return fmt.Sprintf("InterruptMode(%d)", uint8(m))
	}
}

// InterruptConfig selects a timer's interrupt delivery. It is either IOAPIC
// or FSB, by value or by pointer.
type InterruptConfig interface {
	isInterruptConfig()
}

// IOAPIC routes the timer to I/O APIC input IRQ.
type IOAPIC struct {
	IRQ uint8
}

// FSB delivers the timer's interrupts as messages described by Route.
type FSB struct {
	Route regs.FSBRoute
}

func (IOAPIC) isInterruptConfig() {}
func (FSB) isInterruptConfig()    {}

// TimerReader is the query surface shared by Timer and TimerMut.
type TimerReader interface {
	Index() int
	Config() regs.TimerConfig
	SupportedIOAPICInterrupts() uint32
	SupportsFSBInterrupts() bool
	Supports64BitMode() bool
	SupportsPeriodicMode() bool
	InterruptMode() InterruptMode
	IOAPICInterrupt() uint8
	FSBRoute() regs.FSBRoute
	InterruptEnabled() bool
	Comparator() uint64
}

type timerRegs struct {
	r     Region
	index int
}

func (t timerRegs) offset(reg uintptr) uintptr { return regs.TimerOffset(t.index, reg) }

func (t timerRegs) Index() int { return t.index }

// Config reads the Timer N Configuration and Capability register.
func (t timerRegs) Config() regs.TimerConfig {
	return regs.TimerConfig(t.r.Load64(t.offset(regs.TimerOffsetConfig)))
}

// SupportedIOAPICInterrupts has bit n set if the timer can be routed to I/O
// APIC input n.
func (t timerRegs) SupportedIOAPICInterrupts() uint32 { return t.Config().IOAPICRouteCapability() }

func (t timerRegs) SupportsFSBInterrupts() bool { return t.Config().FSBCapable() }

func (t timerRegs) Supports64BitMode() bool { return t.Config().Size64() }

func (t timerRegs) SupportsPeriodicMode() bool { return t.Config().PeriodicCapable() }

func (t timerRegs) InterruptMode() InterruptMode {
	if t.Config().FSBEnabled() {
		return FSBMode
	}
	return IOAPICMode
}

// IOAPICInterrupt is the configured I/O APIC input. It has no effect while
// the timer is in FSBMode.
func (t timerRegs) IOAPICInterrupt() uint8 { return t.Config().IOAPICRoute() }

// FSBRoute reads the FSB Interrupt Route register. It has no effect while
// the timer is in IOAPICMode.
func (t timerRegs) FSBRoute() regs.FSBRoute {
	return regs.FSBRoute(t.r.Load64(t.offset(regs.TimerOffsetFSBRoute)))
}

func (t timerRegs) InterruptEnabled() bool { return t.Config().InterruptEnabled() }

func (t timerRegs) Comparator() uint64 {
	return t.r.Load64(t.offset(regs.TimerOffsetComparator))
}

// Timer is a read-only view of one timer.
type Timer struct {
	timerRegs
}

func (t Timer) String() string {
	c := t.Config()
	return fmt.Sprintf("timer %d: size64=%t fsb=%t periodic=%t ioapic=%b",
		t.index, c.Size64(), c.FSBCapable(), c.PeriodicCapable(), c.IOAPICRouteCapability())
}

// TimerMut is a view of one timer that can reconfigure it.
type TimerMut struct {
	timerRegs
}

func (t *TimerMut) storeConfig(c regs.TimerConfig) {
	t.r.Store64(t.offset(regs.TimerOffsetConfig), uint64(c))
}

// ConfigureInterrupt selects how the timer delivers interrupts.
//
// Not every I/O APIC input is available to every timer, and FSB delivery is
// optional; both are checked before anything is written. An FSB
// configuration takes two writes: the mode switch, then the route.
func (t *TimerMut) ConfigureInterrupt(cfg InterruptConfig) error {
	switch p := cfg.(type) {
	case *IOAPIC:
		if p == nil {
			return fmt.Errorf("%w: nil interrupt config", ErrInvalidOperation)
		}
		cfg = *p
	case *FSB:
		if p == nil {
			return fmt.Errorf("%w: nil interrupt config", ErrInvalidOperation)
		}
		cfg = *p
	}

	switch cfg := cfg.(type) {
	case IOAPIC:
		conf := t.Config()
		if !conf.SupportsIOAPIC(cfg.IRQ) {
			return &UnsupportedError{Timer: t.index, Feature: FeatureIOAPICRoute, IRQ: cfg.IRQ}
		}
		t.storeConfig(conf.WithFSBEnabled(false).WithIOAPICRoute(cfg.IRQ))
	case FSB:
		conf := t.Config()
		if !conf.FSBCapable() {
			return &UnsupportedError{Timer: t.index, Feature: FeatureFSB}
		}
		t.storeConfig(conf.WithFSBEnabled(true))
		t.r.Store64(t.offset(regs.TimerOffsetFSBRoute), uint64(cfg.Route))
	default:
		return fmt.Errorf("%w: interrupt config %T", ErrInvalidOperation, cfg)
	}
	return nil
}

// SetInterruptEnable gates interrupt delivery for this timer.
func (t *TimerMut) SetInterruptEnable(enable bool) {
	t.storeConfig(t.Config().WithInterruptEnabled(enable))
}

// SetComparatorValue writes the comparator register. The hardware has
// timing rules around comparator writes in periodic mode; following them is
// up to the caller.
func (t *TimerMut) SetComparatorValue(val uint64) {
	t.r.Store64(t.offset(regs.TimerOffsetComparator), val)
}

func (t *TimerMut) SetTriggerMode(mode regs.TriggerMode) {
	t.storeConfig(t.Config().WithTriggerMode(mode))
}

// SetPeriodic switches between periodic and one-shot interrupts. Periodic
// mode requires the capability.
func (t *TimerMut) SetPeriodic(periodic bool) error {
	conf := t.Config()
	if periodic && !conf.PeriodicCapable() {
		return &UnsupportedError{Timer: t.index, Feature: FeaturePeriodic}
	}
	t.storeConfig(conf.WithPeriodic(periodic))
	return nil
}

var (
	_ TimerReader = Timer{}
	_ TimerReader = (*TimerMut)(nil)
)
