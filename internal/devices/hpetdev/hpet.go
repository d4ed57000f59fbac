// Package hpetdev is a software HPET. It implements mmio.Region with the
// access semantics of the real register block, so it can stand in for
// mapped hardware.
package hpetdev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyrange/hpet/internal/mmio"
	"github.com/tinyrange/hpet/regs"
)

// InterruptSink defines where the HPET sends I/O APIC signals.
type InterruptSink interface {
	SetIRQ(irq uint32, level bool) error
}

// MessageSink receives FSB interrupt messages.
type MessageSink interface {
	WriteMessage(addr, value uint32) error
}

const (
	DefaultClockPeriod = 10_000_000 // 10ns
	DefaultVendorID    = 0x8086

	legacyTimer0IRQ = 2
	legacyTimer1IRQ = 8
)

var ErrTimerCount = errors.New("timer count must be between 1 and 32")

// TimerOptions describes the capabilities of one emulated timer.
type TimerOptions struct {
	IOAPICRoutes uint32 `yaml:"ioapicRoutes"`
	FSB          bool   `yaml:"fsb"`
	Periodic     bool   `yaml:"periodic"`
	Size64       bool   `yaml:"size64"`
}

// Options describes the emulated device.
type Options struct {
	ClockPeriod       uint32         `yaml:"clockPeriodFs"`
	VendorID          uint16         `yaml:"vendorID"`
	RevisionID        uint8          `yaml:"revisionID"`
	Counter64         bool           `yaml:"counter64"`
	LegacyReplacement bool           `yaml:"legacyReplacement"`
	Timers            []TimerOptions `yaml:"timers"`

	Sink     InterruptSink `yaml:"-"`
	Messages MessageSink   `yaml:"-"`
	Logger   *slog.Logger  `yaml:"-"`
}

// DefaultOptions is enough for typical guests: three 64-bit periodic timers
// routable to any I/O APIC input, no FSB delivery.
func DefaultOptions() Options {
	timers := make([]TimerOptions, 3)
	for i := range timers {
		timers[i] = TimerOptions{IOAPICRoutes: 0xffffffff, Periodic: true, Size64: true}
	}
	return Options{
		ClockPeriod:       DefaultClockPeriod,
		VendorID:          DefaultVendorID,
		RevisionID:        1,
		Counter64:         true,
		LegacyReplacement: true,
		Timers:            timers,
	}
}

type timer struct {
	period uint64
	// periodNext routes the next comparator write to period after a
	// VAL_SET write set the accumulator.
	periodNext bool
	asserted   bool
	// assertedIRQ is the line raised while asserted is set.
	assertedIRQ uint32
}

// Device is an emulated HPET register block.
type Device struct {
	sink     InterruptSink
	messages MessageSink
	log      *slog.Logger

	mu     sync.Mutex
	mem    regs.Block
	timers []timer

	// femtoseconds not yet converted to ticks by Run.
	residue uint64
}

// New constructs a halted device with the main counter at zero.
func New(opts Options) (*Device, error) {
	if n := len(opts.Timers); n < 1 || n > regs.MaxTimers {
		return nil, fmt.Errorf("hpetdev: %w: got %d", ErrTimerCount, n)
	}
	caps := regs.MakeCapabilities(regs.CapabilitiesFields{
		CounterClockPeriod:       opts.ClockPeriod,
		VendorID:                 opts.VendorID,
		LegacyReplacementCapable: opts.LegacyReplacement,
		CounterSize64:            opts.Counter64,
		NumTimersMinusOne:        uint8(len(opts.Timers) - 1),
		RevisionID:               opts.RevisionID,
	})
	if err := caps.Validate(); err != nil {
		return nil, fmt.Errorf("hpetdev: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	d := &Device{
		sink:     opts.Sink,
		messages: opts.Messages,
		log:      log,
		timers:   make([]timer, len(opts.Timers)),
	}
	d.mem.Capabilities = caps
	for i, t := range opts.Timers {
		var c uint64
		c |= uint64(t.IOAPICRoutes) << 32
		if t.FSB {
			c |= 1 << 15
		}
		// A 32-bit counter cannot feed a 64-bit comparator.
		if t.Size64 && opts.Counter64 {
			c |= 1 << 5
		}
		if t.Periodic {
			c |= 1 << 4
		}
		d.mem.Timers[i].Config = regs.TimerConfig(c)
	}
	return d, nil
}

func (d *Device) Size() uintptr { return regs.BlockSize }

func (d *Device) counterMask() uint64 {
	if d.mem.Capabilities.CounterSize64() {
		return ^uint64(0)
	}
	return 0xffffffff
}

func (d *Device) comparatorMask(c regs.TimerConfig) uint64 {
	if !c.Size64() || c.Force32() {
		return 0xffffffff
	}
	return ^uint64(0)
}

// Load64 handles HPET register reads.
func (d *Device) Load64(off uintptr) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off == regs.OffsetCapabilities:
		return uint64(d.mem.Capabilities)
	case off == regs.OffsetConfig:
		return uint64(d.mem.Config)
	case off == regs.OffsetInterruptStatus:
		return uint64(d.mem.InterruptStatus)
	case off == regs.OffsetMainCounter:
		return d.mem.MainCounter & d.counterMask()
	case off >= regs.OffsetTimers && off < regs.BlockSize:
		idx := int((off - regs.OffsetTimers) / regs.TimerStride)
		if idx >= len(d.timers) {
			return 0
		}
		t := &d.mem.Timers[idx]
		switch (off - regs.OffsetTimers) % regs.TimerStride {
		case regs.TimerOffsetConfig:
			return uint64(t.Config)
		case regs.TimerOffsetComparator:
			return t.Comparator
		case regs.TimerOffsetFSBRoute:
			return uint64(t.FSBRoute)
		}
	}
	return 0
}

// Store64 handles HPET register writes.
func (d *Device) Store64(off uintptr, val uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off == regs.OffsetConfig:
		cfg := regs.GeneralConfig(val & regs.GeneralConfigMask)
		if !d.mem.Capabilities.LegacyReplacementCapable() {
			cfg = cfg.WithLegacyReplacement(false)
		}
		d.log.Debug("hpet: general config", "enable", cfg.Enabled(), "legacy", cfg.LegacyReplacement())
		d.mem.Config = cfg
		for i := range d.timers {
			d.rerouteLocked(i)
		}
		if !cfg.Enabled() {
			d.residue = 0
		}
	case off == regs.OffsetInterruptStatus:
		cleared := regs.InterruptStatus(val) & d.mem.InterruptStatus
		d.mem.InterruptStatus &^= cleared
		for i := range d.timers {
			if cleared.Active(i) {
				d.deassertLocked(i)
			}
		}
	case off == regs.OffsetMainCounter:
		if d.mem.Config.Enabled() {
			d.log.Warn("hpet: main counter written while enabled", "value", val)
		}
		d.mem.MainCounter = val & d.counterMask()
	case off >= regs.OffsetTimers && off < regs.BlockSize:
		idx := int((off - regs.OffsetTimers) / regs.TimerStride)
		if idx >= len(d.timers) {
			return
		}
		switch (off - regs.OffsetTimers) % regs.TimerStride {
		case regs.TimerOffsetConfig:
			d.writeTimerConfigLocked(idx, regs.TimerConfig(val))
		case regs.TimerOffsetComparator:
			d.writeComparatorLocked(idx, val)
		case regs.TimerOffsetFSBRoute:
			d.mem.Timers[idx].FSBRoute = regs.FSBRoute(val)
		}
	}
}

func (d *Device) writeTimerConfigLocked(idx int, val regs.TimerConfig) {
	tb := &d.mem.Timers[idx]
	caps := tb.Config.Capabilities()
	cfg := val&regs.TimerConfigWritableMask | caps

	if !caps.FSBCapable() {
		cfg = cfg.WithFSBEnabled(false)
	}
	if !caps.PeriodicCapable() {
		cfg = cfg.WithPeriodic(false)
	}
	if !caps.Size64() {
		cfg = cfg.WithForce32(false)
	}
	if cfg.ValueSet() {
		d.timers[idx].periodNext = false
	}
	if cfg.Force32() {
		tb.Comparator &= 0xffffffff
		d.timers[idx].period &= 0xffffffff
	}
	if !cfg.InterruptEnabled() || cfg.TriggerMode() == regs.EdgeTriggered {
		d.deassertLocked(idx)
	}

	d.log.Debug("hpet: timer config", "timer", idx, "config", cfg)
	tb.Config = cfg
	d.rerouteLocked(idx)
}

func (d *Device) writeComparatorLocked(idx int, val uint64) {
	tb := &d.mem.Timers[idx]
	t := &d.timers[idx]
	val &= d.comparatorMask(tb.Config)

	switch {
	case tb.Config.Periodic() && tb.Config.ValueSet():
		// Accumulator write; the next write sets the period.
		tb.Comparator = val
		t.periodNext = true
	case tb.Config.Periodic() && t.periodNext:
		t.period = val
		t.periodNext = false
	default:
		tb.Comparator = val
		t.period = val
	}
	// VAL_SET clears itself after one comparator write.
	tb.Config = tb.Config.WithValueSet(false)
	d.log.Debug("hpet: timer comparator", "timer", idx, "comparator", tb.Comparator, "period", t.period)
}

// Advance moves the main counter forward by ticks if the device is enabled,
// firing any comparators it passes.
func (d *Device) Advance(ticks uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advanceLocked(ticks)
}

func (d *Device) advanceLocked(ticks uint64) {
	if !d.mem.Config.Enabled() || ticks == 0 {
		return
	}
	mask := d.counterMask()
	prev := d.mem.MainCounter & mask
	d.mem.MainCounter = (prev + ticks) & mask

	for i := range d.timers {
		d.checkTimerLocked(i, prev, ticks)
	}
}

// passed reports whether counting ticks up from prev hits cmp, under
// wraparound at mask.
func passed(prev, ticks, cmp, mask uint64) bool {
	dist := (cmp - prev) & mask
	return dist != 0 && dist <= ticks
}

func (d *Device) checkTimerLocked(idx int, prev, ticks uint64) {
	tb := &d.mem.Timers[idx]
	t := &d.timers[idx]
	mask := d.comparatorMask(tb.Config) & d.counterMask()

	if !passed(prev&mask, ticks, tb.Comparator&mask, mask) {
		return
	}
	if tb.Config.Periodic() && t.period != 0 {
		comp := tb.Comparator
		// Bounded for advances longer than the counter's range.
		for n := ticks/t.period + 1; n > 0 && passed(prev&mask, ticks, comp&mask, mask); n-- {
			comp = (comp + t.period) & mask
		}
		tb.Comparator = comp
	}
	d.raiseLocked(idx)
}

func (d *Device) raiseLocked(idx int) {
	tb := &d.mem.Timers[idx]
	level := tb.Config.TriggerMode() == regs.LevelTriggered
	if level {
		d.mem.InterruptStatus |= 1 << idx
	}
	if !tb.Config.InterruptEnabled() {
		return
	}

	if tb.Config.FSBEnabled() && !d.legacyRoutedLocked(idx) {
		if d.messages == nil {
			return
		}
		route := tb.FSBRoute
		if err := d.messages.WriteMessage(route.Address(), route.Value()); err != nil {
			d.log.Warn("hpet: FSB message failed", "timer", idx, "error", err)
		}
		return
	}

	irq := d.routeLocked(idx)
	d.log.Debug("hpet: timer IRQ", "timer", idx, "irq", irq, "status", d.mem.InterruptStatus)
	if d.sink == nil {
		return
	}
	if level {
		d.timers[idx].asserted = true
		d.timers[idx].assertedIRQ = irq
		if err := d.sink.SetIRQ(irq, true); err != nil {
			d.log.Warn("hpet: set IRQ failed", "timer", idx, "irq", irq, "error", err)
		}
		return
	}
	for _, on := range []bool{true, false} {
		if err := d.sink.SetIRQ(irq, on); err != nil {
			d.log.Warn("hpet: set IRQ failed", "timer", idx, "irq", irq, "level", on, "error", err)
		}
	}
}

func (d *Device) deassertLocked(idx int) {
	t := &d.timers[idx]
	if !t.asserted {
		return
	}
	t.asserted = false
	if d.sink == nil {
		return
	}
	if err := d.sink.SetIRQ(t.assertedIRQ, false); err != nil {
		d.log.Warn("hpet: clear IRQ failed", "timer", idx, "irq", t.assertedIRQ, "error", err)
	}
}

// rerouteLocked lowers a held line that no longer matches the timer's
// effective route. The status bit is left as is.
func (d *Device) rerouteLocked(idx int) {
	t := &d.timers[idx]
	if !t.asserted {
		return
	}
	fsb := d.mem.Timers[idx].Config.FSBEnabled() && !d.legacyRoutedLocked(idx)
	if fsb || d.routeLocked(idx) != t.assertedIRQ {
		d.deassertLocked(idx)
	}
}

func (d *Device) legacyRoutedLocked(idx int) bool {
	return d.mem.Config.LegacyReplacement() && (idx == 0 || idx == 1)
}

func (d *Device) routeLocked(idx int) uint32 {
	if d.legacyRoutedLocked(idx) {
		if idx == 0 {
			return legacyTimer0IRQ
		}
		return legacyTimer1IRQ
	}
	return uint32(d.mem.Timers[idx].Config.IOAPICRoute())
}

// Run advances the counter in real time until ctx is done.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("hpetdev: run interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed <= 0 {
				continue
			}
			d.mu.Lock()
			fs := uint64(elapsed.Nanoseconds())*1_000_000 + d.residue
			period := uint64(d.mem.Capabilities.CounterClockPeriod())
			d.residue = fs % period
			d.advanceLocked(fs / period)
			d.mu.Unlock()
		}
	}
}

var (
	_ mmio.Region = (*Device)(nil)
)
