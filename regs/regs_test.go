package regs

import (
	"errors"
	"math/rand/v2"
	"testing"
	"unsafe"
)

func TestBlockLayout(t *testing.T) {
	var b Block
	if got := unsafe.Sizeof(b); got != 0x500 {
		t.Fatalf("block size = %#x, want 0x500", got)
	}
	for _, tt := range []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"capabilities", unsafe.Offsetof(b.Capabilities), 0x000},
		{"config", unsafe.Offsetof(b.Config), 0x010},
		{"interrupt status", unsafe.Offsetof(b.InterruptStatus), 0x020},
		{"main counter", unsafe.Offsetof(b.MainCounter), 0x0F0},
		{"timers", unsafe.Offsetof(b.Timers), 0x100},
		{"timer 31 fsb route", uintptr(unsafe.Pointer(&b.Timers[31].FSBRoute)) - uintptr(unsafe.Pointer(&b)), 0x4F0},
	} {
		if tt.got != tt.want {
			t.Fatalf("%s offset = %#x, want %#x", tt.name, tt.got, tt.want)
		}
	}
}

func TestTimerOffset(t *testing.T) {
	if got := TimerOffset(0, TimerOffsetConfig); got != 0x100 {
		t.Fatalf("timer 0 config at %#x", got)
	}
	if got := TimerOffset(2, TimerOffsetComparator); got != 0x148 {
		t.Fatalf("timer 2 comparator at %#x", got)
	}
	if got := TimerOffset(31, TimerOffsetFSBRoute); got != 0x4F0 {
		t.Fatalf("timer 31 route at %#x", got)
	}
}

func TestCapabilitiesFields(t *testing.T) {
	for _, tt := range []struct {
		raw  Capabilities
		want CapabilitiesFields
	}{
		{
			// QEMU-like: 10ns period, Intel, legacy capable, 64-bit, 3 timers, rev 1.
			raw: 0x0098_9680_8086_A201,
			want: CapabilitiesFields{
				CounterClockPeriod:       10_000_000,
				VendorID:                 0x8086,
				LegacyReplacementCapable: true,
				CounterSize64:            true,
				NumTimersMinusOne:        2,
				RevisionID:               0x01,
			},
		},
		{
			raw: 0x8086_0001_0305_1234,
			want: CapabilitiesFields{
				CounterClockPeriod: 0x8086_0001,
				VendorID:           0x0305,
				NumTimersMinusOne:  0x12,
				RevisionID:         0x34,
			},
		},
		{
			// 69.841279ns period (14.318MHz), AMD, 32-bit counter, 32 timers.
			raw: 0x0429_B17F_1022_9F10,
			want: CapabilitiesFields{
				CounterClockPeriod:       69841279,
				VendorID:                 0x1022,
				LegacyReplacementCapable: true,
				NumTimersMinusOne:        31,
				RevisionID:               0x10,
			},
		},
	} {
		got := tt.raw.Fields()
		if got != tt.want {
			t.Fatalf("%#x decoded to %+v, want %+v", uint64(tt.raw), got, tt.want)
		}
		if back := MakeCapabilities(got); back != tt.raw {
			t.Fatalf("%#x re-encoded to %#x", uint64(tt.raw), uint64(back))
		}
	}
}

func TestCapabilitiesRoundTripAllPatterns(t *testing.T) {
	const reserved = 1 << 14
	var raws []uint64
	for i := 0; i < 64; i++ {
		raws = append(raws, 1<<i, ^uint64(0)&^(1<<i))
	}
	rng := rand.New(rand.NewPCG(0x48504554, 1))
	for range 10000 {
		raws = append(raws, rng.Uint64())
	}

	for _, raw := range raws {
		raw &^= reserved
		c := Capabilities(raw)
		if back := MakeCapabilities(c.Fields()); back != c {
			t.Fatalf("%#x re-encoded to %#x", raw, uint64(back))
		}
		if c.NumTimers() < 1 || c.NumTimers() > MaxTimers {
			t.Fatalf("%#x decoded to %d timers", raw, c.NumTimers())
		}
	}
}

func TestCapabilitiesNumTimers(t *testing.T) {
	for n := 0; n < 32; n++ {
		c := MakeCapabilities(CapabilitiesFields{NumTimersMinusOne: uint8(n)})
		if c.NumTimers() != n+1 {
			t.Fatalf("NUM_TIM_CAP %d gave %d timers", n, c.NumTimers())
		}
	}
	// Out-of-range input is truncated to the 5-bit field.
	if got := MakeCapabilities(CapabilitiesFields{NumTimersMinusOne: 0xff}).NumTimers(); got != 32 {
		t.Fatalf("truncated timer count = %d", got)
	}
}

func TestCapabilitiesValidate(t *testing.T) {
	ok := MakeCapabilities(CapabilitiesFields{CounterClockPeriod: MaxCounterClockPeriod, RevisionID: 1})
	if err := ok.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := MakeCapabilities(CapabilitiesFields{RevisionID: 1}).Validate(); !errors.Is(err, ErrZeroClockPeriod) {
		t.Fatalf("zero period: %v", err)
	}
	slow := MakeCapabilities(CapabilitiesFields{CounterClockPeriod: MaxCounterClockPeriod + 1, RevisionID: 1})
	if err := slow.Validate(); !errors.Is(err, ErrClockPeriodTooLong) {
		t.Fatalf("slow period: %v", err)
	}
	if err := MakeCapabilities(CapabilitiesFields{CounterClockPeriod: 1}).Validate(); !errors.Is(err, ErrZeroRevision) {
		t.Fatalf("zero revision: %v", err)
	}
}

func TestGeneralConfig(t *testing.T) {
	c := GeneralConfig(0xf0).WithEnabled(true)
	if c != 0xf1 || !c.Enabled() || c.LegacyReplacement() {
		t.Fatalf("enable: %#x", uint64(c))
	}
	c = c.WithLegacyReplacement(true).WithEnabled(false)
	if c != 0xf2 || c.Enabled() || !c.LegacyReplacement() {
		t.Fatalf("legacy: %#x", uint64(c))
	}
}

func TestInterruptStatus(t *testing.T) {
	s := InterruptStatus(0b1010)
	if !s.Active(1) || s.Active(0) || !s.Active(3) || s.Active(32) || s.Active(-1) {
		t.Fatalf("active bits wrong for %s", s)
	}
	if got := InterruptStatus(0).Clear(0).Clear(5); got != 0b100001 {
		t.Fatalf("clear mask = %s", got)
	}
	if InterruptStatusMask(3) != 0b111 || InterruptStatusMask(32) != 0xffff_ffff || InterruptStatusMask(0) != 0 {
		t.Fatalf("status masks wrong")
	}
}

func TestTimerConfigFields(t *testing.T) {
	// Routable to IRQ 2 and 20..23, FSB capable, 64-bit, periodic capable,
	// FSB enabled, route 20, level-triggered, interrupts on.
	raw := TimerConfig(0x00F0_0004_0000_C000 | 20<<9 | 0x30 | 0x4 | 0x2)
	if got := raw.IOAPICRouteCapability(); got != 0x00F0_0004 {
		t.Fatalf("route cap = %#x", got)
	}
	if !raw.SupportsIOAPIC(2) || !raw.SupportsIOAPIC(23) || raw.SupportsIOAPIC(3) || raw.SupportsIOAPIC(40) {
		t.Fatalf("SupportsIOAPIC wrong")
	}
	if !raw.FSBCapable() || !raw.FSBEnabled() || raw.IOAPICRoute() != 20 {
		t.Fatalf("fsb/route wrong: %s", raw)
	}
	if !raw.Size64() || !raw.PeriodicCapable() || raw.Periodic() || raw.Force32() || raw.ValueSet() {
		t.Fatalf("mode bits wrong: %s", raw)
	}
	if !raw.InterruptEnabled() || raw.TriggerMode() != LevelTriggered {
		t.Fatalf("interrupt bits wrong: %s", raw)
	}
	if raw.Capabilities() != 0x00F0_0004_0000_8030 {
		t.Fatalf("capabilities = %#x", uint64(raw.Capabilities()))
	}
}

func TestTimerConfigSetters(t *testing.T) {
	var c TimerConfig
	c = c.WithIOAPICRoute(31).WithFSBEnabled(true).WithForce32(true).WithValueSet(true).
		WithPeriodic(true).WithInterruptEnabled(true).WithTriggerMode(LevelTriggered)
	if c != TimerConfigWritableMask {
		t.Fatalf("all writable bits = %#x, want %#x", uint64(c), uint64(TimerConfigWritableMask))
	}
	if c&TimerConfigReadOnlyMask != 0 {
		t.Fatalf("setters touched read-only bits")
	}
	if got := c.WithIOAPICRoute(0x25); got.IOAPICRoute() != 5 {
		t.Fatalf("route truncation = %d", got.IOAPICRoute())
	}
	if c.WithTriggerMode(EdgeTriggered).TriggerMode() != EdgeTriggered {
		t.Fatalf("edge trigger not stored")
	}
}

func TestFSBRoute(t *testing.T) {
	r := MakeFSBRoute(0xFEE0_0000, 0x0000_0041)
	if uint64(r) != 0xFEE0_0000_0000_0041 {
		t.Fatalf("raw = %#x", uint64(r))
	}
	if r.Address() != 0xFEE0_0000 || r.Value() != 0x41 {
		t.Fatalf("decoded %s", r)
	}
}
