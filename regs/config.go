package regs

import (
	"fmt"

	"github.com/tinyrange/hpet/internal/bitfield"
)

var (
	cfgLegacyRoute = bitfield.Bit(1) // LEG_RT_CNF
	cfgEnable      = bitfield.Bit(0) // ENABLE_CNF
)

// GeneralConfigMask covers the defined bits of GeneralConfig. The rest are
// reserved and must be written back as read.
const GeneralConfigMask = 0x3

// GeneralConfig is the General Configuration register.
type GeneralConfig uint64

// Enabled is the overall enable. While clear the main counter halts and no
// timer raises interrupts.
func (c GeneralConfig) Enabled() bool { return cfgEnable.Bool(uint64(c)) }

func (c GeneralConfig) WithEnabled(on bool) GeneralConfig {
	return GeneralConfig(cfgEnable.SetBool(uint64(c), on))
}

// LegacyReplacement routes timer 0 to IRQ0/IRQ2 and timer 1 to IRQ8 when
// set together with the overall enable, overriding both timers' own
// routing.
func (c GeneralConfig) LegacyReplacement() bool { return cfgLegacyRoute.Bool(uint64(c)) }

func (c GeneralConfig) WithLegacyReplacement(on bool) GeneralConfig {
	return GeneralConfig(cfgLegacyRoute.SetBool(uint64(c), on))
}

func (c GeneralConfig) String() string {
	return fmt.Sprintf("enable=%t legacy=%t", c.Enabled(), c.LegacyReplacement())
}

// InterruptStatus is the General Interrupt Status register. Bit n is
// Tn_INT_STS.
//
// For a level-triggered timer the bit is set while the interrupt is active
// and is cleared by writing a 1 to it. For an edge-triggered timer it should
// be ignored and written as 0.
type InterruptStatus uint64

func (s InterruptStatus) Active(timer int) bool {
	if timer < 0 || timer >= MaxTimers {
		return false
	}
	return s&(1<<timer) != 0
}

// Clear returns s with the write-1-to-clear bit for timer added.
func (s InterruptStatus) Clear(timer int) InterruptStatus {
	if timer < 0 || timer >= MaxTimers {
		return s
	}
	return s | 1<<timer
}

// InterruptStatusMask covers the bits that belong to populated timers.
func InterruptStatusMask(timers int) InterruptStatus {
	if timers >= MaxTimers {
		return 1<<MaxTimers - 1
	}
	if timers <= 0 {
		return 0
	}
	return 1<<timers - 1
}

func (s InterruptStatus) String() string { return fmt.Sprintf("%#x", uint64(s)) }
