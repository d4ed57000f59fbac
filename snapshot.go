package hpet

import "log/slog"

// Snapshot is a point-in-time description of the device, for diagnostics.
type Snapshot struct {
	VendorID                 uint16          `yaml:"vendorID"`
	RevisionID               uint8           `yaml:"revisionID"`
	TickPeriodFs             uint32          `yaml:"tickPeriodFs"`
	Supports64Bit            bool            `yaml:"supports64Bit"`
	LegacyReplacementCapable bool            `yaml:"legacyReplacementCapable"`
	Enabled                  bool            `yaml:"enabled"`
	LegacyReplacementEnabled bool            `yaml:"legacyReplacementEnabled"`
	MainCounter              uint64          `yaml:"mainCounter"`
	InterruptStatus          uint64          `yaml:"interruptStatus"`
	Timers                   []TimerSnapshot `yaml:"timers"`
}

type TimerSnapshot struct {
	Index                     int    `yaml:"index"`
	SupportedIOAPICInterrupts uint32 `yaml:"supportedIOAPICInterrupts"`
	SupportsFSB               bool   `yaml:"supportsFSB"`
	Supports64Bit             bool   `yaml:"supports64Bit"`
	SupportsPeriodic          bool   `yaml:"supportsPeriodic"`
	Mode                      string `yaml:"mode"`
	IOAPICInterrupt           uint8  `yaml:"ioapicInterrupt"`
	FSBAddress                uint32 `yaml:"fsbAddress,omitempty"`
	FSBValue                  uint32 `yaml:"fsbValue,omitempty"`
	InterruptEnabled          bool   `yaml:"interruptEnabled"`
	Periodic                  bool   `yaml:"periodic"`
	Trigger                   string `yaml:"trigger"`
	Comparator                uint64 `yaml:"comparator"`
}

// Snapshot reads every register of the device once (timer registers once
// per populated timer).
func (c *Controller) Snapshot() Snapshot {
	caps := c.Capabilities()
	cfg := c.config()
	s := Snapshot{
		VendorID:                 caps.VendorID(),
		RevisionID:               caps.RevisionID(),
		TickPeriodFs:             caps.CounterClockPeriod(),
		Supports64Bit:            caps.CounterSize64(),
		LegacyReplacementCapable: caps.LegacyReplacementCapable(),
		Enabled:                  cfg.Enabled(),
		LegacyReplacementEnabled: cfg.LegacyReplacement(),
		MainCounter:              c.MainCounterValue(),
		InterruptStatus:          uint64(c.InterruptStatus()),
	}
	for i := 0; i < caps.NumTimers(); i++ {
		t := timerRegs{r: c.r, index: i}
		conf := t.Config()
		ts := TimerSnapshot{
			Index:                     i,
			SupportedIOAPICInterrupts: conf.IOAPICRouteCapability(),
			SupportsFSB:               conf.FSBCapable(),
			Supports64Bit:             conf.Size64(),
			SupportsPeriodic:          conf.PeriodicCapable(),
			Mode:                      IOAPICMode.String(),
			IOAPICInterrupt:           conf.IOAPICRoute(),
			InterruptEnabled:          conf.InterruptEnabled(),
			Periodic:                  conf.Periodic(),
			Trigger:                   conf.TriggerMode().String(),
			Comparator:                t.Comparator(),
		}
		if conf.FSBEnabled() {
			route := t.FSBRoute()
			ts.Mode = FSBMode.String()
			ts.FSBAddress = route.Address()
			ts.FSBValue = route.Value()
		}
		s.Timers = append(s.Timers, ts)
	}
	return s
}

// LogValue implements slog.LogValuer. It reads the general registers only.
func (c *Controller) LogValue() slog.Value {
	caps := c.Capabilities()
	return slog.GroupValue(
		slog.Any("vendor", caps.VendorID()),
		slog.Any("rev", caps.RevisionID()),
		slog.Any("periodFs", caps.CounterClockPeriod()),
		slog.Int("timers", caps.NumTimers()),
		slog.Bool("counter64", caps.CounterSize64()),
		slog.Bool("enabled", c.Enabled()),
		slog.Uint64("counter", c.MainCounterValue()),
	)
}

var (
	_ slog.LogValuer = (*Controller)(nil)
)
