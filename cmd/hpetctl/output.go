package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/hpet"
	"github.com/tinyrange/hpet/internal/devices/hpetdev"
)

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func writeSnapshot(w io.Writer, format string, s hpet.Snapshot) error {
	if format == "yaml" {
		return writeYAML(w, s)
	}
	fmt.Fprintf(w, "vendor      %#04x rev %#02x\n", s.VendorID, s.RevisionID)
	fmt.Fprintf(w, "period      %d fs\n", s.TickPeriodFs)
	fmt.Fprintf(w, "counter     %#x (64-bit: %t)\n", s.MainCounter, s.Supports64Bit)
	fmt.Fprintf(w, "enabled     %t\n", s.Enabled)
	fmt.Fprintf(w, "legacy      %t (capable: %t)\n", s.LegacyReplacementEnabled, s.LegacyReplacementCapable)
	fmt.Fprintf(w, "int status  %#x\n", s.InterruptStatus)
	return writeTimers(w, format, s.Timers)
}

func writeTimers(w io.Writer, format string, timers []hpet.TimerSnapshot) error {
	if format == "yaml" {
		return writeYAML(w, timers)
	}
	for _, t := range timers {
		route := fmt.Sprintf("irq %d", t.IOAPICInterrupt)
		if t.Mode == hpet.FSBMode.String() {
			route = fmt.Sprintf("msg %#08x <- %#x", t.FSBAddress, t.FSBValue)
		}
		fmt.Fprintf(w, "timer %-2d  %-6s %-24s int=%-5t periodic=%-5t %-5s cmp=%#x caps=[64:%t fsb:%t per:%t irqs:%#08x]\n",
			t.Index, t.Mode, route, t.InterruptEnabled, t.Periodic, t.Trigger, t.Comparator,
			t.Supports64Bit, t.SupportsFSB, t.SupportsPeriodic, t.SupportedIOAPICInterrupts)
	}
	return nil
}

// loadProfile reads an emulated device description. Fields left out keep
// their defaults.
func loadProfile(path string) (hpetdev.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hpetdev.Options{}, fmt.Errorf("read profile: %w", err)
	}
	opts := hpetdev.DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return hpetdev.Options{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return opts, nil
}
