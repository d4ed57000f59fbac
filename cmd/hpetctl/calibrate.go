package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/bits"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tinyrange/hpet"
)

const calibrateSteps = 20

// calibration compares the advertised tick period against wall time.
type calibration struct {
	AdvertisedPeriodFs uint32        `yaml:"advertisedPeriodFs"`
	MeasuredPeriodFs   uint64        `yaml:"measuredPeriodFs"`
	Ticks              uint64        `yaml:"ticks"`
	Elapsed            time.Duration `yaml:"elapsed"`
	DriftPPM           float64       `yaml:"driftPPM"`
}

// calibrate enables the counter if needed, samples it for d and restores the
// enable bit afterwards.
func calibrate(ctx context.Context, c *hpet.Controller, d time.Duration, progress io.Writer) (calibration, error) {
	if d <= 0 {
		return calibration{}, fmt.Errorf("calibration time must be positive, got %s", d)
	}
	wasEnabled := c.Enabled()
	if !wasEnabled {
		c.SetEnable(true)
		defer c.SetEnable(false)
	}

	bar := progressbar.NewOptions64(calibrateSteps,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("calibrating"),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	mask := ^uint64(0)
	if !c.Supports64Bit() {
		mask = 0xffffffff
	}

	step := d / calibrateSteps
	start := time.Now()
	first := c.MainCounterValue()
	var ticks uint64
	prev := first
	for range calibrateSteps {
		select {
		case <-ctx.Done():
			return calibration{}, ctx.Err()
		case <-time.After(step):
		}
		// Accumulate per step so a 32-bit counter may wrap between samples.
		cur := c.MainCounterValue()
		ticks += (cur - prev) & mask
		prev = cur
		bar.Add(1)
	}
	elapsed := time.Since(start)

	res := calibration{
		AdvertisedPeriodFs: c.TickPeriod(),
		Ticks:              ticks,
		Elapsed:            elapsed,
	}
	if ticks == 0 {
		return res, fmt.Errorf("main counter did not advance in %s", elapsed)
	}
	res.MeasuredPeriodFs = periodFs(elapsed, ticks)
	res.DriftPPM = (float64(c.Duration(ticks)) - float64(elapsed)) / float64(elapsed) * 1e6
	return res, nil
}

// periodFs is elapsed/ticks in femtoseconds, saturating at MaxUint64.
func periodFs(elapsed time.Duration, ticks uint64) uint64 {
	if elapsed <= 0 || ticks == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(elapsed), 1_000_000)
	if hi >= ticks {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, ticks)
	return q
}

func writeCalibration(w io.Writer, format string, res calibration) error {
	if format == "yaml" {
		return writeYAML(w, res)
	}
	fmt.Fprintf(w, "advertised  %d fs\n", res.AdvertisedPeriodFs)
	fmt.Fprintf(w, "measured    %d fs over %d ticks in %s\n", res.MeasuredPeriodFs, res.Ticks, res.Elapsed)
	fmt.Fprintf(w, "drift       %+.1f ppm\n", res.DriftPPM)
	return nil
}
