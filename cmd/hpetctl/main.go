// Command hpetctl inspects and drives an HPET, either the machine's own
// (through /dev/mem) or an emulated one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"

	"github.com/tinyrange/hpet"
	"github.com/tinyrange/hpet/internal/acpi"
	"github.com/tinyrange/hpet/internal/devices/hpetdev"
	"github.com/tinyrange/hpet/internal/devmem"
)

const usage = `usage: hpetctl [flags] <command> [args]

commands:
  dump               print every register
  timers             print one line per timer
  enable             start the main counter
  disable            halt the main counter
  set-counter VALUE  write the main counter (device must be halted)
  calibrate [TIME]   measure the tick period against wall time (default 1s)

flags:
`

type options struct {
	addr    uint64
	table   string
	mem     string
	emulate bool
	profile string
	format  string
	verbose bool
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr, term.IsTerminal(int(os.Stdout.Fd())))
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpetctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, tty bool) error {
	fs := flag.NewFlagSet("hpetctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.Uint64Var(&opts.addr, "addr", 0, "physical base address of the HPET (default: from the ACPI table)")
	fs.StringVar(&opts.table, "acpi", acpi.SystemTablePath, "ACPI HPET table to read the base address from")
	fs.StringVar(&opts.mem, "mem", devmem.DefaultPath, "physical memory device")
	fs.BoolVar(&opts.emulate, "emulate", false, "use an emulated HPET instead of hardware")
	fs.StringVar(&opts.profile, "profile", "", "YAML device profile for -emulate")
	fs.StringVar(&opts.format, "format", "auto", "output format: auto, text or yaml")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	format := opts.format
	if format == "auto" {
		format = "yaml"
		if tty {
			format = "text"
		}
	}
	if format != "text" && format != "yaml" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	c, dev, closeFn, err := openController(opts, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	logger.Debug("opened HPET", "device", c)

	switch cmd := fs.Arg(0); cmd {
	case "dump":
		return writeSnapshot(stdout, format, c.Snapshot())
	case "timers":
		return writeTimers(stdout, format, c.Snapshot().Timers)
	case "enable", "disable":
		c.SetEnable(cmd == "enable")
		logger.Info("HPET "+cmd+"d", "counter", c.MainCounterValue())
		return nil
	case "set-counter":
		if fs.NArg() != 2 {
			return fmt.Errorf("set-counter takes one value")
		}
		val, err := strconv.ParseUint(fs.Arg(1), 0, 64)
		if err != nil {
			return fmt.Errorf("parse counter value: %w", err)
		}
		if err := c.SetMainCounterValue(val); err != nil {
			return fmt.Errorf("set counter: %w", err)
		}
		return nil
	case "calibrate":
		d := time.Second
		if fs.NArg() > 1 {
			if d, err = time.ParseDuration(fs.Arg(1)); err != nil {
				return fmt.Errorf("parse calibration time: %w", err)
			}
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if dev != nil {
			go dev.Run(ctx, time.Millisecond)
		}
		res, err := calibrate(ctx, c, d, stderr)
		if err != nil {
			return err
		}
		return writeCalibration(stdout, format, res)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openController also returns the emulated device when -emulate is set, so
// callers can drive its clock.
func openController(opts options, logger *slog.Logger) (*hpet.Controller, *hpetdev.Device, func(), error) {
	if opts.emulate {
		devOpts := hpetdev.DefaultOptions()
		if opts.profile != "" {
			var err error
			if devOpts, err = loadProfile(opts.profile); err != nil {
				return nil, nil, nil, err
			}
		}
		devOpts.Logger = logger
		dev, err := hpetdev.New(devOpts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create emulated HPET: %w", err)
		}
		c, err := hpet.NewFromRegion(dev)
		if err != nil {
			return nil, nil, nil, err
		}
		return c, dev, func() {}, nil
	}

	addr := opts.addr
	if addr == 0 {
		tbl, err := acpi.ReadSystemTable(opts.table)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("locate HPET (pass -addr to skip ACPI): %w", err)
		}
		logger.Debug("found HPET in ACPI", "address", fmt.Sprintf("%#x", tbl.Address), "number", tbl.Number)
		addr = tbl.Address
	}

	m, err := devmem.Map(opts.mem, addr, hpet.BlockSize)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := hpet.NewFromRegion(m)
	if err != nil {
		m.Close()
		return nil, nil, nil, err
	}
	if err := c.Capabilities().Validate(); err != nil {
		m.Close()
		return nil, nil, nil, fmt.Errorf("no HPET at %#x: %w", addr, err)
	}
	return c, nil, func() {
		if err := m.Close(); err != nil {
			logger.Warn("unmap HPET", "error", err)
		}
	}, nil
}
