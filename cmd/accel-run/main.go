// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command accel-run drives one accelerator control sequence per
// configured device and records the telemetry of each run.
//
// A run that times out waiting for DONE is a regular outcome and
// exits with code 0. A run that fails (device error, context
// cancellation) exits with a non-zero code.
package main // import "github.com/go-daq/accel/cmd/accel-run"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-daq/accel/config"
	"github.com/go-daq/accel/ctl"
	"github.com/go-daq/accel/rundb"
	"github.com/go-daq/accel/telemetry"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		cfgFile = flag.String("cfg", "", "path to the YAML run configuration")

		devmem = flag.String("dev-mem", "/dev/mem", "path to the memory device")
		base   = flag.Int64("base", 0x40000000, "base address of the register window")

		dmaAddr = flag.Uint64("dma-addr", 0x80000000, "DMA buffer address (32 bits)")
		dmaLen  = flag.Uint64("dma-len", 1024, "DMA buffer length, in bytes (32 bits)")
		polls   = flag.Int("polls", 1000, "maximum number of status polls")
		ival    = flag.Duration("interval", 1*time.Millisecond, "poll interval (1ms granularity)")
		settle  = flag.Duration("settle", 1*time.Millisecond, "post-reset settle delay (1ms granularity)")

		oname = flag.String("o", "telemetry.jsonl", "path to the output telemetry file")
		graph = flag.String("graph", "", "graph label")
		bkend = flag.String("backend", "accel", "backend label")
	)

	flag.Parse()

	log.SetPrefix("accel-run: ")
	log.SetFlags(0)

	var cfg *config.Config
	switch {
	case *cfgFile != "":
		var err error
		cfg, err = config.Load(*cfgFile)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		if err := config.Validate(cfg); err != nil {
			log.Fatalf("%+v", err)
		}
		config.Normalize(cfg)
	default:
		addr, err := flagU32("dma-addr", *dmaAddr)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		size, err := flagU32("dma-len", *dmaLen)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		ivalMS, err := flagMS("interval", *ival)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		settleMS, err := flagMS("settle", *settle)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		cfg = &config.Config{
			Devices: []config.Device{
				{Name: "accel0", DevMem: *devmem, Base: *base},
			},
			Run: config.Run{
				DMAAddr:    addr,
				DMALen:     size,
				Polls:      *polls,
				IntervalMS: ivalMS,
				SettleMS:   settleMS,
			},
			Labels: config.Labels{Graph: *graph, Backend: *bkend},
			Output: config.Output{Telemetry: *oname},
		}
	}

	err := run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// flagU32 rejects flag values that do not fit the 32-bit DMA registers.
func flagU32(name string, v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("invalid -%s value 0x%x: does not fit in 32 bits", name, v)
	}
	return uint32(v), nil
}

// flagMS rejects flag durations finer than the 1ms run granularity.
func flagMS(name string, d time.Duration) (int64, error) {
	if d != d.Truncate(time.Millisecond) {
		return 0, fmt.Errorf("invalid -%s value %v: finer than 1ms granularity", name, d)
	}
	return d.Milliseconds(), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	app, err := telemetry.NewAppender(cfg.Output.Telemetry)
	if err != nil {
		return fmt.Errorf("could not create telemetry appender: %w", err)
	}
	defer app.Close()

	var db *rundb.DB
	if cfg.Output.RunDB != "" {
		db, err = rundb.Open(cfg.Output.RunDB)
		if err != nil {
			return fmt.Errorf("could not open run db: %w", err)
		}
		defer db.Close()
	}

	labels := telemetry.Labels{
		Graph:     cfg.Labels.Graph,
		Backend:   cfg.Labels.Backend,
		ISA:       cfg.Labels.ISA,
		Simulator: cfg.Labels.Simulator,
	}

	req := ctl.Request{
		DMAAddr:  cfg.Run.DMAAddr,
		DMALen:   cfg.Run.DMALen,
		Polls:    cfg.Run.Polls,
		Interval: time.Duration(cfg.Run.IntervalMS) * time.Millisecond,
		Settle:   time.Duration(cfg.Run.SettleMS) * time.Millisecond,
	}

	var grp errgroup.Group
	for i := range cfg.Devices {
		dcfg := cfg.Devices[i]
		grp.Go(func() error {
			return runDevice(ctx, dcfg, req, labels, app, db)
		})
	}

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run control sequences: %w", err)
	}
	return nil
}

func runDevice(
	ctx context.Context,
	dcfg config.Device, req ctl.Request, labels telemetry.Labels,
	app *telemetry.Appender, db *rundb.DB,
) error {
	opts := []ctl.Option{
		ctl.WithBase(dcfg.Base),
		ctl.WithLogger(log.New(os.Stdout, dcfg.Name+": ", 0)),
	}
	if dcfg.Span > 0 {
		opts = append(opts, ctl.WithSpan(dcfg.Span))
	}

	dev, err := ctl.Open(dcfg.DevMem, opts...)
	if err != nil {
		return fmt.Errorf("could not open device %q: %w", dcfg.Name, err)
	}
	defer dev.Close()

	seq := ctl.NewSequencer(dev)
	out, err := seq.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("could not run device %q: %w", dcfg.Name, err)
	}

	for _, evt := range telemetry.FromOutcome(out, labels) {
		err = app.Append(evt)
		if err != nil {
			return fmt.Errorf("could not record telemetry for %q: %w", dcfg.Name, err)
		}
	}

	if db != nil {
		id, err := db.AddRun(ctx, rundb.Run{
			Device:    dcfg.Name,
			Graph:     labels.Graph,
			Status:    out.Status.String(),
			Raw:       out.Raw,
			Polls:     out.Polls,
			ElapsedNS: out.Elapsed.Nanoseconds(),
		})
		if err != nil {
			return fmt.Errorf("could not record run for %q: %w", dcfg.Name, err)
		}
		log.Printf("%s: recorded run id=%d", dcfg.Name, id)
	}

	return nil
}
