// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command accel-sh provides an interactive shell to poke at an
// accelerator device:
//
//	accel> dump
//	accel> ctrl 0x2
//	accel> status
//	accel> run 100 2ms
//	accel> quit
package main // import "github.com/go-daq/accel/cmd/accel-sh"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-daq/accel/ctl"
	"github.com/peterh/liner"
)

func main() {
	var (
		devmem = flag.String("dev-mem", "/dev/mem", "path to the memory device")
		base   = flag.Int64("base", 0x40000000, "base address of the register window")
	)

	log.SetPrefix("accel-sh: ")
	log.SetFlags(0)

	flag.Parse()

	dev, err := ctl.Open(*devmem, ctl.WithBase(*base))
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	err = repl(dev, os.Stdout)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func repl(dev *ctl.Device, w io.Writer) error {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	for {
		line, err := term.Prompt("accel> ")
		switch {
		case err == nil:
			// ok
		case err == liner.ErrPromptAborted, err == io.EOF:
			fmt.Fprintf(w, "\n")
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		if line == "quit" || line == "exit" {
			return nil
		}

		err = eval(dev, w, line)
		if err != nil {
			fmt.Fprintf(w, "error: %+v\n", err)
		}
	}
}

func eval(dev *ctl.Device, w io.Writer, line string) error {
	args := strings.Fields(line)
	switch args[0] {
	case "help":
		fmt.Fprintf(w, `commands:
  ctrl [v]         read (or write) the control register
  status           read the status register
  dma <addr> <len> configure the DMA window
  dump             dump all registers
  run [polls] [interval]
                   run a full control sequence
  quit             exit the shell
`)
		return nil

	case "ctrl":
		if len(args) > 1 {
			v, err := parseU32(args[1])
			if err != nil {
				return err
			}
			dev.WriteCtrl(v)
			return dev.Err()
		}
		fmt.Fprintf(w, "ctrl= 0x%08x\n", dev.ReadCtrl())
		return dev.Err()

	case "status":
		sts := dev.ReadStatus()
		if err := dev.Err(); err != nil {
			return err
		}
		fmt.Fprintf(w, "status= 0x%08x (done=%d busy=%d)\n",
			sts, sts&ctl.StatusDone, (sts&ctl.StatusBusy)>>1,
		)
		return nil

	case "dma":
		if len(args) != 3 {
			return fmt.Errorf("usage: dma <addr> <len>")
		}
		addr, err := parseU32(args[1])
		if err != nil {
			return err
		}
		n, err := parseU32(args[2])
		if err != nil {
			return err
		}
		dev.WriteDMA(addr, n)
		return dev.Err()

	case "dump":
		return dev.DumpRegisters(w)

	case "run":
		req := ctl.NewRequest()
		if len(args) > 1 {
			polls, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid polls count %q: %w", args[1], err)
			}
			req.Polls = polls
		}
		if len(args) > 2 {
			ival, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("invalid poll interval %q: %w", args[2], err)
			}
			req.Interval = ival
		}

		seq := ctl.NewSequencer(dev)
		out, err := seq.Run(context.Background(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v (status=0x%08x, polls=%d, elapsed=%v)\n",
			out.Status, out.Raw, out.Polls, out.Elapsed,
		)
		return nil

	default:
		return fmt.Errorf("unknown command %q (try \"help\")", args[0])
	}
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}
