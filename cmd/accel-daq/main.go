// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command accel-daq starts a TDAQ server driving an accelerator
// device. Control sequence outcomes are published as JSON frames on
// the /telemetry output end-point.
package main // import "github.com/go-daq/accel/cmd/accel-daq"

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/go-daq/accel/ctl"
	"github.com/go-daq/accel/telemetry"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	cmd := flags.New()

	dev := accel{
		devmem: "/dev/mem",
		base:   0x40000000,
	}
	if len(cmd.Args) > 0 {
		dev.devmem = cmd.Args[0]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/telemetry", dev.telemetry)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type accel struct {
	devmem string
	base   int64

	dev *ctl.Device
	seq *ctl.Sequencer
	req ctl.Request

	daq  chan int
	data chan []byte
}

func (dev *accel) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	var args struct {
		DMAAddr    uint32 `json:"dma_addr"`
		DMALen     uint32 `json:"dma_len"`
		Polls      int    `json:"polls"`
		IntervalMS int64  `json:"interval_ms"`
		SettleMS   int64  `json:"settle_ms"`
	}
	if len(req.Body) > 0 {
		err := json.Unmarshal(req.Body, &args)
		if err != nil {
			ctx.Msg.Errorf("could not decode /config payload: %+v", err)
			return err
		}
		dev.req = ctl.Request{
			DMAAddr:  args.DMAAddr,
			DMALen:   args.DMALen,
			Polls:    args.Polls,
			Interval: time.Duration(args.IntervalMS) * time.Millisecond,
			Settle:   time.Duration(args.SettleMS) * time.Millisecond,
		}
	}
	return nil
}

func (dev *accel) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if dev.req == (ctl.Request{}) {
		dev.req = ctl.NewRequest()
	}

	d, err := ctl.Open(dev.devmem, ctl.WithBase(dev.base))
	if err != nil {
		ctx.Msg.Errorf("could not open device: %+v", err)
		return err
	}
	dev.dev = d
	dev.seq = ctl.NewSequencer(d)
	dev.daq = make(chan int)
	dev.data = make(chan []byte, 1024)
	return nil
}

func (dev *accel) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if dev.dev == nil {
		return nil
	}
	dev.dev.WriteCtrl(ctl.CtrlReset)
	dev.dev.WriteCtrl(0)
	return dev.dev.Err()
}

func (dev *accel) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	select {
	case dev.daq <- 1:
	default:
	}
	return nil
}

func (dev *accel) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	select {
	case dev.daq <- 0:
	default:
	}
	return nil
}

func (dev *accel) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.dev == nil {
		return nil
	}
	return dev.dev.Close()
}

func (dev *accel) telemetry(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *accel) run(ctx tdaq.Context) error {
	daq := false
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case v := <-dev.daq:
			daq = v == 1
		default:
		}
		if !daq || dev.seq == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		out, err := dev.seq.Run(ctx.Ctx, dev.req)
		if err != nil {
			ctx.Msg.Errorf("could not run control sequence: %+v", err)
			daq = false
			continue
		}

		for _, evt := range telemetry.FromOutcome(out, telemetry.Labels{Backend: "accel"}) {
			raw, err := json.Marshal(evt)
			if err != nil {
				ctx.Msg.Errorf("could not encode telemetry event: %+v", err)
				continue
			}
			select {
			case dev.data <- raw:
			default:
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}
