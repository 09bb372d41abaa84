// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-daq/accel/ctl/internal/regs"
)

func TestRunCompleted(t *testing.T) {
	dev := newTestDevice(t)

	var jrn journal
	wrap(dev, &jrn, &dev.regs.ctrl, "ctrl", nil)
	wrap(dev, &jrn, &dev.regs.dmaAddr, "dma.addr", nil)
	wrap(dev, &jrn, &dev.regs.dmaLen, "dma.len", nil)

	// DONE on the 5th status read.
	sts := wrap(dev, &jrn, &dev.regs.status, "status", []uint32{
		0: regs.STATUS_BUSY,
		1: regs.STATUS_BUSY,
		2: regs.STATUS_BUSY,
		3: regs.STATUS_BUSY,
		4: regs.STATUS_DONE,
	})

	seq := NewSequencer(dev)
	seq.sleep = func(time.Duration) {}

	out, err := seq.Run(context.Background(), Request{
		DMAAddr:  0x80000000,
		DMALen:   1024,
		Polls:    1000,
		Interval: 1 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("could not run control sequence: %+v", err)
	}

	if got, want := out.Status, Completed; got != want {
		t.Fatalf("invalid status: got=%v, want=%v", got, want)
	}
	if got, want := out.Polls, 5; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
	if got, want := out.Raw, uint32(regs.STATUS_DONE); got != want {
		t.Fatalf("invalid raw status: got=0x%x, want=0x%x", got, want)
	}
	if !out.Done() || out.Busy() {
		t.Fatalf("invalid status bits: done=%v busy=%v", out.Done(), out.Busy())
	}
	if got, want := sts.cr, 5; got != want {
		t.Fatalf("invalid number of status reads: got=%d, want=%d", got, want)
	}
	if got, want := out.Writes, 5; got != want {
		t.Fatalf("invalid number of register writes: got=%d, want=%d", got, want)
	}

	// RESET is strobed and cleared before START, always.
	want := []string{
		"ctrl:w:0x2",
		"ctrl:w:0x0",
		"dma.addr:w:0x80000000",
		"dma.len:w:0x400",
		"ctrl:w:0x1",
		"status:r:0x2",
		"status:r:0x2",
		"status:r:0x2",
		"status:r:0x2",
		"status:r:0x1",
	}
	if got := jrn.ops; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid register sequence:\ngot= %v\nwant=%v", got, want)
	}
}

func TestRunTimedOut(t *testing.T) {
	dev := newTestDevice(t)

	var (
		jrn   journal
		polls = 10
	)
	wrap(dev, &jrn, &dev.regs.ctrl, "ctrl", nil)
	wrap(dev, &jrn, &dev.regs.dmaAddr, "dma.addr", nil)
	wrap(dev, &jrn, &dev.regs.dmaLen, "dma.len", nil)

	// the device never raises DONE. the script holds exactly one
	// value per allowed poll: one read too many would panic.
	script := make([]uint32, polls)
	for i := range script {
		script[i] = regs.STATUS_BUSY
	}
	sts := wrap(dev, &jrn, &dev.regs.status, "status", script)

	seq := NewSequencer(dev)
	seq.sleep = func(time.Duration) {}

	out, err := seq.Run(context.Background(), Request{
		Polls:    polls,
		Interval: 1 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("could not run control sequence: %+v", err)
	}

	if got, want := out.Status, TimedOut; got != want {
		t.Fatalf("invalid status: got=%v, want=%v", got, want)
	}
	if got, want := out.Polls, polls; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
	if got, want := sts.cr, polls; got != want {
		t.Fatalf("invalid number of status reads: got=%d, want=%d", got, want)
	}
	if got, want := out.Raw, uint32(regs.STATUS_BUSY); got != want {
		t.Fatalf("invalid raw status: got=0x%x, want=0x%x", got, want)
	}
	if out.Done() {
		t.Fatalf("DONE observed on a timed-out run")
	}
}

func TestRunElapsed(t *testing.T) {
	dev := newTestDevice(t)

	var (
		jrn      journal
		polls    = 10
		interval = 2 * time.Millisecond
	)
	wrap(dev, &jrn, &dev.regs.ctrl, "ctrl", nil)
	wrap(dev, &jrn, &dev.regs.dmaAddr, "dma.addr", nil)
	wrap(dev, &jrn, &dev.regs.dmaLen, "dma.len", nil)
	wrap(dev, &jrn, &dev.regs.status, "status", make([]uint32, polls))

	seq := NewSequencer(dev)

	out, err := seq.Run(context.Background(), Request{
		Polls:    polls,
		Interval: interval,
		Settle:   1 * time.Microsecond,
	})
	if err != nil {
		t.Fatalf("could not run control sequence: %+v", err)
	}

	if got, want := out.Status, TimedOut; got != want {
		t.Fatalf("invalid status: got=%v, want=%v", got, want)
	}
	if got, min := out.Elapsed, time.Duration(polls)*interval; got < min {
		t.Fatalf("invalid elapsed time: got=%v, want >= %v", got, min)
	}
	if got, max := out.Elapsed, 10*time.Second; got > max {
		t.Fatalf("invalid elapsed time: got=%v, want <= %v", got, max)
	}
}

func TestRunCanceled(t *testing.T) {
	dev := newTestDevice(t)

	seq := NewSequencer(dev)
	seq.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seq.Run(ctx, Request{Polls: 10})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, context.Canceled)
	}
	if got, want := seq.state, seqFailed; got != want {
		t.Fatalf("invalid sequencer state: got=%v, want=%v", got, want)
	}
}

func TestRunDeviceError(t *testing.T) {
	dev := newTestDevice(t)
	dev.bind(failRW{})

	seq := NewSequencer(dev)
	seq.sleep = func(time.Duration) {}

	_, err := seq.Run(context.Background(), Request{Polls: 10})
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
	if got, want := seq.state, seqFailed; got != want {
		t.Fatalf("invalid sequencer state: got=%v, want=%v", got, want)
	}
}

func TestRunNoDevice(t *testing.T) {
	var seq Sequencer
	_, err := seq.Run(context.Background(), NewRequest())
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
}

func TestRequestDefaults(t *testing.T) {
	def := NewRequest()
	for _, tc := range []struct {
		name string
		req  Request
		want Request
	}{
		{
			name: "zero-value",
			req:  Request{},
			want: Request{
				Polls:    def.Polls,
				Interval: def.Interval,
				Settle:   def.Settle,
			},
		},
		{
			name: "settle-not-skippable",
			req: Request{
				Polls:    10,
				Interval: 1 * time.Millisecond,
				Settle:   -1 * time.Millisecond,
			},
			want: Request{
				Polls:    10,
				Interval: 1 * time.Millisecond,
				Settle:   def.Settle,
			},
		},
		{
			name: "explicit",
			req: Request{
				DMAAddr:  0x1000,
				DMALen:   64,
				Polls:    42,
				Interval: 5 * time.Millisecond,
				Settle:   2 * time.Millisecond,
			},
			want: Request{
				DMAAddr:  0x1000,
				DMALen:   64,
				Polls:    42,
				Interval: 5 * time.Millisecond,
				Settle:   2 * time.Millisecond,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := tc.req.withDefaults(), tc.want; got != want {
				t.Fatalf("invalid request:\ngot= %#v\nwant=%#v", got, want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	for _, tc := range []struct {
		sts  Status
		want string
	}{
		{Completed, "completed"},
		{TimedOut, "timed-out"},
		{Status(42), "Status(42)"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got, want := tc.sts.String(), tc.want; got != want {
				t.Fatalf("invalid status string: got=%q, want=%q", got, want)
			}
		})
	}
}

type failRW struct{}

func (failRW) ReadAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("reg: read failure at 0x%x", off)
}

func (failRW) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("reg: write failure at 0x%x", off)
}
