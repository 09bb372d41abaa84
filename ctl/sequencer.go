// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-daq/accel/ctl/internal/regs"
)

// Request holds the parameters of one device operation.
// A Request is immutable once passed to Run.
type Request struct {
	DMAAddr uint32 // DMA target address
	DMALen  uint32 // DMA transfer length, in bytes

	Polls    int           // timeout budget, as a number of status polls
	Interval time.Duration // pause between two status polls
	Settle   time.Duration // hold time of the reset strobe
}

// NewRequest returns a Request with the reference defaults:
// 1000 polls of 1ms each (a 1 second budget), a 1ms reset settle
// delay and the reference DMA window.
func NewRequest() Request {
	return Request{
		DMAAddr:  0x80000000,
		DMALen:   1024,
		Polls:    1000,
		Interval: 1 * time.Millisecond,
		Settle:   1 * time.Millisecond,
	}
}

func (req Request) withDefaults() Request {
	def := NewRequest()
	if req.Polls < 1 {
		req.Polls = def.Polls
	}
	if req.Interval <= 0 {
		req.Interval = def.Interval
	}
	// the settle delay is part of the device protocol. it can be
	// tuned but not skipped.
	if req.Settle <= 0 {
		req.Settle = def.Settle
	}
	return req
}

// Status is the terminal state of a control sequence.
type Status uint8

const (
	// Completed means the device observed DONE within the timeout budget.
	Completed Status = iota
	// TimedOut means the timeout budget was exhausted before DONE.
	// It carries diagnostic value, not an error.
	TimedOut
)

func (sts Status) String() string {
	switch sts {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("Status(%d)", uint8(sts))
	}
}

// Outcome is the result of one control sequence.
type Outcome struct {
	Status  Status        // terminal state
	Raw     uint32        // final raw value of the status register
	Polls   int           // number of status reads performed
	Reads   int           // total register reads during the sequence
	Writes  int           // total register writes during the sequence
	Elapsed time.Duration // wall-clock duration of the sequence
}

// Done reports whether the DONE bit is set in the final status word.
func (o Outcome) Done() bool { return o.Raw&regs.STATUS_DONE != 0 }

// Busy reports whether the BUSY bit is set in the final status word.
// BUSY is informational only: completion is signalled by DONE alone.
func (o Outcome) Busy() bool { return o.Raw&regs.STATUS_BUSY != 0 }

type seqState uint8

const (
	seqIdle seqState = iota
	seqResetting
	seqConfiguring
	seqStarting
	seqPolling
	seqCompleted
	seqTimedOut
	seqFailed
)

func (st seqState) String() string {
	names := [...]string{
		seqIdle:        "idle",
		seqResetting:   "resetting",
		seqConfiguring: "configuring",
		seqStarting:    "starting",
		seqPolling:     "polling",
		seqCompleted:   "completed",
		seqTimedOut:    "timed-out",
		seqFailed:      "failed",
	}
	if int(st) < len(names) {
		return names[st]
	}
	return fmt.Sprintf("seqState(%d)", uint8(st))
}

// Sequencer runs the accelerator protocol over a Device:
// reset, configure, start, poll until done or timeout.
//
// A Sequencer drives exactly one device and runs one sequence at a
// time, synchronously. It never retries on its own.
type Sequencer struct {
	dev   *Device
	state seqState

	sleep func(time.Duration) // hook for tests
}

// NewSequencer returns a Sequencer driving dev.
func NewSequencer(dev *Device) *Sequencer {
	return &Sequencer{
		dev:   dev,
		state: seqIdle,
		sleep: time.Sleep,
	}
}

// Run executes one control sequence and returns its outcome.
//
// A timeout is reported through the outcome, with a nil error.
// Run returns a non-nil error only when a register access failed or
// when ctx was cancelled; ctx is checked once per poll iteration.
func (seq *Sequencer) Run(ctx context.Context, req Request) (Outcome, error) {
	if seq.dev == nil {
		return Outcome{}, fmt.Errorf("ctl: no device bound to sequencer")
	}
	req = req.withDefaults()

	var (
		dev    = seq.dev
		beg    = time.Now()
		reads  = dev.cnt.reads
		writes = dev.cnt.writes
	)

	// reset strobe. the strobe must be held for the whole settle
	// delay before it is cleared.
	seq.state = seqResetting
	dev.WriteCtrl(regs.CTRL_RESET)
	seq.sleep(req.Settle)
	dev.WriteCtrl(0)

	seq.state = seqConfiguring
	dev.WriteDMA(req.DMAAddr, req.DMALen)

	// single strobe: START is not cleared by the sequencer, the
	// device reads it back as part of its status.
	seq.state = seqStarting
	dev.WriteCtrl(regs.CTRL_START)

	if err := dev.Err(); err != nil {
		seq.state = seqFailed
		return Outcome{}, fmt.Errorf("ctl: could not start operation: %w", err)
	}

	seq.state = seqPolling
	var (
		sts  uint32
		done bool
		n    int
	)
poll:
	for n < req.Polls {
		select {
		case <-ctx.Done():
			seq.state = seqFailed
			return Outcome{}, fmt.Errorf("ctl: control sequence interrupted: %w", ctx.Err())
		default:
		}

		sts = dev.ReadStatus()
		n++
		if dev.Err() != nil {
			break poll
		}
		if sts&regs.STATUS_DONE != 0 {
			done = true
			break poll
		}
		seq.sleep(req.Interval)
	}

	if err := dev.Err(); err != nil {
		seq.state = seqFailed
		return Outcome{}, fmt.Errorf("ctl: could not poll status: %w", err)
	}

	// the last poll doubles as the final status read: its raw value
	// (DONE, BUSY and friends) is reported as-is.
	out := Outcome{
		Raw:     sts,
		Polls:   n,
		Reads:   dev.cnt.reads - reads,
		Writes:  dev.cnt.writes - writes,
		Elapsed: time.Since(beg),
	}
	switch {
	case done:
		seq.state = seqCompleted
		out.Status = Completed
	default:
		seq.state = seqTimedOut
		out.Status = TimedOut
	}

	dev.msg.Printf(
		"run: %v (status=0x%08x, polls=%d, elapsed=%v)",
		out.Status, out.Raw, out.Polls, out.Elapsed,
	)
	return out, nil
}
