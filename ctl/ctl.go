// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctl drives the control plane of a memory-mapped accelerator.
//
// A Device maps the accelerator register window (control, status and
// DMA-configuration registers) and a Sequencer runs the device protocol
// over it: reset, configure DMA, start, then poll the status register
// until the operation completes or a bounded timeout budget is
// exhausted. A timeout is a valid outcome, not an error: only I/O
// failures on the register window fail a run.
package ctl // import "github.com/go-daq/accel/ctl"

import "github.com/go-daq/accel/ctl/internal/regs"

// Control and status register bits.
const (
	CtrlStart = regs.CTRL_START
	CtrlReset = regs.CTRL_RESET

	StatusDone = regs.STATUS_DONE
	StatusBusy = regs.STATUS_BUSY
)
