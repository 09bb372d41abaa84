// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the accelerator control block.
//
// The layout is a fixed hardware contract: four 32-bit registers inside
// a 4KiB window, shared with the reference device and its simulators.
package regs // import "github.com/go-daq/accel/ctl/internal/regs"

const (
	MMIO_BASE = 0x40000000 // default base address of the register window
	MMIO_SPAN = 0x1000     // size of the register window, in bytes

	ACCEL_CTRL   = 0x00 // control register
	ACCEL_STATUS = 0x04 // status register
	DMA_ADDR     = 0x08 // DMA address register
	DMA_LEN      = 0x0C // DMA length register

	// control register bits
	CTRL_START = 1 << 0
	CTRL_RESET = 1 << 1

	// status register bits
	STATUS_DONE = 1 << 0
	STATUS_BUSY = 1 << 1
)
