// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"log"
	"os"

	"github.com/go-daq/accel/ctl/internal/regs"
)

type config struct {
	msg  *log.Logger
	base int64
	span int
}

func newConfig() config {
	return config{
		msg:  log.New(os.Stdout, "ctl: ", 0),
		base: regs.MMIO_BASE,
		span: regs.MMIO_SPAN,
	}
}

// Option configures how a Device is opened.
type Option func(*config)

// WithBase sets the base address of the register window.
// The address must be page-aligned.
func WithBase(base int64) Option {
	return func(cfg *config) {
		cfg.base = base
	}
}

// WithSpan sets the size of the register window, in bytes.
func WithSpan(span int) Option {
	return func(cfg *config) {
		cfg.span = span
	}
}

// WithLogger sets the logger used by the device and its sequencer.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}
