// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config describes an accelerator run: the devices to drive,
// the control sequence parameters, the workload labels and the output
// sinks. Configurations are YAML files:
//
//	devices:
//	  - name: accel0
//	    devmem: /dev/mem
//	    base: 0x40000000
//	run:
//	  dma_addr: 0x80000000
//	  dma_len: 1024
//	  polls: 1000
//	  interval_ms: 1
//	  settle_ms: 1
//	labels:
//	  graph: mnist
//	  backend: accel
//	output:
//	  telemetry: telemetry.jsonl
package config // import "github.com/go-daq/accel/config"

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level run configuration.
type Config struct {
	Devices []Device `yaml:"devices"`
	Run     Run      `yaml:"run"`
	Labels  Labels   `yaml:"labels"`
	Output  Output   `yaml:"output"`
}

// Device locates one accelerator register window.
type Device struct {
	Name   string `yaml:"name"`
	DevMem string `yaml:"devmem"`
	Base   int64  `yaml:"base"`
	Span   int    `yaml:"span"`
}

// Run holds the control sequence parameters.
type Run struct {
	DMAAddr    uint32 `yaml:"dma_addr"`
	DMALen     uint32 `yaml:"dma_len"`
	Polls      int    `yaml:"polls"`
	IntervalMS int64  `yaml:"interval_ms"`
	SettleMS   int64  `yaml:"settle_ms"`
}

// Labels identifies the workload.
type Labels struct {
	Graph     string `yaml:"graph"`
	Backend   string `yaml:"backend"`
	ISA       string `yaml:"isa"`
	Simulator string `yaml:"simulator"`
}

// Output names the run's output sinks.
type Output struct {
	Telemetry string `yaml:"telemetry"`
	RunDB     string `yaml:"rundb"`
}

// Load reads and decodes the YAML configuration at fname.
// Load performs no validation nor normalization.
func Load(fname string) (*Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %q: %w", fname, err)
	}

	var cfg Config
	err = yaml.Unmarshal(raw, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: could not decode %q: %w", fname, err)
	}
	return &cfg, nil
}
