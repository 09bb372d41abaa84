// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "fmt"

// Normalize fills in defaults for omitted fields. It may mutate the
// configuration and must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		if dev.Name == "" {
			dev.Name = fmt.Sprintf("accel%d", i)
		}
	}

	if cfg.Run.DMAAddr == 0 {
		cfg.Run.DMAAddr = 0x80000000
	}
	if cfg.Run.DMALen == 0 {
		cfg.Run.DMALen = 1024
	}
	if cfg.Run.Polls == 0 {
		cfg.Run.Polls = 1000
	}
	if cfg.Run.IntervalMS == 0 {
		cfg.Run.IntervalMS = 1
	}
	if cfg.Run.SettleMS == 0 {
		cfg.Run.SettleMS = 1
	}

	if cfg.Output.Telemetry == "" {
		cfg.Output.Telemetry = "telemetry.jsonl"
	}
}
