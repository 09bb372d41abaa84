// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "fmt"

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate the
// configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("config: no devices defined")
	}

	names := make(map[string]int, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if dev.DevMem == "" {
			return fmt.Errorf("config: device %d: missing devmem path", i)
		}
		if dev.Base < 0 {
			return fmt.Errorf("config: device %d: invalid base address %d", i, dev.Base)
		}
		if dev.Span < 0 {
			return fmt.Errorf("config: device %d: invalid window span %d", i, dev.Span)
		}
		if dev.Name != "" {
			if prev, dup := names[dev.Name]; dup {
				return fmt.Errorf(
					"config: duplicate device name %q (devices %d and %d)",
					dev.Name, prev, i,
				)
			}
			names[dev.Name] = i
		}
	}

	if cfg.Run.Polls < 0 {
		return fmt.Errorf("config: invalid polls count %d", cfg.Run.Polls)
	}
	if cfg.Run.IntervalMS < 0 {
		return fmt.Errorf("config: invalid poll interval %dms", cfg.Run.IntervalMS)
	}
	if cfg.Run.SettleMS < 0 {
		return fmt.Errorf("config: invalid settle delay %dms", cfg.Run.SettleMS)
	}

	return nil
}
