// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package power reads the accelerator board power monitor, an
// INA226-style current/voltage sensor on the SMBus.
package power // import "github.com/go-daq/accel/power"

import (
	"fmt"

	"github.com/go-daq/accel/telemetry"
	"github.com/go-daq/smbus"
)

// INA226 register map. Registers are 16b, big-endian.
const (
	regConfig  = 0x00
	regShunt   = 0x01
	regBus     = 0x02
	regPower   = 0x03
	regCurrent = 0x04
	regCalib   = 0x05
)

const (
	busLSB   = 1.25e-3 // V
	shuntLSB = 2.5e-6  // V
)

type wordBus interface {
	ReadWord(addr, reg uint8) (uint16, error)
	WriteWord(addr, reg uint8, v uint16) error
	Close() error
}

// Config describes the sense circuit of the power monitor.
type Config struct {
	Shunt      float64 // shunt resistance, in Ohms
	MaxCurrent float64 // expected maximum current, in Amps
}

// Monitor is a power monitor on the SMBus.
type Monitor struct {
	bus  wordBus
	addr uint8

	ilsb float64 // current LSB, in Amps
}

// Open opens the power monitor at addr on the given SMBus and
// calibrates it for the sense circuit cfg describes.
func Open(bus, addr int, cfg Config) (*Monitor, error) {
	conn, err := smbus.Open(bus, uint8(addr))
	if err != nil {
		return nil, fmt.Errorf("power: could not open smbus %d: %w", bus, err)
	}

	mon, err := newMonitor(conn, uint8(addr), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return mon, nil
}

func newMonitor(bus wordBus, addr uint8, cfg Config) (*Monitor, error) {
	if cfg.Shunt <= 0 {
		return nil, fmt.Errorf("power: invalid shunt resistance %v", cfg.Shunt)
	}
	if cfg.MaxCurrent <= 0 {
		return nil, fmt.Errorf("power: invalid max current %v", cfg.MaxCurrent)
	}

	mon := &Monitor{
		bus:  bus,
		addr: addr,
		ilsb: cfg.MaxCurrent / (1 << 15),
	}

	cal := uint16(0.00512 / (mon.ilsb * cfg.Shunt))
	err := mon.writeReg(regCalib, cal)
	if err != nil {
		return nil, fmt.Errorf("power: could not calibrate monitor: %w", err)
	}

	return mon, nil
}

// Reading is one sample of the power monitor.
type Reading struct {
	Bus     float64 // bus voltage, in Volts
	Shunt   float64 // shunt voltage, in Volts
	Current float64 // in Amps
	Power   float64 // in Watts
}

// Read samples the power monitor.
func (mon *Monitor) Read() (Reading, error) {
	var o Reading

	bus, err := mon.readReg(regBus)
	if err != nil {
		return o, fmt.Errorf("power: could not read bus voltage: %w", err)
	}
	o.Bus = float64(bus) * busLSB

	shunt, err := mon.readReg(regShunt)
	if err != nil {
		return o, fmt.Errorf("power: could not read shunt voltage: %w", err)
	}
	o.Shunt = float64(int16(shunt)) * shuntLSB

	cur, err := mon.readReg(regCurrent)
	if err != nil {
		return o, fmt.Errorf("power: could not read current: %w", err)
	}
	o.Current = float64(int16(cur)) * mon.ilsb

	pow, err := mon.readReg(regPower)
	if err != nil {
		return o, fmt.Errorf("power: could not read power: %w", err)
	}
	o.Power = float64(pow) * 25 * mon.ilsb

	return o, nil
}

// Events samples the power monitor and derives telemetry events.
func (mon *Monitor) Events(labels telemetry.Labels) ([]telemetry.Event, error) {
	o, err := mon.Read()
	if err != nil {
		return nil, err
	}
	return []telemetry.Event{
		{Metric: "power.bus_v", Value: o.Bus, Labels: labels},
		{Metric: "power.current_a", Value: o.Current, Labels: labels},
		{Metric: "power.watts", Value: o.Power, Labels: labels},
	}, nil
}

// Close releases the SMBus connection.
func (mon *Monitor) Close() error {
	return mon.bus.Close()
}

// the sensor stores registers big-endian, the SMBus transfers words
// little-endian.
func (mon *Monitor) readReg(reg uint8) (uint16, error) {
	v, err := mon.bus.ReadWord(mon.addr, reg)
	if err != nil {
		return 0, err
	}
	return swap(v), nil
}

func (mon *Monitor) writeReg(reg uint8, v uint16) error {
	return mon.bus.WriteWord(mon.addr, reg, swap(v))
}

func swap(v uint16) uint16 {
	return v<<8 | v>>8
}
