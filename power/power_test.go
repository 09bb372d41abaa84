// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package power

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/go-daq/accel/telemetry"
)

type fakeBus struct {
	regs map[uint8]uint16 // big-endian register values
	ws   []string
	err  error
}

func (bus *fakeBus) ReadWord(addr, reg uint8) (uint16, error) {
	if bus.err != nil {
		return 0, bus.err
	}
	return swap(bus.regs[reg]), nil
}

func (bus *fakeBus) WriteWord(addr, reg uint8, v uint16) error {
	if bus.err != nil {
		return bus.err
	}
	bus.regs[reg] = swap(v)
	bus.ws = append(bus.ws, fmt.Sprintf("0x%02x:0x%04x", reg, swap(v)))
	return nil
}

func (bus *fakeBus) Close() error { return nil }

func TestMonitor(t *testing.T) {
	bus := &fakeBus{regs: make(map[uint8]uint16)}

	// 0.1 Ohm shunt, 3.2768 A full scale: ilsb = 100 uA, cal = 512.
	mon, err := newMonitor(bus, 0x40, Config{Shunt: 0.1, MaxCurrent: 3.2768})
	if err != nil {
		t.Fatalf("could not create monitor: %+v", err)
	}
	defer mon.Close()

	if got, want := bus.ws, []string{"0x05:0x0200"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid calibration writes: got=%v, want=%v", got, want)
	}

	bus.regs[regBus] = 960      // 1.2 V
	bus.regs[regShunt] = 4000   // 10 mV
	bus.regs[regCurrent] = 1000 // 100 mA
	bus.regs[regPower] = 48     // 120 mW

	o, err := mon.Read()
	if err != nil {
		t.Fatalf("could not read monitor: %+v", err)
	}

	const eps = 1e-9
	if got, want := o.Bus, 1.2; math.Abs(got-want) > eps {
		t.Fatalf("invalid bus voltage: got=%v, want=%v", got, want)
	}
	if got, want := o.Shunt, 0.01; math.Abs(got-want) > eps {
		t.Fatalf("invalid shunt voltage: got=%v, want=%v", got, want)
	}
	if got, want := o.Current, 0.1; math.Abs(got-want) > eps {
		t.Fatalf("invalid current: got=%v, want=%v", got, want)
	}
	if got, want := o.Power, 0.12; math.Abs(got-want) > eps {
		t.Fatalf("invalid power: got=%v, want=%v", got, want)
	}
}

func TestMonitorNegativeCurrent(t *testing.T) {
	bus := &fakeBus{regs: make(map[uint8]uint16)}

	mon, err := newMonitor(bus, 0x40, Config{Shunt: 0.1, MaxCurrent: 3.2768})
	if err != nil {
		t.Fatalf("could not create monitor: %+v", err)
	}
	defer mon.Close()

	bus.regs[regCurrent] = 0xFC18 // -1000: -100 mA
	o, err := mon.Read()
	if err != nil {
		t.Fatalf("could not read monitor: %+v", err)
	}
	if got, want := o.Current, -0.1; math.Abs(got-want) > 1e-9 {
		t.Fatalf("invalid current: got=%v, want=%v", got, want)
	}
}

func TestEvents(t *testing.T) {
	bus := &fakeBus{regs: make(map[uint8]uint16)}

	mon, err := newMonitor(bus, 0x40, Config{Shunt: 0.1, MaxCurrent: 3.2768})
	if err != nil {
		t.Fatalf("could not create monitor: %+v", err)
	}
	defer mon.Close()

	bus.regs[regBus] = 960
	bus.regs[regCurrent] = 1000
	bus.regs[regPower] = 48

	labels := telemetry.Labels{Graph: "mnist", Backend: "accel"}
	evts, err := mon.Events(labels)
	if err != nil {
		t.Fatalf("could not derive events: %+v", err)
	}
	if got, want := len(evts), 3; got != want {
		t.Fatalf("invalid number of events: got=%d, want=%d", got, want)
	}
	for i, want := range []string{"power.bus_v", "power.current_a", "power.watts"} {
		if got := evts[i].Metric; got != want {
			t.Fatalf("invalid metric %d: got=%q, want=%q", i, got, want)
		}
		if got, want := evts[i].Labels, labels; got != want {
			t.Fatalf("invalid labels %d: got=%#v, want=%#v", i, got, want)
		}
	}
}

func TestMonitorConfigError(t *testing.T) {
	bus := &fakeBus{regs: make(map[uint8]uint16)}

	for _, cfg := range []Config{
		{Shunt: 0, MaxCurrent: 1},
		{Shunt: 0.1, MaxCurrent: 0},
		{Shunt: -0.1, MaxCurrent: 1},
	} {
		_, err := newMonitor(bus, 0x40, cfg)
		if err == nil {
			t.Fatalf("expected an error for config %#v", cfg)
		}
	}

	bus.err = fmt.Errorf("boom")
	_, err := newMonitor(bus, 0x40, Config{Shunt: 0.1, MaxCurrent: 3.2768})
	if err == nil {
		t.Fatalf("expected a calibration error")
	}

	mon := &Monitor{bus: bus, addr: 0x40, ilsb: 1e-4}
	_, err = mon.Read()
	if err == nil {
		t.Fatalf("expected a read error")
	}
	_, err = mon.Events(telemetry.Labels{})
	if err == nil {
		t.Fatalf("expected an events error")
	}
}
