// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-daq/accel/ctl/internal/regs"
)

// newFakeDevmem creates a file-backed stand-in for /dev/mem, large
// enough to map the register window at base.
func newFakeDevmem(t *testing.T, base int64) string {
	t.Helper()

	devmem, err := os.Create(filepath.Join(t.TempDir(), "dev.mem"))
	if err != nil {
		t.Fatalf("could not create fake dev-mem: %+v", err)
	}
	defer devmem.Close()

	_, err = devmem.WriteAt([]byte{1}, base+regs.MMIO_SPAN)
	if err != nil {
		t.Fatalf("could not write to dev-mem: %+v", err)
	}
	err = devmem.Close()
	if err != nil {
		t.Fatalf("could not close devmem: %+v", err)
	}

	return devmem.Name()
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()

	dev, err := Open(newFakeDevmem(t, 0), WithBase(0))
	if err != nil {
		t.Fatalf("could not create fake device: %+v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

// journal records register operations across all wrapped registers,
// in program order.
type journal struct {
	mu  sync.Mutex
	ops []string
}

func (jrn *journal) add(op string) {
	jrn.mu.Lock()
	defer jrn.mu.Unlock()
	jrn.ops = append(jrn.ops, op)
}

type fakeReg32 struct {
	name string
	cr   int
	cw   int

	rs []uint32 // scripted read values
	ws []uint32 // recorded written values
}

const dbg = false

func wrap(dev *Device, jrn *journal, reg *reg32, name string, rs []uint32) *fakeReg32 {
	mon := &fakeReg32{
		name: name,
		rs:   rs,
	}
	r := reg.r
	w := reg.w
	reg.r = func() uint32 {
		jrn.mu.Lock()
		cr := mon.cr
		mon.cr++
		jrn.mu.Unlock()

		v := r()
		vv := v
		ok := false
		if cr < len(mon.rs) {
			v = mon.rs[cr]
			ok = true
		}
		if dbg {
			dev.msg.Printf("%s: nr=%d, v=0x%x|0x%x", name, cr, v, vv)
		}
		if !ok {
			dev.msg.Printf("%s: nr=%d, v=0x%x|0x%x", name, cr, v, vv)
			panic("exhaust: " + name)
		}
		jrn.add(fmt.Sprintf("%s:r:0x%x", name, v))
		return v
	}
	reg.w = func(v uint32) {
		jrn.mu.Lock()
		mon.cw++
		mon.ws = append(mon.ws, v)
		jrn.mu.Unlock()
		jrn.add(fmt.Sprintf("%s:w:0x%x", name, v))
		if dbg {
			dev.msg.Printf("%s: nw=%d, v=0x%x", name, mon.cw-1, v)
		}
		w(v)
	}
	return mon
}
