// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-daq/accel/ctl/internal/regs"
	"github.com/go-daq/accel/internal/mmap"
	"golang.org/x/sys/unix"
)

// Device gives access to the control block of a memory-mapped
// accelerator: a 4KiB register window holding the control, status
// and DMA-configuration registers.
//
// A Device is exclusively owned by one control sequence at a time.
// Register accesses are single 32-bit little-endian loads and stores
// through the mapped window, performed in program order.
type Device struct {
	msg *log.Logger
	mem struct {
		fd  *os.File
		win *mmap.Handle
	}

	base int64
	span int

	err  error
	xbuf [4]byte

	regs struct {
		ctrl    reg32
		status  reg32
		dmaAddr reg32
		dmaLen  reg32
	}

	cnt struct {
		reads  int
		writes int
	}
}

// openFile is swapped out in tests.
var openFile = os.OpenFile

// Open maps the accelerator register window from the provided device
// memory file (typically /dev/mem) and binds the register accessors.
//
// The mapping is released by Close, on every exit path: if Open fails
// after a partial setup, whatever was acquired is released before the
// error is returned.
func Open(devmem string, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	mem, err := openFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("ctl: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	dev := &Device{
		msg:  cfg.msg,
		base: cfg.base,
		span: cfg.span,
	}
	dev.mem.fd = mem

	err = dev.mmapWindow()
	if err != nil {
		return nil, fmt.Errorf("ctl: could not map register window: %w", err)
	}

	return dev, nil
}

func (dev *Device) mmapWindow() error {
	data, err := unix.Mmap(
		int(dev.mem.fd.Fd()),
		dev.base, dev.span,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return fmt.Errorf("ctl: could not mmap [0x%x, 0x%x): %w",
			dev.base, dev.base+int64(dev.span), err,
		)
	}
	if data == nil || len(data) != dev.span {
		return fmt.Errorf("ctl: invalid mmap'd data: %d", len(data))
	}
	dev.mem.win = mmap.HandleFrom(data)

	dev.bind(dev.mem.win)
	return nil
}

func (dev *Device) bind(win rwer) {
	dev.regs.ctrl = newReg32(dev, win, regs.ACCEL_CTRL)
	dev.regs.status = newReg32(dev, win, regs.ACCEL_STATUS)
	dev.regs.dmaAddr = newReg32(dev, win, regs.DMA_ADDR)
	dev.regs.dmaLen = newReg32(dev, win, regs.DMA_LEN)
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	dev.cnt.reads++
	_, dev.err = r.ReadAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("ctl: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.xbuf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	dev.cnt.writes++
	binary.LittleEndian.PutUint32(dev.xbuf[:4], v)
	_, dev.err = w.WriteAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("ctl: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

// WriteCtrl writes v to the control register.
func (dev *Device) WriteCtrl(v uint32) { dev.regs.ctrl.w(v) }

// ReadCtrl reads back the control register.
func (dev *Device) ReadCtrl() uint32 { return dev.regs.ctrl.r() }

// ReadStatus reads the status register.
func (dev *Device) ReadStatus() uint32 { return dev.regs.status.r() }

// WriteDMA configures the DMA address and length registers, in that
// order. Values are passed through verbatim: validating them is the
// caller's responsibility.
func (dev *Device) WriteDMA(addr, n uint32) {
	dev.regs.dmaAddr.w(addr)
	dev.regs.dmaLen.w(n)
}

// Err returns the first error encountered by a register access, if any.
// Once an access failed, subsequent accesses are no-ops.
func (dev *Device) Err() error { return dev.err }

// Close releases the register window mapping and the underlying device
// memory file. Close is idempotent and must be called on every exit
// path, including after a sequence failed mid-protocol.
func (dev *Device) Close() error {
	if dev.mem.fd == nil {
		return nil
	}

	var (
		errWin = dev.mem.win.Close()
		errMem = dev.mem.fd.Close()
	)

	dev.mem.fd = nil
	dev.mem.win = nil

	if errMem != nil {
		return fmt.Errorf("ctl: could not close device mem file: %w", errMem)
	}

	if errWin != nil {
		return fmt.Errorf("ctl: could not close register window: %w", errWin)
	}

	return nil
}

// DumpRegisters writes a human-readable view of the whole register
// block to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	fmt.Fprintf(w, "ctrl=     0x%08x\n", dev.regs.ctrl.r())
	sts := dev.regs.status.r()
	fmt.Fprintf(w, "status=   0x%08x (done=%d busy=%d)\n",
		sts, bit32(sts, 0), bit32(sts, 1),
	)
	fmt.Fprintf(w, "dma.addr= 0x%08x\n", dev.regs.dmaAddr.r())
	fmt.Fprintf(w, "dma.len=  0x%08x\n", dev.regs.dmaLen.r())
	return dev.err
}

func bit32(v uint32, pos uint32) uint32 {
	return (v >> pos) & 1
}
