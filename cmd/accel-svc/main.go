// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command accel-svc exposes an accelerator device as a TCP control
// service.
package main // import "github.com/go-daq/accel/cmd/accel-svc"

import (
	"flag"
	"log"

	"github.com/go-daq/accel/ctl"
)

func main() {
	var (
		addr = flag.String("addr", ":9999", "[ip]:port to listen on")

		devmem = flag.String("dev-mem", "/dev/mem", "path to the memory device")
		base   = flag.Int64("base", 0x40000000, "base address of the register window")
	)

	log.SetPrefix("accel-svc: ")
	log.SetFlags(0)

	flag.Parse()

	err := ctl.Serve(*addr, *devmem, ctl.WithBase(*base))
	if err != nil {
		log.Fatalf("could not create control service: %+v", err)
	}
}
