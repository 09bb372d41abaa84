// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"encoding/json"
	"net"
	"os"
	"testing"
)

func TestServe(t *testing.T) {
	devmem := newFakeDevmem(t, 0)

	srv, err := newServer(":0", devmem, WithBase(0))
	if err != nil {
		t.Fatalf("could not create control server: %+v", err)
	}
	defer srv.close()

	go func() { _ = srv.serve() }()

	conn, err := net.Dial("tcp", srv.ctl.Addr().String())
	if err != nil {
		t.Fatalf("could not dial control server: %+v", err)
	}
	defer conn.Close()

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	send := func(name string, args interface{}) srvReply {
		t.Helper()
		req := struct {
			Name string      `json:"name"`
			Args interface{} `json:"args,omitempty"`
		}{name, args}
		err := enc.Encode(req)
		if err != nil {
			t.Fatalf("could not send %q request: %+v", name, err)
		}
		var rep srvReply
		err = dec.Decode(&rep)
		if err != nil {
			t.Fatalf("could not decode %q reply: %+v", name, err)
		}
		return rep
	}

	rep := send("configure", srvConfigure{
		DMAAddr:    0x80000000,
		DMALen:     1024,
		Polls:      3,
		IntervalMS: 1,
		SettleMS:   1,
	})
	if got, want := rep.Msg, "ok"; got != want {
		t.Fatalf("invalid configure reply: got=%q, want=%q", got, want)
	}

	// the fake device never raises DONE: a run is a timeout, and a
	// timeout is data, not an error.
	rep = send("run", nil)
	if got, want := rep.Msg, "ok"; got != want {
		t.Fatalf("invalid run reply: got=%q, want=%q", got, want)
	}
	if rep.Outcome == nil {
		t.Fatalf("missing run outcome")
	}
	if got, want := rep.Outcome.Status, "timed-out"; got != want {
		t.Fatalf("invalid run status: got=%q, want=%q", got, want)
	}
	if got, want := rep.Outcome.Polls, 3; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}

	rep = send("status", nil)
	if got, want := rep.Msg, "ok"; got != want {
		t.Fatalf("invalid status reply: got=%q, want=%q", got, want)
	}
	if rep.Raw == nil {
		t.Fatalf("missing raw status")
	}

	rep = send("bogus", nil)
	if got, want := rep.Msg, `unknown command "bogus"`; got != want {
		t.Fatalf("invalid bogus reply: got=%q, want=%q", got, want)
	}

	rep = send("stop", nil)
	if got, want := rep.Msg, "ok"; got != want {
		t.Fatalf("invalid stop reply: got=%q, want=%q", got, want)
	}
}

func TestServeCompleted(t *testing.T) {
	devmem := newFakeDevmem(t, 0)

	// preset DONE in the status register: the first poll completes.
	f, err := os.OpenFile(devmem, os.O_RDWR, 0666)
	if err != nil {
		t.Fatalf("could not open fake dev-mem: %+v", err)
	}
	_, err = f.WriteAt([]byte{0x1, 0, 0, 0}, 0x04)
	if err != nil {
		t.Fatalf("could not preset DONE: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close fake dev-mem: %+v", err)
	}

	srv, err := newServer(":0", devmem, WithBase(0))
	if err != nil {
		t.Fatalf("could not create control server: %+v", err)
	}
	defer srv.close()

	go func() { _ = srv.serve() }()

	conn, err := net.Dial("tcp", srv.ctl.Addr().String())
	if err != nil {
		t.Fatalf("could not dial control server: %+v", err)
	}
	defer conn.Close()

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	err = enc.Encode(struct {
		Name string `json:"name"`
	}{"run"})
	if err != nil {
		t.Fatalf("could not send run request: %+v", err)
	}

	var rep srvReply
	err = dec.Decode(&rep)
	if err != nil {
		t.Fatalf("could not decode run reply: %+v", err)
	}
	if got, want := rep.Msg, "ok"; got != want {
		t.Fatalf("invalid run reply: got=%q, want=%q", got, want)
	}
	if rep.Outcome == nil {
		t.Fatalf("missing run outcome")
	}
	if got, want := rep.Outcome.Status, "completed"; got != want {
		t.Fatalf("invalid run status: got=%q, want=%q", got, want)
	}
	if got, want := rep.Outcome.Polls, 1; got != want {
		t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
	}
	if got, want := rep.Outcome.Raw, uint32(0x1); got != want {
		t.Fatalf("invalid raw status: got=0x%x, want=0x%x", got, want)
	}
}
