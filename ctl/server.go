// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

// server drives an accelerator device on behalf of remote clients.
//
// The protocol is newline-less JSON objects over TCP:
//
//	{"name": "configure", "args": {"dma_addr": 2147483648, "dma_len": 1024,
//	                               "polls": 1000, "interval_ms": 1,
//	                               "settle_ms": 1}}
//	{"name": "run"}
//	{"name": "status"}
//	{"name": "stop"}
//
// each answered with {"msg": "ok", ...} or {"msg": "<error>"}.
type server struct {
	ctl net.Listener

	msg    *log.Logger
	devmem string

	open func(devmem string, opts ...Option) (*Device, error)
	opts []Option
}

// Serve listens on addr and drives the device at devmem for one client
// connection at a time. The device is opened when a client connects
// and released when the connection ends, whatever the exit path.
func Serve(addr, devmem string, opts ...Option) error {
	srv, err := newServer(addr, devmem, opts...)
	if err != nil {
		return fmt.Errorf("ctl: could not create control server: %w", err)
	}
	return srv.serve()
}

func newServer(addr, devmem string, opts ...Option) (*server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ctl: could not listen on %q: %w", addr, err)
	}

	srv := &server{
		ctl:    l,
		msg:    log.New(os.Stdout, "ctl-svc: ", 0),
		devmem: devmem,
		open:   Open,
		opts:   opts,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("ctl: could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not serve %v: %+v", conn.RemoteAddr(), err)
			continue
		}
	}
}

type srvRequest struct {
	Name string           `json:"name"`
	Args *json.RawMessage `json:"args"`
}

type srvReply struct {
	Msg     string      `json:"msg"`
	Raw     *uint32     `json:"raw,omitempty"`
	Outcome *srvOutcome `json:"outcome,omitempty"`
}

type srvOutcome struct {
	Status    string `json:"status"`
	Raw       uint32 `json:"raw"`
	Polls     int    `json:"polls"`
	ElapsedNS int64  `json:"elapsed_ns"`
}

type srvConfigure struct {
	DMAAddr    uint32 `json:"dma_addr"`
	DMALen     uint32 `json:"dma_len"`
	Polls      int    `json:"polls"`
	IntervalMS int64  `json:"interval_ms"`
	SettleMS   int64  `json:"settle_ms"`
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	dev, err := srv.open(srv.devmem, srv.opts...)
	if err != nil {
		srv.reply(conn, srvReply{}, err)
		return fmt.Errorf("could not open device: %w", err)
	}
	defer dev.Close()

	var (
		seq = NewSequencer(dev)
		req = NewRequest()
		dec = json.NewDecoder(conn)
	)

loop:
	for {
		var cmd srvRequest

		err = dec.Decode(&cmd)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, srvReply{}, err)
			return fmt.Errorf("could not decode command request: %w", err)
		}
		srv.msg.Printf("received request: name=%q", cmd.Name)

		switch strings.ToLower(cmd.Name) {
		case "configure":
			if cmd.Args == nil {
				err = fmt.Errorf("missing %q payload", cmd.Name)
				srv.msg.Printf("%+v", err)
				srv.reply(conn, srvReply{}, err)
				continue
			}
			var args srvConfigure
			err = json.Unmarshal(*cmd.Args, &args)
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", cmd.Name, err)
				srv.reply(conn, srvReply{}, err)
				continue
			}
			req = Request{
				DMAAddr:  args.DMAAddr,
				DMALen:   args.DMALen,
				Polls:    args.Polls,
				Interval: time.Duration(args.IntervalMS) * time.Millisecond,
				Settle:   time.Duration(args.SettleMS) * time.Millisecond,
			}
			srv.reply(conn, srvReply{}, nil)

		case "run":
			out, err := seq.Run(context.Background(), req)
			if err != nil {
				srv.msg.Printf("could not run control sequence: %+v", err)
				srv.reply(conn, srvReply{}, err)
				continue
			}
			srv.reply(conn, srvReply{Outcome: &srvOutcome{
				Status:    out.Status.String(),
				Raw:       out.Raw,
				Polls:     out.Polls,
				ElapsedNS: out.Elapsed.Nanoseconds(),
			}}, nil)

		case "status":
			raw := dev.ReadStatus()
			if err := dev.Err(); err != nil {
				srv.msg.Printf("could not read status: %+v", err)
				srv.reply(conn, srvReply{}, err)
				continue
			}
			srv.reply(conn, srvReply{Raw: &raw}, nil)

		case "stop":
			srv.reply(conn, srvReply{}, nil)
			break loop

		default:
			err = fmt.Errorf("unknown command %q", cmd.Name)
			srv.msg.Printf("%+v", err)
			srv.reply(conn, srvReply{}, err)
			continue
		}
	}

	return nil
}

func (srv *server) reply(conn net.Conn, rep srvReply, err error) {
	rep.Msg = "ok"
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
