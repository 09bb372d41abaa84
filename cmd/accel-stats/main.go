// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command accel-stats summarizes telemetry files.
//
// It prints per-metric aggregates and, for a chosen metric, the
// distribution of its samples:
//
//	$ accel-stats -metric kernel.step_ns telemetry.jsonl
package main // import "github.com/go-daq/accel/cmd/accel-stats"

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-daq/accel/telemetry"
	"go-hep.org/x/hep/hbook"
)

func main() {
	var (
		metric = flag.String("metric", "kernel.step_ns", "metric to histogram")
		bins   = flag.Int("bins", 20, "number of histogram bins")
	)

	log.SetPrefix("accel-stats: ")
	log.SetFlags(0)

	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("missing input telemetry file(s)")
	}

	err := process(os.Stdout, flag.Args(), *metric, *bins)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func process(w io.Writer, fnames []string, metric string, bins int) error {
	raw := new(bytes.Buffer)
	for _, fname := range fnames {
		data, err := os.ReadFile(fname)
		if err != nil {
			return fmt.Errorf("could not read %q: %w", fname, err)
		}
		raw.Write(data)
	}

	sums, err := telemetry.Summarize(bytes.NewReader(raw.Bytes()))
	if err != nil {
		return fmt.Errorf("could not summarize telemetry: %w", err)
	}
	for _, sum := range sums {
		fmt.Fprintf(w, "%v\n", sum)
	}

	evts, err := events(bytes.NewReader(raw.Bytes()))
	if err != nil {
		return fmt.Errorf("could not decode telemetry: %w", err)
	}

	h := histogram(evts, metric, bins)
	if h == nil {
		fmt.Fprintf(w, "%s: no samples\n", metric)
		return nil
	}

	fmt.Fprintf(w, "%s: entries=%d mean=%g rms=%g min=%g max=%g\n",
		metric, h.Entries(), h.XMean(), h.XRMS(), h.XMin(), h.XMax(),
	)
	return nil
}

func events(r io.Reader) ([]telemetry.Event, error) {
	var (
		evts []telemetry.Event
		dec  = json.NewDecoder(r)
	)
	for {
		var evt telemetry.Event
		err := dec.Decode(&evt)
		if err == io.EOF {
			return evts, nil
		}
		if err != nil {
			return nil, err
		}
		evts = append(evts, evt)
	}
}

func histogram(evts []telemetry.Event, metric string, bins int) *hbook.H1D {
	var (
		vals []float64
		lo   float64
		hi   float64
	)
	for _, evt := range evts {
		if evt.Metric != metric {
			continue
		}
		if len(vals) == 0 || evt.Value < lo {
			lo = evt.Value
		}
		if len(vals) == 0 || evt.Value > hi {
			hi = evt.Value
		}
		vals = append(vals, evt.Value)
	}
	if len(vals) == 0 {
		return nil
	}

	h := hbook.NewH1D(bins, lo, hi+1)
	for _, v := range vals {
		h.Fill(v, 1)
	}
	return h
}
