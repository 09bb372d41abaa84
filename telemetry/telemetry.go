// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry records accelerator run metrics as JSON lines.
//
// Each line is a single event:
//
//	{"metric":"kernel.step_ns","value":125000,"labels":{"graph":"mnist","backend":"accel"}}
//
// Events append to a file (or any io.Writer) and are summarized
// off-line with Summarize.
package telemetry // import "github.com/go-daq/accel/telemetry"

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-daq/accel/ctl"
)

// Labels identifies the workload an event belongs to.
type Labels struct {
	Graph     string `json:"graph,omitempty"`
	Backend   string `json:"backend,omitempty"`
	ISA       string `json:"isa,omitempty"`
	Simulator string `json:"simulator,omitempty"`
}

// Event is a single telemetry sample.
type Event struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Labels Labels  `json:"labels"`
}

// Writer emits events as JSON lines to an underlying writer.
type Writer struct {
	enc *json.Encoder
}

// NewWriter creates a telemetry writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write emits a single event.
func (w *Writer) Write(evt Event) error {
	err := w.enc.Encode(evt)
	if err != nil {
		return fmt.Errorf("telemetry: could not encode event: %w", err)
	}
	return nil
}

// Appender appends events to a telemetry file.
// It is safe for concurrent use.
type Appender struct {
	mu sync.Mutex
	f  *os.File
	w  *Writer
}

// NewAppender opens (or creates) the telemetry file at fname in
// append mode.
func NewAppender(fname string) (*Appender, error) {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: could not open %q: %w", fname, err)
	}
	return &Appender{f: f, w: NewWriter(f)}, nil
}

// Append records a single event.
func (app *Appender) Append(evt Event) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.w.Write(evt)
}

// Count records a counter increment for metric.
func (app *Appender) Count(metric string, n float64, labels Labels) error {
	return app.Append(Event{Metric: metric, Value: n, Labels: labels})
}

// Timer starts a wall-clock timer for metric. The returned function
// stops the timer and records the elapsed time in nanoseconds.
func (app *Appender) Timer(metric string, labels Labels) func() error {
	beg := time.Now()
	return func() error {
		return app.Append(Event{
			Metric: metric,
			Value:  float64(time.Since(beg).Nanoseconds()),
			Labels: labels,
		})
	}
}

// Close flushes and closes the underlying telemetry file.
// Close is idempotent.
func (app *Appender) Close() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.f == nil {
		return nil
	}
	err := app.f.Close()
	app.f = nil
	if err != nil {
		return fmt.Errorf("telemetry: could not close telemetry file: %w", err)
	}
	return nil
}

// FromOutcome derives the canonical events of a control sequence run.
func FromOutcome(out ctl.Outcome, labels Labels) []Event {
	return []Event{
		{Metric: "kernel.step_ns", Value: float64(out.Elapsed.Nanoseconds()), Labels: labels},
		{Metric: "events.processed", Value: 1, Labels: labels},
		{Metric: "mmio.operations", Value: float64(out.Writes), Labels: labels},
		{Metric: "ctl.polls", Value: float64(out.Polls), Labels: labels},
	}
}
