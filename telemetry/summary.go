// Copyright 2026 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Summary aggregates the samples of a single metric.
type Summary struct {
	Metric string
	Count  int
	Sum    float64
	Min    float64
	Max    float64
}

// Mean returns the arithmetic mean of the samples, or 0 if there are
// none.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%s: n=%d mean=%g min=%g max=%g",
		s.Metric, s.Count, s.Mean(), s.Min, s.Max,
	)
}

// Summarize reads JSON-lines events from r and aggregates them per
// metric. Summaries are sorted by metric name. Blank lines are
// skipped, malformed lines are an error.
func Summarize(r io.Reader) ([]Summary, error) {
	sums := make(map[string]*Summary)

	sc := bufio.NewScanner(r)
	var line int
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var evt Event
		err := json.Unmarshal(raw, &evt)
		if err != nil {
			return nil, fmt.Errorf("telemetry: could not decode event (line %d): %w", line, err)
		}
		sum, ok := sums[evt.Metric]
		if !ok {
			sum = &Summary{Metric: evt.Metric, Min: evt.Value, Max: evt.Value}
			sums[evt.Metric] = sum
		}
		sum.Count++
		sum.Sum += evt.Value
		if evt.Value < sum.Min {
			sum.Min = evt.Value
		}
		if evt.Value > sum.Max {
			sum.Max = evt.Value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: could not scan events: %w", err)
	}

	out := make([]Summary, 0, len(sums))
	for _, sum := range sums {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metric < out[j].Metric
	})
	return out, nil
}
