//go:build tinygo && !eisdk

package main

import (
	"time"

	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/scenario"
)

// loopback stands in for the SDK when the image is built without it. It pulls
// the whole frame through the signal and reports that as pre-processing,
// which is enough to bring up the console and the host monitor.
type loopback struct {
	s     scenario.Scenario
	chunk [256]float32
}

func newClassifier(s scenario.Scenario) classifier {
	return &loopback{s: s}
}

func (c *loopback) FrameSize() int { return c.s.FrameSize }

func (c *loopback) Quantized() bool { return false }

func (c *loopback) Classify(sig *harness.Signal, res *harness.Result, debug bool) error {
	start := time.Now()
	var peak float32
	for off := 0; off < sig.TotalLength; off += len(c.chunk) {
		n := min(len(c.chunk), sig.TotalLength-off)
		if err := sig.Get(off, n, c.chunk[:]); err != nil {
			return err
		}
		for _, v := range c.chunk[:n] {
			if v > peak {
				peak = v
			}
		}
	}
	res.Timing.DSP = time.Since(start).Microseconds()

	if len(c.s.Labels) > 0 {
		top := int(peak) % len(c.s.Labels)
		for i, label := range c.s.Labels {
			var score float32
			if i == top {
				score = 1
			}
			res.Classification = append(res.Classification, harness.LabelScore{Label: label, Score: score})
		}
	}
	if debug {
		println("loopback peak", int(peak))
	}
	return nil
}
