// Package stats collects the latency distribution of harness trials.
package stats

import (
	"fmt"
	"io"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/itohio/mlbench/pkg/harness"
)

const (
	// maxTrackable is the largest latency recorded without clamping, in us.
	maxTrackable = 60 * 1000 * 1000
	sigFigs      = 3
)

var _ harness.Observer = (*Collector)(nil)

// Summary describes a latency distribution in microseconds.
type Summary struct {
	Count  int64
	Min    int64
	Max    int64
	Mean   float64
	StdDev float64
	P50    int64
	P90    int64
	P99    int64
}

// Collector records the wall-clock and stage latency of successful trials.
type Collector struct {
	mu             sync.Mutex
	total          *hdrhistogram.Histogram
	classification *hdrhistogram.Histogram
	failed         int64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		total:          hdrhistogram.New(1, maxTrackable, sigFigs),
		classification: hdrhistogram.New(1, maxTrackable, sigFigs),
	}
}

// ObserveTrial implements harness.Observer.
func (c *Collector) ObserveTrial(t harness.Trial) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Err != nil {
		c.failed++
		return
	}
	_ = c.total.RecordValue(clamp(t.Total))
	_ = c.classification.RecordValue(clamp(t.Timing.Classification))
}

// Failed returns the number of failed trials seen.
func (c *Collector) Failed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Total summarizes the end-to-end latency.
func (c *Collector) Total() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.total)
}

// Classification summarizes the classification stage latency.
func (c *Collector) Classification() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.classification)
}

// Write prints both summaries.
func (c *Collector) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Total latency:          %s\n", c.Total()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Classification latency: %s\n", c.Classification())
	return err
}

func (s Summary) String() string {
	return fmt.Sprintf("min: %d us, mean: %.2f us, p50: %d us, p90: %d us, p99: %d us, max: %d us, stddev: %.2f us, count: %d",
		s.Min, s.Mean, s.P50, s.P90, s.P99, s.Max, s.StdDev, s.Count)
}

func summarize(h *hdrhistogram.Histogram) Summary {
	if h.TotalCount() == 0 {
		return Summary{}
	}
	return Summary{
		Count:  h.TotalCount(),
		Min:    h.Min(),
		Max:    h.Max(),
		Mean:   h.Mean(),
		StdDev: h.StdDev(),
		P50:    h.ValueAtQuantile(50),
		P90:    h.ValueAtQuantile(90),
		P99:    h.ValueAtQuantile(99),
	}
}

// clamp keeps v inside the trackable range; 0 us is recorded as 1 us.
func clamp(v int64) int64 {
	if v < 1 {
		return 1
	}
	if v > maxTrackable {
		return maxTrackable
	}
	return v
}
