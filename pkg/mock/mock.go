// Package mock provides a simulated classifier for running the harness on a
// host without an inference engine.
package mock

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/harness"
)

// StatusFailed is the status code of simulated failures.
const StatusFailed = -5

// chunkSize is how many samples are pulled from the signal at a time.
const chunkSize = 1024

var _ harness.Classifier = (*Classifier)(nil)

// Classifier simulates an inference engine: it reads the whole frame, reports
// the configured stage timings and spends that long in wall-clock time.
type Classifier struct {
	cfg       *config.MockConfig
	frameSize int
	labels    []string

	mu    sync.Mutex
	rng   *rand.Rand
	calls int
	chunk []float32

	// Sleep emulates the stage cost; tests replace it.
	Sleep func(time.Duration)
}

// New creates a simulated classifier for frames of frameSize samples.
func New(cfg *config.MockConfig, frameSize int, labels []string) *Classifier {
	if cfg == nil {
		cfg = &config.MockConfig{
			DSP:            2 * time.Millisecond,
			Classification: 5 * time.Millisecond,
			Seed:           1,
		}
	}
	return &Classifier{
		cfg:       cfg,
		frameSize: frameSize,
		labels:    labels,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		chunk:     make([]float32, chunkSize),
		Sleep:     time.Sleep,
	}
}

// FrameSize returns the expected input length.
func (c *Classifier) FrameSize() int {
	return c.frameSize
}

// Calls returns how many times Classify ran.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Classify implements harness.Classifier.
func (c *Classifier) Classify(sig *harness.Signal, res *harness.Result, debug bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	energy, err := c.read(sig)
	if err != nil {
		return err
	}

	dsp := c.stage(c.cfg.DSP)
	cls := c.stage(c.cfg.Classification)
	var anomaly time.Duration
	if c.cfg.HasAnomaly {
		anomaly = c.stage(c.cfg.Anomaly)
	}
	if c.Sleep != nil {
		c.Sleep(dsp + cls + anomaly)
	}

	res.Timing = harness.Timing{
		DSP:            dsp.Microseconds(),
		Classification: cls.Microseconds(),
		Anomaly:        anomaly.Microseconds(),
	}
	c.scores(res, energy)
	if c.cfg.HasAnomaly {
		res.HasAnomaly = true
		res.Anomaly = math32.Abs(math32.Sin(energy))
	}

	if c.cfg.FailEvery > 0 && c.calls%c.cfg.FailEvery == 0 {
		return &harness.StatusError{Code: StatusFailed}
	}
	return nil
}

// read pulls the frame through the signal chunk by chunk and returns its mean
// absolute value.
func (c *Classifier) read(sig *harness.Signal) (float32, error) {
	var sum float32
	for off := 0; off < sig.TotalLength; off += chunkSize {
		n := min(chunkSize, sig.TotalLength-off)
		if err := sig.Get(off, n, c.chunk); err != nil {
			return 0, err
		}
		for _, v := range c.chunk[:n] {
			sum += math32.Abs(v)
		}
	}
	if sig.TotalLength == 0 {
		return 0, nil
	}
	return sum / float32(sig.TotalLength), nil
}

// stage applies uniform jitter to d, never going below zero.
func (c *Classifier) stage(d time.Duration) time.Duration {
	if c.cfg.Jitter > 0 {
		d += time.Duration(c.rng.Int63n(int64(2*c.cfg.Jitter)+1)) - c.cfg.Jitter
	}
	if d < 0 {
		d = 0
	}
	return d
}

// scores spreads a softmax over the labels, peaking at a label picked from the
// frame energy so the same frame always yields the same scores.
func (c *Classifier) scores(res *harness.Result, energy float32) {
	if len(c.labels) == 0 {
		return
	}
	peak := int(energy) % len(c.labels)
	var total float32
	for i := range c.labels {
		logit := float32(0)
		if i == peak {
			logit = 4
		}
		total += math32.Exp(logit)
	}
	for i, label := range c.labels {
		logit := float32(0)
		if i == peak {
			logit = 4
		}
		res.Classification = append(res.Classification, harness.LabelScore{
			Label: label,
			Score: math32.Exp(logit) / total,
		})
	}
}
