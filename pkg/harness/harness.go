// Package harness benchmarks an external classifier: one warm-up call, then a
// fixed number of timed trials with a watchdog yield after each, then the
// averaged per-stage timings.
//
// The package only depends on the standard library so that the same code runs
// under TinyGo on the boards and on the host.
package harness

import (
	"context"
	"fmt"
)

// Harness drives one benchmark run. It is single-shot and not safe for
// concurrent use.
type Harness struct {
	classifier Classifier
	clock      Clock
	yield      YieldFunc
	sink       Sink
	cfg        Config
	observers  []Observer

	state State
}

// New creates a harness. Nil clock, yield or sink fall back to SystemClock,
// Sleep and a discarding sink.
func New(c Classifier, clock Clock, yield YieldFunc, sink Sink, cfg Config) *Harness {
	if clock == nil {
		clock = NewSystemClock()
	}
	if yield == nil {
		yield = Sleep
	}
	if sink == nil {
		sink = discardSink{}
	}
	return &Harness{
		classifier: c,
		clock:      clock,
		yield:      yield,
		sink:       sink,
		cfg:        cfg.normalize(),
		state:      Uninitialized,
	}
}

// Observe registers o for every timed trial. Call before Run.
func (h *Harness) Observe(o Observer) {
	h.observers = append(h.observers, o)
}

// State returns the current lifecycle stage.
func (h *Harness) State() State {
	return h.state
}

// Config returns the normalized configuration.
func (h *Harness) Config() Config {
	return h.cfg
}

// Run validates features against the classifier frame size, performs the
// warm-up call and the timed trials, and prints the report to the sink.
func (h *Harness) Run(ctx context.Context, features FeatureBuffer) (*Report, error) {
	if h.state != Uninitialized {
		return nil, ErrAlreadyRun
	}
	if err := h.cfg.Validate(); err != nil {
		h.state = Aborted
		return nil, err
	}
	h.state = ValidatingInput

	if h.cfg.StartupDelay > 0 {
		h.yield(h.cfg.StartupDelay)
	}
	printHeader(h.sink, &h.cfg)

	expected := h.classifier.FrameSize()
	if len(features) != expected {
		h.sink.Printf(FormatSizeMismatch, expected, len(features))
		h.state = Aborted
		return nil, &FrameSizeError{Expected: expected, Actual: len(features)}
	}

	sig := NewSignal(features)
	var res Result

	// The first call pays for buffer setup inside the engine; keep it out of
	// the averages.
	if err := h.classifier.Classify(sig, &res, h.cfg.Debug); err != nil {
		h.sink.Printf("Warm-up failed: %v\r\n", err)
		h.state = Aborted
		return nil, fmt.Errorf("%w: %w", ErrWarmup, err)
	}
	h.state = WarmedUp
	warmup := res.Clone()
	printClassification(h.sink, &warmup)
	h.sink.Printf("\r\n")

	h.state = Running
	acc, attempts, err := h.trials(ctx, sig, &res)
	if err != nil {
		h.state = Aborted
		return nil, err
	}

	h.state = Reporting
	means, total := acc.Means()
	report := &Report{
		Target:     h.cfg.Target,
		Scenario:   h.cfg.Scenario,
		Quantized:  h.cfg.Quantized,
		Trials:     h.cfg.Trials,
		Attempts:   attempts,
		Successful: acc.Successful,
		Failed:     acc.Failed,
		Means:      means,
		MeanTotal:  total,
		Warmup:     warmup,
	}
	report.PrintTiming(h.sink)

	if acc.Successful == 0 {
		h.state = Aborted
		return report, ErrNoSuccessfulTrials
	}
	return report, nil
}

func (h *Harness) trials(ctx context.Context, sig *Signal, res *Result) (Accumulator, int, error) {
	var acc Accumulator
	attempts := 0

	for acc.Successful < h.cfg.Trials && attempts < h.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return acc, attempts, err
		}
		attempts++

		if h.cfg.PrintProgress {
			h.sink.Printf(FormatProgress, acc.Successful+1, h.cfg.Trials)
		}

		res.Reset()
		start := h.clock.NowMicros()
		err := h.classifier.Classify(sig, res, h.cfg.Debug)
		total := int64(h.clock.NowMicros() - start)

		trial := Trial{Index: attempts, Timing: res.Timing, Total: total, Err: err}
		if err != nil {
			acc.Failed++
			h.sink.Printf("Trial %d failed: %v\r\n", attempts, err)
		} else {
			acc.Add(res.Timing, total)
		}
		for _, o := range h.observers {
			o.ObserveTrial(trial)
		}

		if err != nil && h.cfg.FailurePolicy == FailureAbort {
			return acc, attempts, &TrialError{Trial: attempts, Err: err}
		}

		h.yield(h.cfg.YieldInterval)
	}
	return acc, attempts, nil
}

// Idle is the terminal state: it yields IdleInterval until ctx is done. The
// firmware passes context.Background() and never returns from here.
func (h *Harness) Idle(ctx context.Context) error {
	if h.state != Reporting && h.state != Idling {
		return ErrNotReported
	}
	h.state = Idling
	for ctx.Err() == nil {
		h.yield(h.cfg.IdleInterval)
	}
	return ctx.Err()
}
