package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock only moves when a stub classifier advances it.
type fakeClock struct {
	now uint64
}

func (c *fakeClock) NowMicros() uint64 { return c.now }

// stubClassifier counts calls and reports fixed timings. Call 1 is the warm-up.
type stubClassifier struct {
	frame  int
	clock  *fakeClock
	cost   uint64
	timing func(call int) Timing
	fail   func(call int) error
	calls  int
}

func (s *stubClassifier) FrameSize() int { return s.frame }

func (s *stubClassifier) Classify(sig *Signal, res *Result, debug bool) error {
	s.calls++
	buf := make([]float32, sig.TotalLength)
	if err := sig.Get(0, sig.TotalLength, buf); err != nil {
		return err
	}
	if s.clock != nil {
		s.clock.now += s.cost
	}
	res.Classification = append(res.Classification,
		LabelScore{Label: "no", Score: 0.25},
		LabelScore{Label: "yes", Score: 0.75},
	)
	if s.timing != nil {
		res.Timing = s.timing(s.calls)
	}
	if s.fail != nil {
		return s.fail(s.calls)
	}
	return nil
}

type bufferSink struct {
	strings.Builder
}

func (b *bufferSink) Printf(format string, args ...any) {
	fmt.Fprintf(&b.Builder, format, args...)
}

type yieldRecorder struct {
	calls []time.Duration
}

func (y *yieldRecorder) yield(d time.Duration) {
	y.calls = append(y.calls, d)
}

func testConfig(trials int) Config {
	cfg := DefaultConfig()
	cfg.Target = "test"
	cfg.Scenario = "kws"
	cfg.Trials = trials
	cfg.MaxAttempts = 0
	cfg.StartupDelay = 0
	return cfg
}

func fixedTiming(t Timing) func(int) Timing {
	return func(int) Timing { return t }
}

func TestRun_CallCount(t *testing.T) {
	for _, n := range []int{1, 3, 17, 100} {
		t.Run(fmt.Sprintf("trials=%d", n), func(t *testing.T) {
			c := &stubClassifier{frame: 8}
			y := &yieldRecorder{}
			h := New(c, &fakeClock{}, y.yield, nil, testConfig(n))

			report, err := h.Run(context.Background(), make(FeatureBuffer, 8))
			require.NoError(t, err)
			assert.Equal(t, n+1, c.calls, "one warm-up plus N timed calls")
			assert.Equal(t, n, report.Successful)
			assert.Equal(t, n, report.Attempts)
			assert.Zero(t, report.Failed)
		})
	}
}

func TestRun_FrameSizeMismatch(t *testing.T) {
	for _, size := range []int{0, 15, 17} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			c := &stubClassifier{frame: 16}
			sink := &bufferSink{}
			h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, sink, testConfig(3))

			report, err := h.Run(context.Background(), make(FeatureBuffer, size))
			assert.Nil(t, report)

			var fe *FrameSizeError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, 16, fe.Expected)
			assert.Equal(t, size, fe.Actual)

			assert.Zero(t, c.calls, "no classifier call on shape mismatch")
			assert.Equal(t, Aborted, h.State())
			assert.Contains(t, sink.String(), fmt.Sprintf("Expected 16 items, but had %d", size))
		})
	}
}

func TestRun_MeansUseIntegerDivision(t *testing.T) {
	// 5 trials at 11us and 95 at 10us sum to 1005; 1005/100 = 10.
	c := &stubClassifier{
		frame: 4,
		timing: func(call int) Timing {
			trial := call - 1
			if trial >= 1 && trial <= 5 {
				return Timing{DSP: 11, Classification: 11, Anomaly: 11}
			}
			return Timing{DSP: 10, Classification: 10, Anomaly: 10}
		},
	}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, testConfig(100))

	report, err := h.Run(context.Background(), make(FeatureBuffer, 4))
	require.NoError(t, err)
	assert.Equal(t, Timing{DSP: 10, Classification: 10, Anomaly: 10}, report.Means)
}

func TestAccumulator_Means(t *testing.T) {
	tests := []struct {
		name      string
		durations []int64
		want      int64
	}{
		{"even", []int64{10, 20, 30}, 20},
		{"truncates", []int64{1, 1, 2}, 1},
		{"single", []int64{7}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var acc Accumulator
			for _, d := range tt.durations {
				acc.Add(Timing{DSP: d, Classification: 2 * d, Anomaly: d}, 3*d)
			}
			means, total := acc.Means()
			assert.Equal(t, tt.want, means.DSP)
			assert.Equal(t, acc.Classification/int64(len(tt.durations)), means.Classification)
			assert.Equal(t, acc.Total/int64(len(tt.durations)), total)
		})
	}

	var empty Accumulator
	means, total := empty.Means()
	assert.Equal(t, Timing{}, means)
	assert.Zero(t, total)
}

func TestRun_YieldsAfterEveryTrial(t *testing.T) {
	const n = 25
	y := &yieldRecorder{}
	h := New(&stubClassifier{frame: 2}, &fakeClock{}, y.yield, nil, testConfig(n))

	_, err := h.Run(context.Background(), make(FeatureBuffer, 2))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(y.calls), n)
	for _, d := range y.calls {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
	}
}

func TestRun_StartupDelayYields(t *testing.T) {
	y := &yieldRecorder{}
	cfg := testConfig(2)
	cfg.StartupDelay = 100 * time.Millisecond
	h := New(&stubClassifier{frame: 2}, &fakeClock{}, y.yield, nil, cfg)

	_, err := h.Run(context.Background(), make(FeatureBuffer, 2))
	require.NoError(t, err)
	require.Len(t, y.calls, 3)
	assert.Equal(t, 100*time.Millisecond, y.calls[0])
}

func TestRun_EndToEnd(t *testing.T) {
	clock := &fakeClock{now: 1_000_000}
	c := &stubClassifier{
		frame:  10,
		clock:  clock,
		cost:   350,
		timing: fixedTiming(Timing{DSP: 100, Classification: 200, Anomaly: 0}),
	}
	sink := &bufferSink{}
	h := New(c, clock, (&yieldRecorder{}).yield, sink, testConfig(3))

	report, err := h.Run(context.Background(), make(FeatureBuffer, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(100), report.Means.DSP)
	assert.Equal(t, int64(200), report.Means.Classification)
	assert.Equal(t, int64(0), report.Means.Anomaly)
	assert.Equal(t, int64(350), report.MeanTotal)
	assert.Equal(t, Reporting, h.State())

	out := sink.String()
	assert.Contains(t, out, "MLSys test timing test")
	assert.Contains(t, out, "Test: kws")
	assert.Contains(t, out, "    yes: 0.75000")
	assert.Contains(t, out, "Running test 3 / 3")
	assert.Contains(t, out, "Pre-processing: 100 us")
	assert.Contains(t, out, "Classification: 200 us")
	assert.Contains(t, out, "Anomaly: 0 us")
	assert.Contains(t, out, "Total: 350 us")
	assert.Contains(t, out, "Trials: 3 / 3, failed: 0")
	assert.NotContains(t, out, "anomaly score")
}

func TestRun_AnomalyScorePrinted(t *testing.T) {
	c := &anomalyClassifier{stubClassifier{frame: 1}}
	sink := &bufferSink{}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, sink, testConfig(1))

	report, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	require.NoError(t, err)
	assert.True(t, report.Warmup.HasAnomaly)
	assert.Contains(t, sink.String(), "    anomaly score: 0.420")
}

type anomalyClassifier struct {
	stubClassifier
}

func (a *anomalyClassifier) Classify(sig *Signal, res *Result, debug bool) error {
	if err := a.stubClassifier.Classify(sig, res, debug); err != nil {
		return err
	}
	res.Anomaly = 0.42
	res.HasAnomaly = true
	return nil
}

func TestRun_Idempotent(t *testing.T) {
	run := func() *Report {
		clock := &fakeClock{}
		c := &stubClassifier{
			frame:  6,
			clock:  clock,
			cost:   123,
			timing: func(call int) Timing { return Timing{DSP: int64(call), Classification: 7, Anomaly: 1} },
		}
		h := New(c, clock, (&yieldRecorder{}).yield, nil, testConfig(9))
		report, err := h.Run(context.Background(), make(FeatureBuffer, 6))
		require.NoError(t, err)
		return report
	}

	assert.Equal(t, run(), run())
}

func TestRun_ExcludesFailedTrials(t *testing.T) {
	clock := &fakeClock{}
	errBoom := &StatusError{Code: -5}
	c := &stubClassifier{
		frame: 3,
		clock: clock,
		cost:  50,
		timing: func(call int) Timing {
			if call == 3 {
				return Timing{DSP: 99999, Classification: 99999, Anomaly: 99999}
			}
			return Timing{DSP: 10, Classification: 20, Anomaly: 0}
		},
		fail: func(call int) error {
			if call == 3 {
				return errBoom
			}
			return nil
		},
	}
	var observed []Trial
	sink := &bufferSink{}
	h := New(c, clock, (&yieldRecorder{}).yield, sink, testConfig(3))
	h.Observe(ObserverFunc(func(tr Trial) { observed = append(observed, tr) }))

	report, err := h.Run(context.Background(), make(FeatureBuffer, 3))
	require.NoError(t, err)

	assert.Equal(t, 5, c.calls)
	assert.Equal(t, 4, report.Attempts)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, Timing{DSP: 10, Classification: 20, Anomaly: 0}, report.Means)
	assert.Equal(t, int64(50), report.MeanTotal)
	assert.Contains(t, sink.String(), "Trials: 3 / 3, failed: 1")

	require.Len(t, observed, 4)
	assert.ErrorIs(t, observed[1].Err, errBoom)
	assert.Equal(t, 2, observed[1].Index)
}

func TestRun_MaxAttemptsExhausted(t *testing.T) {
	c := &stubClassifier{
		frame: 1,
		fail: func(call int) error {
			if call > 1 {
				return &StatusError{Code: -1}
			}
			return nil
		},
	}
	cfg := testConfig(4)
	cfg.MaxAttempts = 6
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, cfg)

	report, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, ErrNoSuccessfulTrials)
	require.NotNil(t, report)
	assert.Equal(t, 6, report.Attempts)
	assert.Equal(t, 6, report.Failed)
	assert.Equal(t, 7, c.calls)
	assert.Equal(t, Aborted, h.State())
}

func TestRun_AbortPolicy(t *testing.T) {
	c := &stubClassifier{
		frame: 1,
		fail: func(call int) error {
			if call == 4 {
				return &StatusError{Code: -3}
			}
			return nil
		},
	}
	cfg := testConfig(10)
	cfg.FailurePolicy = FailureAbort
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, cfg)

	report, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.Nil(t, report)

	var te *TrialError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Trial)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, -3, se.Code)
	assert.Equal(t, 4, c.calls)
	assert.Equal(t, Aborted, h.State())
}

func TestRun_WarmupFailure(t *testing.T) {
	errEngine := errors.New("engine not ready")
	c := &stubClassifier{frame: 1, fail: func(int) error { return errEngine }}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, testConfig(5))

	_, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, ErrWarmup)
	assert.ErrorIs(t, err, errEngine)
	assert.Equal(t, 1, c.calls)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &stubClassifier{frame: 1}
	h := New(c, &fakeClock{}, func(time.Duration) { cancel() }, nil, testConfig(50))

	_, err := h.Run(ctx, make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, c.calls)
}

func TestRun_SingleShot(t *testing.T) {
	c := &stubClassifier{frame: 1}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, testConfig(2))

	_, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	require.NoError(t, err)
	_, err = h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, ErrAlreadyRun)
	assert.Equal(t, 3, c.calls)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(2)
	cfg.YieldInterval = -time.Millisecond
	c := &stubClassifier{frame: 1}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, cfg)

	_, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Zero(t, c.calls)
}

func TestRun_NegativeTrialsRejected(t *testing.T) {
	c := &stubClassifier{frame: 1}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, testConfig(-3))

	_, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Zero(t, c.calls)
	assert.Equal(t, Aborted, h.State())
}

func TestRun_ZeroTrialsUseDefault(t *testing.T) {
	c := &stubClassifier{frame: 1}
	h := New(c, &fakeClock{}, (&yieldRecorder{}).yield, nil, testConfig(0))

	report, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	require.NoError(t, err)
	assert.Equal(t, DefaultTrials, report.Trials)
	assert.Equal(t, DefaultTrials+1, c.calls)
}

func TestIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	y := &yieldRecorder{}
	cfg := testConfig(1)
	cfg.IdleInterval = 250 * time.Millisecond

	idles := 0
	h := New(&stubClassifier{frame: 1}, &fakeClock{}, func(d time.Duration) {
		y.yield(d)
		if d == 250*time.Millisecond {
			idles++
			if idles == 3 {
				cancel()
			}
		}
	}, nil, cfg)

	assert.ErrorIs(t, h.Idle(ctx), ErrNotReported)

	_, err := h.Run(context.Background(), make(FeatureBuffer, 1))
	require.NoError(t, err)

	assert.ErrorIs(t, h.Idle(ctx), context.Canceled)
	assert.Equal(t, Idling, h.State())
	assert.Equal(t, 3, idles)
}

func TestSignal_Get(t *testing.T) {
	sig := NewSignal(FeatureBuffer{1, 2, 3, 4, 5})
	out := make([]float32, 3)

	require.NoError(t, sig.Get(1, 3, out))
	assert.Equal(t, []float32{2, 3, 4}, out)

	assert.ErrorIs(t, sig.Get(3, 3, out), ErrOutOfRange)
	assert.ErrorIs(t, sig.Get(-1, 1, out), ErrOutOfRange)
	assert.ErrorIs(t, sig.Get(0, 4, out), ErrOutOfRange)
}

func TestResult_CloneIsIndependent(t *testing.T) {
	res := Result{Classification: []LabelScore{{Label: "a", Score: 1}}}
	c := res.Clone()
	res.Reset()
	res.Classification = append(res.Classification, LabelScore{Label: "b"})
	assert.Equal(t, "a", c.Classification[0].Label)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idling", Idling.String())
	assert.Equal(t, "validating-input", ValidatingInput.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, FailureAbort, p)

	p, err = ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailureExclude, p)

	_, err = ParseFailurePolicy("retry")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
