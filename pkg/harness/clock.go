package harness

import (
	"fmt"
	"io"
	"time"
)

// Clock is a monotonic microsecond counter.
type Clock interface {
	NowMicros() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

// NowMicros calls f.
func (f ClockFunc) NowMicros() uint64 {
	return f()
}

// YieldFunc suspends the caller for at least d, letting the watchdog and any
// background scheduler run.
type YieldFunc func(d time.Duration)

// Sink is the fire-and-forget diagnostic console.
type Sink interface {
	Printf(format string, args ...any)
}

// SystemClock counts microseconds since it was created, using the runtime
// monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMicros returns microseconds elapsed since NewSystemClock.
func (c *SystemClock) NowMicros() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// Sleep is the default YieldFunc.
func Sleep(d time.Duration) {
	time.Sleep(d)
}

// WriterSink prints to an io.Writer, ignoring write errors.
type WriterSink struct {
	W io.Writer
}

// Printf formats to the underlying writer.
func (s WriterSink) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.W, format, args...)
}

type discardSink struct{}

func (discardSink) Printf(string, ...any) {}
