package harness

import (
	"fmt"
	"time"
)

const (
	DefaultTrials        = 100
	DefaultYieldInterval = 10 * time.Millisecond
	DefaultIdleInterval  = time.Second
	DefaultStartupDelay  = 100 * time.Millisecond
)

// FailurePolicy decides what a failed timed trial does to the run.
type FailurePolicy int

const (
	// FailureExclude drops the failed trial from the averages and keeps going
	// until Trials successes or MaxAttempts attempts.
	FailureExclude FailurePolicy = iota
	// FailureAbort stops the run at the first failed trial.
	FailureAbort
)

func (p FailurePolicy) String() string {
	switch p {
	case FailureExclude:
		return "exclude"
	case FailureAbort:
		return "abort"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy converts "exclude" or "abort" to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "exclude":
		return FailureExclude, nil
	case "abort":
		return FailureAbort, nil
	default:
		return FailureExclude, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, s)
	}
}

// Config controls one harness run.
type Config struct {
	Target    string // Printed in the header, e.g. "ESP32"
	Scenario  string
	Quantized bool

	Trials        int
	YieldInterval time.Duration // Yield after every timed trial; keeps the watchdog fed
	IdleInterval  time.Duration // Yield period of the terminal idle loop
	StartupDelay  time.Duration // Lets the console attach before the header is printed

	Debug         bool // Passed through to the classifier
	PrintProgress bool // Print "Running test i / N" before every trial

	FailurePolicy FailurePolicy
	MaxAttempts   int // Upper bound on timed calls under FailureExclude
}

// DefaultConfig returns the configuration the firmware ships with.
func DefaultConfig() Config {
	return Config{
		Trials:        DefaultTrials,
		YieldInterval: DefaultYieldInterval,
		IdleInterval:  DefaultIdleInterval,
		StartupDelay:  DefaultStartupDelay,
		PrintProgress: true,
		FailurePolicy: FailureExclude,
		MaxAttempts:   2 * DefaultTrials,
	}
}

// Validate rejects negative durations and unknown policies.
func (c Config) Validate() error {
	if c.Trials < 0 {
		return fmt.Errorf("%w: trials must not be negative, got %d", ErrInvalidConfig, c.Trials)
	}
	if c.YieldInterval < 0 || c.IdleInterval < 0 || c.StartupDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.FailurePolicy != FailureExclude && c.FailurePolicy != FailureAbort {
		return fmt.Errorf("%w: unknown failure policy %d", ErrInvalidConfig, int(c.FailurePolicy))
	}
	return nil
}

// normalize fills zero values that have no meaningful zero. Negative values
// are left for Validate to reject.
func (c Config) normalize() Config {
	if c.Trials == 0 {
		c.Trials = DefaultTrials
	}
	if c.IdleInterval == 0 {
		c.IdleInterval = DefaultIdleInterval
	}
	if c.Trials > 0 && c.MaxAttempts < c.Trials {
		c.MaxAttempts = 2 * c.Trials
	}
	return c
}
