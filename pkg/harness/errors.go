package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned by Signal.Get for reads past the frame.
	ErrOutOfRange = errors.New("harness: read out of range")
	// ErrAlreadyRun is returned when Run is called a second time.
	ErrAlreadyRun = errors.New("harness: already run")
	// ErrWarmup wraps the failure of the warm-up call.
	ErrWarmup = errors.New("harness: warm-up call failed")
	// ErrNoSuccessfulTrials is returned when every timed trial failed.
	ErrNoSuccessfulTrials = errors.New("harness: no successful trials")
	// ErrNotReported is returned by Idle before a report was produced.
	ErrNotReported = errors.New("harness: idle before report")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("harness: invalid config")
)

// FrameSizeError is the fatal configuration error raised when the feature
// buffer does not match the classifier input frame.
type FrameSizeError struct {
	Expected int
	Actual   int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("harness: features size mismatch: expected %d items, but had %d", e.Expected, e.Actual)
}

// StatusError carries an engine-defined status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier status %d", e.Code)
}

// TrialError reports the timed trial that stopped a run.
type TrialError struct {
	Trial int
	Err   error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("harness: trial %d failed: %v", e.Trial, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}
