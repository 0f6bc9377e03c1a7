package scanner

import (
	"fmt"
	"time"
)

// LaunchError reports that no usable browser page could be obtained.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports that the target did not load within the timeout.
type NavigationError struct {
	URL      string
	Timeout  time.Duration
	TimedOut bool
	Err      error
}

func (e *NavigationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("navigation to %s timed out after %s", e.URL, e.Timeout)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// EvaluationError reports that the rule evaluator could not be loaded, injected
// or run.
type EvaluationError struct {
	// Stage is one of "load", "inject", "custom-rules" or "run".
	Stage string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule evaluation failed during %s: %v", e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
