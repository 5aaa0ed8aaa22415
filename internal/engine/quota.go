package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer tracks the number of commands consumed by a run
// and enforces a maximum steps limit.
//
// Each run has its own QuotaEnforcer instance. The quota is checked
// before every command is applied.
//
// A solver that keeps pushing without ever halting would otherwise
// grow the checkpoint stack without bound.
type QuotaEnforcer struct {
	maxSteps int // Maximum allowed steps for this run
	current  int // Current step count
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
//
// maxSteps: Maximum number of commands allowed per run.
// Typical default: 1000 (configurable via engine.WithMaxSteps())
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(runID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			RunID: runID,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a run exceeds the max steps quota.
// The run stops; the command that tripped the quota is not applied.
type StepsExceededError struct {
	RunID string // The run that exceeded the quota
	Steps int    // Number of steps attempted
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max steps quota: %d steps > %d limit",
		e.RunID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
