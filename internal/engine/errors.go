package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a command stream.
//
// Runtime errors include:
//   - Stack underflow: Pop with no outstanding Push
//   - Terminated: a command arrived after Halt
//   - Quota exceeded: the run consumed more than its max steps
//   - Invalid command: a nil command or an unreadable command record
//
// RuntimeError includes structured fields for diagnostics and replay.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, if known.
	RunID string

	// Seq is the logical time of the offending command, 0 if not stamped.
	Seq int64

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStackUnderflow indicates a Pop with an empty checkpoint stack.
	ErrCodeStackUnderflow RuntimeErrorCode = "STACK_UNDERFLOW"

	// ErrCodeTerminated indicates a command after Halt.
	ErrCodeTerminated RuntimeErrorCode = "TERMINATED"

	// ErrCodeQuotaExceeded indicates the run exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeInvalidCommand indicates a command that cannot be executed.
	ErrCodeInvalidCommand RuntimeErrorCode = "INVALID_COMMAND"

	// ErrCodeBudgetOverflow indicates a Push whose increment would overflow
	// a symbol's budget.
	ErrCodeBudgetOverflow RuntimeErrorCode = "BUDGET_OVERFLOW"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" && e.Seq > 0 {
		return fmt.Sprintf("%s: %s (run=%s, seq=%d)", e.Code, e.Message, e.RunID, e.Seq)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code of a *RuntimeError or StepsExceededError in
// err's chain, or "" if there is none.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	var se *StepsExceededError
	if errors.As(err, &se) {
		return ErrCodeQuotaExceeded
	}
	return ""
}

// IsStackUnderflow returns true if the error is a Pop without a checkpoint.
// Uses errors.As to handle wrapped errors.
func IsStackUnderflow(err error) bool {
	return ErrorCode(err) == ErrCodeStackUnderflow
}

// IsTerminated returns true if the error is a command after Halt.
func IsTerminated(err error) bool {
	return ErrorCode(err) == ErrCodeTerminated
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	return ErrorCode(err) == ErrCodeQuotaExceeded
}

func newStackUnderflowError(message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStackUnderflow,
		Message: "pop with no outstanding push",
		Details: map[string]string{"message": message},
	}
}

func newTerminatedError(kind string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTerminated,
		Message: fmt.Sprintf("%s after halt", kind),
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(runID string, steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max steps (%d > %d)", steps, maxSteps),
		RunID:   runID,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}

func newBudgetOverflowError(symbol string, have, add int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBudgetOverflow,
		Message: fmt.Sprintf("budget for %s overflows: %d + %d", symbol, have, add),
	}
}
