package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/colgraph/internal/ir"
)

// EvaluationError reports a failure while computing a key.
type EvaluationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Key is the key being computed when the failure happened.
	Key ir.Key

	// Func is the name of the failing callable, if any.
	Func string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeTaskFailed indicates a task callable returned an error.
	ErrCodeTaskFailed ErrorCode = "TASK_FAILED"

	// ErrCodePanic indicates a task callable panicked.
	ErrCodePanic ErrorCode = "TASK_PANIC"

	// ErrCodeMissingKey indicates a requested or referenced key has no task.
	ErrCodeMissingKey ErrorCode = "MISSING_KEY"

	// ErrCodeCycle indicates a task depends on itself through its arguments.
	ErrCodeCycle ErrorCode = "CYCLE_DETECTED"

	// ErrCodeBadArgument indicates an argument could not be resolved.
	ErrCodeBadArgument ErrorCode = "BAD_ARGUMENT"

	// ErrCodeQuotaExceeded indicates the evaluation ran more tasks than allowed.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Func != "" {
		return fmt.Sprintf("%s: %s (key=%s, func=%s)", e.Code, msg, e.Key, e.Func)
	}
	return fmt.Sprintf("%s: %s (key=%s)", e.Code, msg, e.Key)
}

// Unwrap returns the underlying error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsTaskFailure reports whether err came from a task callable, either as a
// returned error or a panic.
func IsTaskFailure(err error) bool {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeTaskFailed || ee.Code == ErrCodePanic
	}
	return false
}
