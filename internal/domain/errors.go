package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrBudgetExceeded    = errors.New("budget exceeded")
	ErrPipelineAborted   = errors.New("pipeline aborted")
	ErrEnqueueRefused    = errors.New("enqueue refused: budget exhausted")
	ErrAllBackendsFailed = errors.New("all model backends failed")
	ErrDuplicateAsset    = errors.New("asset already exists")
)

// ErrorKind classifies backend errors for the retry policy.
type ErrorKind string

const (
	// ErrorKindRetryable covers timeouts, transient network failures and
	// 5xx-equivalent responses.
	ErrorKindRetryable ErrorKind = "retryable"
	// ErrorKindFatal covers validation and authorization failures; no
	// retry will change the outcome.
	ErrorKindFatal ErrorKind = "fatal"
)

// BackendError wraps a provider failure with its classification and a
// flag telling the ledger whether the call completed on the provider
// side (completed calls may incur cost, a timeout before any response
// does not).
type BackendError struct {
	Backend   string
	Kind      ErrorKind
	Completed bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should enter the retry path. Unknown
// errors are treated as retryable so a transient fault never strands an
// asset prematurely.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind == ErrorKindRetryable
	}
	return true
}

// CallCompleted reports whether the failed call reached the provider and
// completed, which determines whether cost may be charged for it.
func CallCompleted(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Completed
	}
	return false
}
