// Package errors provides the failure taxonomy for the garden queue.
//
// Failures fall into four classes: permanent (retrying identical input
// fails identically), transient (eligible for backoff retry), quota
// (local storage exhausted), and policy (retry budget spent).
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrUnknownKind        = errors.New("no processor registered for job kind")
	ErrEmptyKind          = errors.New("job kind cannot be empty")
	ErrNilProcessor       = errors.New("processor cannot be nil")
	ErrJobNotFound        = errors.New("job not found")
	ErrDuplicateJob       = errors.New("job id already exists")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrStorageQuota       = errors.New("storage quota exceeded")
	ErrRetryBudget        = errors.New("retry budget exhausted")
	ErrBreakerOpen        = errors.New("submission circuit open")
	ErrNotConnected       = errors.New("not connected")
	ErrShutdown           = errors.New("shutting down")
)

// PermanentError marks a failure that will not succeed on an unchanged
// retry: an unregistered kind, an encode failure, a validation failure.
type PermanentError struct {
	Op  string // operation being performed
	Err error  // underlying error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure in %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// TransientError marks a failure worth retrying: network trouble during
// submission, remote unavailability, rate limiting.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Temporary() bool { return true }

// QuotaError marks persistence failing because local storage is full.
// Surfaced distinctly so the consumer can show a storage message instead
// of a generic failure.
type QuotaError struct {
	Store string // backing store name
	Err   error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded on %s: %v", e.Store, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// StoreError wraps a job store operation failure with its context.
type StoreError struct {
	Op    string // operation being performed
	JobID string // job id (if applicable)
	Err   error
}

func (e *StoreError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("store %s for job %s: %v", e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConnectionError represents backend connection failures.
type ConnectionError struct {
	URI string // connection URI (may be redacted)
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

// Helper functions for creating errors

func NewPermanent(op string, err error) error { return &PermanentError{Op: op, Err: err} }

func NewTransient(op string, err error) error { return &TransientError{Op: op, Err: err} }

func NewQuota(store string, err error) error { return &QuotaError{Store: store, Err: err} }

func NewStoreError(op, jobID string, err error) error {
	return &StoreError{Op: op, JobID: jobID, Err: err}
}

func NewConnectionError(uri string, err error) error {
	return &ConnectionError{URI: uri, Err: err}
}

// IsPermanent reports whether the error is known to fail identically on
// retry. Unknown errors are not permanent; classification decides.
func IsPermanent(err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrUnknownKind) || errors.Is(err, ErrRetryBudget)
}

// IsTransient reports whether the error is explicitly retryable.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if t, ok := err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

// IsQuota reports whether the error is a storage quota failure.
func IsQuota(err error) bool {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}
	return errors.Is(err, ErrStorageQuota)
}

// Re-exports so callers need a single errors import.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
