package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotCanonicalizable = errors.New("not canonicalizable")
	ErrKeyFormat          = errors.New("key format invalid")
	ErrPayloadTooLarge    = errors.New("anchor payload too large")
	ErrInvalidRecord      = errors.New("invalid match record")
	ErrNotFound           = errors.New("not found")
	ErrBatchClosed        = errors.New("batch closed")
	ErrProofInvalid       = errors.New("merkle proof invalid")
	ErrAnchorMissing      = errors.New("anchor missing")
	ErrReplayRejected     = errors.New("replay rejected move log")
)

// TransportError wraps a ledger or store failure with its retry class.
// Transient failures (network, timeout, congestion) may be retried;
// permanent ones (rejected signature, insufficient funds, malformed
// payload) must not. Code, when set, is one of the AnchorError
// constants and ends up on the persisted attempt row.
type TransportError struct {
	Op        string
	Code      string
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s transport error: %v", e.Op, kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransientError(op string, err error) *TransportError {
	return &TransportError{Op: op, Transient: true, Err: err}
}

func NewPermanentError(op string, err error) *TransportError {
	return &TransportError{Op: op, Transient: false, Err: err}
}

// IsTransient reports whether err carries a retryable transport
// classification. Errors outside the TransportError taxonomy are not
// retried.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Transient
	}
	return false
}
