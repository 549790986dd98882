package errors

import stderrors "errors"

// Failure kinds. Every error raised while initializing or verifying a transfer
// wraps exactly one of these so callers can classify it with errors.Is.
var (
	ErrMalformedInput      = stderrors.New("malformed input")
	ErrPreconditionFailure = stderrors.New("precondition failure")
	ErrResolutionMismatch  = stderrors.New("resolution mismatch")
	ErrCredentialInvalid   = stderrors.New("credential invalid")
	ErrAllocationConflict  = stderrors.New("allocation conflict")
)

var kinds = []error{
	ErrMalformedInput,
	ErrPreconditionFailure,
	ErrResolutionMismatch,
	ErrCredentialInvalid,
	ErrAllocationConflict,
}

// Kind returns the failure kind wrapped by err, or nil when err does not
// belong to the taxonomy.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if stderrors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindLabel returns a short label for the kind of err, suitable for metrics.
func KindLabel(err error) string {
	switch Kind(err) {
	case ErrMalformedInput:
		return "malformed_input"
	case ErrPreconditionFailure:
		return "precondition_failure"
	case ErrResolutionMismatch:
		return "resolution_mismatch"
	case ErrCredentialInvalid:
		return "credential_invalid"
	case ErrAllocationConflict:
		return "allocation_conflict"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error with the supplied message that reports kind
// through errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
