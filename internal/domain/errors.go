package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidRequest signals malformed input at the service boundary.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedFormat signals a MIME type with no registered parser.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrCorruptInput signals bytes that cannot be decoded by the parser.
	ErrCorruptInput = errors.New("corrupt input")
	// ErrEmptyContent signals a file with zero extractable text.
	ErrEmptyContent = errors.New("no extractable content")

	// ErrRateLimited signals provider quota exhaustion. Transient.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable signals a provider outage or timeout. Transient.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrProviderAuth signals rejected credentials. Fatal, never retried.
	ErrProviderAuth = errors.New("embedding provider authentication failed")
	// ErrDimensionMismatch signals a vector whose length does not match the
	// collection's declared dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrFileTerminal signals an operation on a file in a terminal state
	// that does not permit it (e.g. cancelling a ready file).
	ErrFileTerminal = errors.New("file is in a terminal state")
	// ErrNotRedrivable signals a re-drive on a file that is not failed.
	ErrNotRedrivable = errors.New("file is not in a redrivable state")
)

// ErrorKind is the pipeline error taxonomy. Every task failure is classified
// into exactly one kind, which decides retry behavior and what status(file)
// reports.
type ErrorKind string

const (
	// KindTransientProvider covers rate limits, outages and timeouts.
	KindTransientProvider ErrorKind = "transient_provider_error"
	// KindFatalProvider covers auth and configuration rejections.
	KindFatalProvider ErrorKind = "fatal_provider_error"
	// KindInput covers unsupported, corrupt and empty files.
	KindInput ErrorKind = "input_error"
	// KindDimensionMismatch covers collection/provider dimensionality conflicts.
	KindDimensionMismatch ErrorKind = "dimension_mismatch"
	// KindStorage covers store failures. Retried; fatal only after budget exhaustion.
	KindStorage ErrorKind = "storage_error"
)

// Classify sorts an error into the pipeline taxonomy. Unknown errors are
// treated as storage errors: the stores are the only collaborators whose
// failures are not already wrapped in a sentinel by the time they reach
// the task boundary.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrCorruptInput),
		errors.Is(err, ErrEmptyContent):
		return KindInput
	case errors.Is(err, ErrProviderAuth):
		return KindFatalProvider
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransientProvider
	default:
		return KindStorage
	}
}

// IsTransient reports whether an error of the given kind consumes a retry
// attempt instead of failing the file outright.
func (k ErrorKind) IsTransient() bool {
	return k == KindTransientProvider || k == KindStorage
}
