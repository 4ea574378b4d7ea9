package filedex

import "github.com/kailas-cloud/filedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrInvalidRequest      = domain.ErrInvalidRequest
	ErrUnsupportedFormat   = domain.ErrUnsupportedFormat
	ErrCorruptInput        = domain.ErrCorruptInput
	ErrEmptyContent        = domain.ErrEmptyContent
	ErrRateLimited         = domain.ErrRateLimited
	ErrProviderUnavailable = domain.ErrProviderUnavailable
	ErrProviderAuth        = domain.ErrProviderAuth
	ErrDimensionMismatch   = domain.ErrDimensionMismatch
	ErrFileTerminal        = domain.ErrFileTerminal
	ErrNotRedrivable       = domain.ErrNotRedrivable
)
