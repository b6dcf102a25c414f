package types

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every caller contract violation. Errors that
// wrap it are surfaced to the caller and never retried.
var ErrValidation = errors.New("validation error")

// Validation errors. Each wraps ErrValidation.
var (
	ErrInvalidURI       = fmt.Errorf("%w: invalid uri", ErrValidation)
	ErrInvalidQuery     = fmt.Errorf("%w: malformed query", ErrValidation)
	ErrInvalidField     = fmt.Errorf("%w: unknown field", ErrValidation)
	ErrInvalidRemoveKey = fmt.Errorf("%w: exactly one of uri or title is required", ErrValidation)
	ErrUpdateURI        = fmt.Errorf("%w: uri cannot be updated", ErrValidation)
)

// Store errors.
var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrStoreCorruption = errors.New("store corruption")
	ErrUnknownLocation = errors.New("unknown storage location")
	ErrLocationEmpty   = errors.New("storage location must not be empty")
	ErrBlobNotFound    = errors.New("blob not found")
)
