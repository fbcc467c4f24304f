package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or invariant-violating input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a concurrent or duplicate request.
	ErrConflict = errors.New("conflict")
	// ErrIntegrity signals that a paired item/ledger write was only half applied.
	ErrIntegrity = errors.New("integrity violation")
	// ErrStorageUnavailable indicates the backing store could not serve the call.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
