package inventory

import (
	"fmt"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ErrItemNotFound indicates the referenced item does not exist.
var ErrItemNotFound = fmt.Errorf("inventory: item %w", shared.ErrNotFound)

// ValidationError describes malformed or invariant-violating input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "inventory: " + e.Reason
	}
	return fmt.Sprintf("inventory: %s %s", e.Field, e.Reason)
}

// Unwrap lets callers match shared.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

// IntegrityError reports that one half of an item/ledger pair was written and
// the other was not. Operators must reconcile by hand.
type IntegrityError struct {
	Op     string
	ItemID string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("inventory: %s on item %s left item and ledger out of step: %v", e.Op, e.ItemID, e.Err)
}

// Unwrap exposes both shared.ErrIntegrity and the underlying cause.
func (e *IntegrityError) Unwrap() []error {
	return []error{shared.ErrIntegrity, e.Err}
}

// StorageError wraps a failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("inventory: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both shared.ErrStorageUnavailable and the driver error.
func (e *StorageError) Unwrap() []error {
	return []error{shared.ErrStorageUnavailable, e.Err}
}
