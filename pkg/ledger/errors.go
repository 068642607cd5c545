package ledger

import (
	"errors"

	"bankcore/pkg/store"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidTarget is returned on a self-transfer.
	ErrInvalidTarget = errors.New("cannot transfer to yourself")
	// ErrNotFound is returned when a user, loan or investment does not
	// exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller's role or ownership does
	// not permit the operation.
	ErrForbidden = errors.New("access denied")
	// ErrInvalidInput is returned for non-positive amounts or terms.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when the record's state no longer permits
	// the action, e.g. a referenced user or a loan not accepting payments.
	ErrConflict = errors.New("conflict")
	// ErrStorageUnavailable is returned when the store gave up after
	// bounded retries; callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// mapStoreErr lifts store sentinel errors into the engine taxonomy.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConstraint):
		return ErrConflict
	case errors.Is(err, store.ErrUnavailable):
		return ErrStorageUnavailable
	}
	return err
}
