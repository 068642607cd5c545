package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/pkg/store"
)

// creditBalance adds amount to a user's balance inside tx. It fails with
// ErrNotFound if the user does not exist.
func creditBalance(tx store.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	user, err := tx.GetUser(userID)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := tx.UpdateUserBalance(userID, user.Balance.Add(amount)); err != nil {
		return fmt.Errorf("failed to credit %s: %w", userID, mapStoreErr(err))
	}
	return nil
}

// debitBalance subtracts amount from a user's balance inside tx. The
// balance check and the write happen in the same transaction, so a
// committed debit can never take the balance below zero.
func debitBalance(tx store.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	user, err := tx.GetUser(userID)
	if err != nil {
		return mapStoreErr(err)
	}
	if user.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	if err := tx.UpdateUserBalance(userID, user.Balance.Sub(amount)); err != nil {
		return fmt.Errorf("failed to debit %s: %w", userID, mapStoreErr(err))
	}
	return nil
}

// Balance returns a user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	user, err := l.storage.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, mapStoreErr(err)
	}
	return user.Balance, nil
}
