package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/pkg/models"
	"bankcore/pkg/policy"
	"bankcore/pkg/store"
)

// Transfer moves amount from the caller to receiverID and records the
// payment. Both balance mutations and the audit insert commit as one
// unit; on any failure nothing is applied.
func (l *Ledger) Transfer(ctx context.Context, ident Identity, receiverID uuid.UUID, amount decimal.Decimal, reason string) (*models.Payment, error) {
	if !policy.Allowed(ident.Role, policy.OpTransfer) {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if receiverID == ident.UserID {
		return nil, ErrInvalidTarget
	}

	payment := &models.Payment{
		ID:              uuid.New(),
		SenderID:        ident.UserID,
		ReceiverID:      receiverID,
		Amount:          amount,
		Reason:          reason,
		TransactionType: models.TransactionTypeTransfer,
		Status:          models.PaymentCompleted,
		CreatedAt:       l.now(),
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		if err := debitBalance(tx, ident.UserID, amount); err != nil {
			return err
		}
		if err := creditBalance(tx, receiverID, amount); err != nil {
			return err
		}
		return tx.CreatePayment(payment)
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("transfer completed", "payment_id", payment.ID, "sender_id", ident.UserID, "receiver_id", receiverID, "amount", amount)
	return payment, nil
}

// ListPayments returns all payments for admin-tier callers, the
// caller's own (sent or received) otherwise.
func (l *Ledger) ListPayments(ctx context.Context, ident Identity) ([]*models.Payment, error) {
	if policy.AdminTier(ident.Role) {
		payments, err := l.storage.ListPayments(ctx)
		return payments, mapStoreErr(err)
	}
	payments, err := l.storage.ListPaymentsByUser(ctx, ident.UserID)
	return payments, mapStoreErr(err)
}
