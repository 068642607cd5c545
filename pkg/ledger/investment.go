package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/pkg/models"
	"bankcore/pkg/policy"
	"bankcore/pkg/store"
)

// cancelRefundRate is the fraction of principal returned when an
// investment is cancelled before maturity (flat 5% penalty).
var cancelRefundRate = decimal.NewFromFloat(0.95)

// maturityAmount projects the simple prorated return:
// amount * (1 + rate/100 * months/12).
func maturityAmount(amount, expectedReturn decimal.Decimal, durationMonths int) decimal.Decimal {
	months := decimal.NewFromInt(int64(durationMonths))
	return amount.Mul(one.Add(expectedReturn.Div(hundred).Mul(months.Div(twelve))))
}

// CreateInvestment debits the principal from the owner and records the
// investment as active, atomically. The maturity date uses a fixed
// 30-day month, not calendar months.
func (l *Ledger) CreateInvestment(ctx context.Context, ident Identity, investmentType string, amount decimal.Decimal, frequency string, durationMonths int, expectedReturn decimal.Decimal) (*models.Investment, error) {
	if !policy.Allowed(ident.Role, policy.OpCreateInvestment) {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if durationMonths <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if expectedReturn.IsNegative() {
		return nil, fmt.Errorf("%w: expected return must not be negative", ErrInvalidInput)
	}

	now := l.now()
	inv := &models.Investment{
		ID:             uuid.New(),
		UserID:         ident.UserID,
		InvestmentType: investmentType,
		Amount:         amount,
		Frequency:      frequency,
		DurationMonths: durationMonths,
		ExpectedReturn: expectedReturn,
		MaturityAmount: maturityAmount(amount, expectedReturn, durationMonths),
		MaturityDate:   now.Add(time.Duration(durationMonths) * 30 * 24 * time.Hour),
		Status:         models.InvestmentActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		if err := debitBalance(tx, ident.UserID, amount); err != nil {
			return err
		}
		return tx.CreateInvestment(inv)
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("investment created", "investment_id", inv.ID, "user_id", ident.UserID, "amount", amount)
	return inv, nil
}

// MatureInvestment credits the maturity amount to the owner and marks
// the investment matured. The status check and the transition share one
// transaction, so concurrent calls cannot credit twice; calling it on a
// non-active investment is a no-op.
func (l *Ledger) MatureInvestment(ctx context.Context, investmentID uuid.UUID) error {
	return l.storage.WithTx(ctx, func(tx store.Tx) error {
		inv, err := tx.GetInvestment(investmentID)
		if err != nil {
			return mapStoreErr(err)
		}
		return l.matureTx(tx, inv)
	})
}

func (l *Ledger) matureTx(tx store.Tx, inv *models.Investment) error {
	if inv.Status != models.InvestmentActive {
		return nil
	}
	inv.Status = models.InvestmentMatured
	inv.UpdatedAt = l.now()
	if err := tx.UpdateInvestment(inv); err != nil {
		return mapStoreErr(err)
	}
	if err := creditBalance(tx, inv.UserID, inv.MaturityAmount); err != nil {
		return err
	}
	l.logger.Info("investment matured", "investment_id", inv.ID, "user_id", inv.UserID, "maturity_amount", inv.MaturityAmount)
	return nil
}

// MatureDueInvestments matures every active investment whose maturity
// date has passed. It is called periodically from the server loop.
func (l *Ledger) MatureDueInvestments(ctx context.Context) (int, error) {
	matured := 0
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		due, err := tx.DueInvestments(l.now())
		if err != nil {
			return mapStoreErr(err)
		}
		for _, inv := range due {
			if err := l.matureTx(tx, inv); err != nil {
				return err
			}
			matured++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matured, nil
}

// CancelInvestment refunds 95% of the principal to the owner and marks
// the investment cancelled. Cancelling a non-active investment is a
// no-op with a zero refund.
func (l *Ledger) CancelInvestment(ctx context.Context, ident Identity, investmentID uuid.UUID) (decimal.Decimal, error) {
	if !policy.Allowed(ident.Role, policy.OpCancelInvestment) {
		return decimal.Zero, ErrForbidden
	}

	refund := decimal.Zero
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		inv, err := tx.GetInvestment(investmentID)
		if err != nil {
			return mapStoreErr(err)
		}
		if inv.UserID != ident.UserID {
			return ErrNotFound
		}
		if inv.Status != models.InvestmentActive {
			return nil
		}
		inv.Status = models.InvestmentCancelled
		inv.UpdatedAt = l.now()
		if err := tx.UpdateInvestment(inv); err != nil {
			return mapStoreErr(err)
		}
		refund = inv.Amount.Mul(cancelRefundRate)
		return creditBalance(tx, inv.UserID, refund)
	})
	if err != nil {
		return decimal.Zero, err
	}
	if refund.IsPositive() {
		l.logger.Info("investment cancelled", "investment_id", investmentID, "user_id", ident.UserID, "refund", refund)
	}
	return refund, nil
}

// ListInvestments returns all investments for admin-tier callers, the
// caller's own investments otherwise.
func (l *Ledger) ListInvestments(ctx context.Context, ident Identity) ([]*models.Investment, error) {
	if policy.AdminTier(ident.Role) {
		investments, err := l.storage.ListInvestments(ctx)
		return investments, mapStoreErr(err)
	}
	investments, err := l.storage.ListInvestmentsByUser(ctx, ident.UserID)
	return investments, mapStoreErr(err)
}
