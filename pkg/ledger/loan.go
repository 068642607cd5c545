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

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// amortize computes the equal monthly installment for a principal at an
// annual percentage rate over termMonths, and the resulting total
// repayment. A zero rate degenerates to straight division.
func amortize(amount, annualRate decimal.Decimal, termMonths int) (monthly, total decimal.Decimal) {
	term := decimal.NewFromInt(int64(termMonths))
	monthlyRate := annualRate.Div(hundred).Div(twelve)
	if monthlyRate.IsPositive() {
		factor := one.Add(monthlyRate).Pow(term)
		monthly = amount.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one))
	} else {
		monthly = amount.Div(term)
	}
	return monthly, monthly.Mul(term)
}

// CreateLoan records a loan request. The principal is not advanced until
// an administrator approves it, so no balance is touched here.
func (l *Ledger) CreateLoan(ctx context.Context, ident Identity, loanType string, amount decimal.Decimal, termMonths int, interestRate decimal.Decimal) (*models.Loan, error) {
	if !policy.Allowed(ident.Role, policy.OpCreateLoan) {
		return nil, ErrForbidden
	}
	if termMonths <= 0 {
		return nil, fmt.Errorf("%w: term must be positive", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if interestRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate must not be negative", ErrInvalidInput)
	}

	monthly, total := amortize(amount, interestRate, termMonths)
	now := l.now()
	loan := &models.Loan{
		ID:             uuid.New(),
		UserID:         ident.UserID,
		LoanType:       loanType,
		Amount:         amount,
		InterestRate:   interestRate,
		TermMonths:     termMonths,
		MonthlyPayment: monthly,
		TotalRepayment: total,
		AmountPaid:     decimal.Zero,
		Status:         models.LoanPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateLoan(loan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", mapStoreErr(err))
	}
	l.logger.Info("loan requested", "loan_id", loan.ID, "user_id", ident.UserID, "amount", amount)
	return loan, nil
}

// ApproveLoan transitions a pending loan to approved, credits the
// principal to the borrower and writes the disbursement audit row, all
// in one transaction. Approving a non-pending loan is a no-op, so a
// repeated approval never credits twice.
func (l *Ledger) ApproveLoan(ctx context.Context, ident Identity, loanID uuid.UUID) error {
	if !policy.Allowed(ident.Role, policy.OpApproveLoan) {
		return ErrForbidden
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		loan, err := tx.GetLoan(loanID)
		if err != nil {
			return mapStoreErr(err)
		}
		if loan.Status != models.LoanPending {
			return nil
		}

		approver := ident.UserID
		loan.Status = models.LoanApproved
		loan.ApprovedBy = &approver
		loan.UpdatedAt = l.now()
		if err := tx.UpdateLoan(loan); err != nil {
			return mapStoreErr(err)
		}
		if err := creditBalance(tx, loan.UserID, loan.Amount); err != nil {
			return err
		}
		return tx.CreatePayment(&models.Payment{
			ID:              uuid.New(),
			SenderID:        ident.UserID,
			ReceiverID:      loan.UserID,
			Amount:          loan.Amount,
			Reason:          fmt.Sprintf("Loan approved: %s", loan.LoanType),
			TransactionType: models.TransactionTypeLoanDisbursement,
			Status:          models.PaymentCompleted,
			CreatedAt:       l.now(),
		})
	})
	if err != nil {
		return err
	}
	l.logger.Info("loan approved", "loan_id", loanID, "approved_by", ident.UserID)
	return nil
}

// RejectLoan transitions a pending loan to rejected. No balance effect;
// no-op on non-pending loans.
func (l *Ledger) RejectLoan(ctx context.Context, ident Identity, loanID uuid.UUID) error {
	if !policy.Allowed(ident.Role, policy.OpRejectLoan) {
		return ErrForbidden
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		loan, err := tx.GetLoan(loanID)
		if err != nil {
			return mapStoreErr(err)
		}
		if loan.Status != models.LoanPending {
			return nil
		}
		loan.Status = models.LoanRejected
		loan.UpdatedAt = l.now()
		return mapStoreErr(tx.UpdateLoan(loan))
	})
	if err != nil {
		return err
	}
	l.logger.Info("loan rejected", "loan_id", loanID, "rejected_by", ident.UserID)
	return nil
}

// RepayLoan applies a payment against the caller's approved loan:
// debits the payer, increments amount_paid and, once the total repayment
// is covered, transitions the loan to paid. Overpayment is accepted and
// retained. Returns the remaining amount owed.
func (l *Ledger) RepayLoan(ctx context.Context, ident Identity, loanID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !policy.Allowed(ident.Role, policy.OpRepayLoan) {
		return decimal.Zero, ErrForbidden
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var remaining decimal.Decimal
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		loan, err := tx.GetLoan(loanID)
		if err != nil {
			return mapStoreErr(err)
		}
		if loan.UserID != ident.UserID {
			return ErrNotFound
		}
		if loan.Status != models.LoanApproved {
			return fmt.Errorf("%w: loan is not accepting repayments", ErrConflict)
		}

		if err := debitBalance(tx, ident.UserID, amount); err != nil {
			return err
		}

		loan.AmountPaid = loan.AmountPaid.Add(amount)
		if loan.AmountPaid.GreaterThanOrEqual(loan.TotalRepayment) {
			loan.Status = models.LoanPaid
		}
		loan.UpdatedAt = l.now()
		if err := tx.UpdateLoan(loan); err != nil {
			return mapStoreErr(err)
		}

		remaining = loan.TotalRepayment.Sub(loan.AmountPaid)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return tx.CreatePayment(&models.Payment{
			ID:              uuid.New(),
			SenderID:        ident.UserID,
			ReceiverID:      *loan.ApprovedBy,
			Amount:          amount,
			Reason:          fmt.Sprintf("Loan repayment: %s", loan.LoanType),
			TransactionType: models.TransactionTypeLoanRepayment,
			Status:          models.PaymentCompleted,
			CreatedAt:       l.now(),
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.logger.Info("loan repayment", "loan_id", loanID, "user_id", ident.UserID, "amount", amount, "remaining", remaining)
	return remaining, nil
}

// GetLoan retrieves a loan visible to the caller: admins see any loan,
// users only their own.
func (l *Ledger) GetLoan(ctx context.Context, ident Identity, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if loan.UserID != ident.UserID && !policy.AdminTier(ident.Role) {
		return nil, ErrNotFound
	}
	return loan, nil
}

// ListLoans returns all loans for admin-tier callers, the caller's own
// loans otherwise.
func (l *Ledger) ListLoans(ctx context.Context, ident Identity) ([]*models.Loan, error) {
	if policy.AdminTier(ident.Role) {
		loans, err := l.storage.ListLoans(ctx)
		return loans, mapStoreErr(err)
	}
	loans, err := l.storage.ListLoansByUser(ctx, ident.UserID)
	return loans, mapStoreErr(err)
}
