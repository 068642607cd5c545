package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/pkg/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraint is returned when an insert or delete violates a
	// uniqueness or foreign-key constraint.
	ErrConstraint = errors.New("constraint violation")
	// ErrUnavailable is returned when the database stayed locked past the
	// bounded retry budget.
	ErrUnavailable = errors.New("storage unavailable")
)

// Tx exposes the row operations available inside one atomic transaction.
// Write transactions take the database write lock up front, so every
// read-check-write sequence issued through a Tx is serialized against
// concurrent mutations.
type Tx interface {
	CreateUser(u *models.User) error
	GetUser(id uuid.UUID) (*models.User, error)
	UpdateUserBalance(id uuid.UUID, balance decimal.Decimal) error
	DeleteUser(id uuid.UUID) error

	CreateLoan(l *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(l *models.Loan) error

	CreateInvestment(inv *models.Investment) error
	GetInvestment(id uuid.UUID) (*models.Investment, error)
	UpdateInvestment(inv *models.Investment) error
	DueInvestments(asOf time.Time) ([]*models.Investment, error)

	CreatePayment(p *models.Payment) error

	UpsertSetting(s *models.AdminSetting) error
	DeleteSetting(key string) error
}

// Storage defines the interface for database operations. Mutations go
// through WithTx; the remaining methods are snapshot reads.
type Storage interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListLoans(ctx context.Context) ([]*models.Loan, error)
	ListLoansByUser(ctx context.Context, userID uuid.UUID) ([]*models.Loan, error)

	GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error)
	ListInvestments(ctx context.Context) ([]*models.Investment, error)
	ListInvestmentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Investment, error)

	ListPayments(ctx context.Context) ([]*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)

	GetSetting(ctx context.Context, key string) (*models.AdminSetting, error)
	ListSettings(ctx context.Context) ([]*models.AdminSetting, error)

	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)

	Close() error
}
