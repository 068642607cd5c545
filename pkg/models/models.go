package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the closed set of account roles. Authorization decisions go
// through pkg/policy; nothing should compare role strings ad hoc.
type Role string

const (
	RoleUser            Role = "user"
	RoleAdmin           Role = "admin"
	RoleMaster          Role = "master"
	RoleMasterAssistant Role = "master_assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleMaster, RoleMasterAssistant:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         Role            `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
	LoanPaid     LoanStatus = "paid"
)

type Loan struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	LoanType       string          `json:"loan_type"`
	Amount         decimal.Decimal `json:"amount"`        // principal
	InterestRate   decimal.Decimal `json:"interest_rate"` // annual %
	TermMonths     int             `json:"term_months"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalRepayment decimal.Decimal `json:"total_repayment"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Status         LoanStatus      `json:"status"`
	ApprovedBy     *uuid.UUID      `json:"approved_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentMatured   InvestmentStatus = "matured"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

type Investment struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	InvestmentType string           `json:"investment_type"`
	Amount         decimal.Decimal  `json:"amount"`
	Frequency      string           `json:"frequency"`
	DurationMonths int              `json:"duration_months"`
	ExpectedReturn decimal.Decimal  `json:"expected_return"` // annual %
	MaturityAmount decimal.Decimal  `json:"maturity_amount"`
	MaturityDate   time.Time        `json:"maturity_date"`
	Status         InvestmentStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "transfer"
	// TransactionTypeLoanDisbursement records the principal credit at loan
	// approval. The system this replaces reused the repayment label here;
	// disbursements now carry their own kind.
	TransactionTypeLoanDisbursement TransactionType = "loan_disbursement"
	TransactionTypeLoanRepayment    TransactionType = "loan_repayment"
)

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
)

// Payment is an append-only audit record. Rows are never updated after
// creation.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	SenderID        uuid.UUID       `json:"sender_id"`
	ReceiverID      uuid.UUID       `json:"receiver_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	TransactionType TransactionType `json:"transaction_type"`
	Status          PaymentStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

type AdminSetting struct {
	SettingKey   string    `json:"setting_key"`
	SettingValue string    `json:"setting_value"`
	Description  string    `json:"description"`
	UpdatedBy    uuid.UUID `json:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoanStats is the dashboard rollup over all loans.
type LoanStats struct {
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Pending     int             `json:"pending"`
	Approved    int             `json:"approved"`
	Paid        int             `json:"paid"`
}

type InvestmentStats struct {
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Active      int             `json:"active"`
	Matured     int             `json:"matured"`
}

type PaymentStats struct {
	Total         int             `json:"total"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	MonthlyVolume decimal.Decimal `json:"monthly_volume"`
}

type DashboardStats struct {
	TotalUsers     int             `json:"total_users"`
	Loans          LoanStats       `json:"loans"`
	Investments    InvestmentStats `json:"investments"`
	Payments       PaymentStats    `json:"payments"`
	RecentActivity []Loan          `json:"recent_activity"`
}

// UserStats is the per-user rollup shown on profile pages.
type UserStats struct {
	TotalLoans            int             `json:"total_loans"`
	TotalLoanAmount       decimal.Decimal `json:"total_loan_amount"`
	TotalLoanPaid         decimal.Decimal `json:"total_loan_paid"`
	TotalInvestments      int             `json:"total_investments"`
	TotalInvestmentAmount decimal.Decimal `json:"total_investment_amount"`
	ExpectedReturns       decimal.Decimal `json:"expected_returns"`
	TotalTransactions     int             `json:"total_transactions"`
	TotalSent             decimal.Decimal `json:"total_sent"`
	TotalReceived         decimal.Decimal `json:"total_received"`
}
