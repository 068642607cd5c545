package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"bankcore/pkg/models"
)

const (
	// txRetries bounds how often a locked transaction is retried before
	// the failure is surfaced as ErrUnavailable.
	txRetries    = 3
	busyTimeout  = 5 * time.Second
	retryBackoff = 50 * time.Millisecond
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
// Transactions are opened with BEGIN IMMEDIATE (_txlock=immediate) so a
// write transaction holds the write lock from its first statement; that
// serializes every read-check-write sequence against concurrent writers.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys, WAL mode and a bounded lock wait
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
// Foreign keys restrict deletion, so a user referenced by loans,
// investments or payments cannot be removed.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		loan_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		monthly_payment TEXT NOT NULL,
		total_repayment TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		approved_by TEXT REFERENCES users(id),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		investment_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		expected_return TEXT NOT NULL,
		maturity_amount TEXT NOT NULL,
		maturity_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS admin_settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL REFERENCES users(id),
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);
	CREATE INDEX IF NOT EXISTS idx_investments_user ON investments(user_id);
	CREATE INDEX IF NOT EXISTS idx_payments_sender ON payments(sender_id);
	CREATE INDEX IF NOT EXISTS idx_payments_receiver ON payments(receiver_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// mapErr translates driver errors into the store sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isBusy(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// WithTx runs fn inside one transaction. A transaction that cannot take
// the write lock is retried a bounded number of times before the error
// is surfaced as ErrUnavailable. Any error from fn rolls everything back.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= txRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
		lastErr = s.runTx(ctx, fn)
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (s *SQLiteStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapErr(err))
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapErr(err))
	}
	return nil
}

// sqliteTx implements Tx on top of a live *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

const userColumns = `id, username, email, password_hash, role, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var idStr, roleStr string
	if err := row.Scan(&idStr, &user.Username, &user.Email, &user.PasswordHash, &roleStr, &user.Balance, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	user.ID = uuid.MustParse(idStr)
	user.Role = models.Role(roleStr)
	return &user, nil
}

func (t *sqliteTx) CreateUser(u *models.User) error {
	_, err := t.tx.Exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Username, u.Email, u.PasswordHash, string(u.Role), u.Balance, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapErr(err))
	}
	return nil
}

func (t *sqliteTx) GetUser(id uuid.UUID) (*models.User, error) {
	row := t.tx.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (t *sqliteTx) UpdateUserBalance(id uuid.UUID, balance decimal.Decimal) error {
	result, err := t.tx.Exec(
		`UPDATE users SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", mapErr(err))
	}
	return checkAffected(result)
}

func (t *sqliteTx) DeleteUser(id uuid.UUID) error {
	result, err := t.tx.Exec(`DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", mapErr(err))
	}
	return checkAffected(result)
}

const loanColumns = `id, user_id, loan_type, amount, interest_rate, term_months, monthly_payment, total_repayment, amount_paid, status, approved_by, created_at, updated_at`

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr, userIDStr, statusStr string
	var approvedBy sql.NullString
	if err := row.Scan(&idStr, &userIDStr, &loan.LoanType, &loan.Amount, &loan.InterestRate, &loan.TermMonths, &loan.MonthlyPayment, &loan.TotalRepayment, &loan.AmountPaid, &statusStr, &approvedBy, &loan.CreatedAt, &loan.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	loan.ID = uuid.MustParse(idStr)
	loan.UserID = uuid.MustParse(userIDStr)
	loan.Status = models.LoanStatus(statusStr)
	if approvedBy.Valid {
		approver := uuid.MustParse(approvedBy.String)
		loan.ApprovedBy = &approver
	}
	return &loan, nil
}

func (t *sqliteTx) CreateLoan(l *models.Loan) error {
	_, err := t.tx.Exec(
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.UserID.String(), l.LoanType, l.Amount, l.InterestRate, l.TermMonths,
		l.MonthlyPayment, l.TotalRepayment, l.AmountPaid, string(l.Status), approvedByValue(l), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", mapErr(err))
	}
	return nil
}

func (t *sqliteTx) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := t.tx.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	return scanLoan(row)
}

func (t *sqliteTx) UpdateLoan(l *models.Loan) error {
	result, err := t.tx.Exec(
		`UPDATE loans SET amount_paid = ?, status = ?, approved_by = ?, updated_at = ? WHERE id = ?`,
		l.AmountPaid, string(l.Status), approvedByValue(l), l.UpdatedAt, l.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", mapErr(err))
	}
	return checkAffected(result)
}

func approvedByValue(l *models.Loan) any {
	if l.ApprovedBy == nil {
		return nil
	}
	return l.ApprovedBy.String()
}

const investmentColumns = `id, user_id, investment_type, amount, frequency, duration_months, expected_return, maturity_amount, maturity_date, status, created_at, updated_at`

func scanInvestment(row rowScanner) (*models.Investment, error) {
	var inv models.Investment
	var idStr, userIDStr, statusStr string
	if err := row.Scan(&idStr, &userIDStr, &inv.InvestmentType, &inv.Amount, &inv.Frequency, &inv.DurationMonths, &inv.ExpectedReturn, &inv.MaturityAmount, &inv.MaturityDate, &statusStr, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	inv.ID = uuid.MustParse(idStr)
	inv.UserID = uuid.MustParse(userIDStr)
	inv.Status = models.InvestmentStatus(statusStr)
	return &inv, nil
}

func (t *sqliteTx) CreateInvestment(inv *models.Investment) error {
	_, err := t.tx.Exec(
		`INSERT INTO investments (`+investmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID.String(), inv.UserID.String(), inv.InvestmentType, inv.Amount, inv.Frequency, inv.DurationMonths,
		inv.ExpectedReturn, inv.MaturityAmount, inv.MaturityDate, string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", mapErr(err))
	}
	return nil
}

func (t *sqliteTx) GetInvestment(id uuid.UUID) (*models.Investment, error) {
	row := t.tx.QueryRow(`SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id.String())
	return scanInvestment(row)
}

func (t *sqliteTx) UpdateInvestment(inv *models.Investment) error {
	result, err := t.tx.Exec(
		`UPDATE investments SET status = ?, updated_at = ? WHERE id = ?`,
		string(inv.Status), inv.UpdatedAt, inv.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update investment: %w", mapErr(err))
	}
	return checkAffected(result)
}

func (t *sqliteTx) DueInvestments(asOf time.Time) ([]*models.Investment, error) {
	rows, err := t.tx.Query(
		`SELECT `+investmentColumns+` FROM investments WHERE status = ? AND maturity_date <= ?`,
		string(models.InvestmentActive), asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get due investments: %w", mapErr(err))
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func (t *sqliteTx) CreatePayment(p *models.Payment) error {
	_, err := t.tx.Exec(
		`INSERT INTO payments (id, sender_id, receiver_id, amount, reason, transaction_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.SenderID.String(), p.ReceiverID.String(), p.Amount, p.Reason, string(p.TransactionType), string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapErr(err))
	}
	return nil
}

func (t *sqliteTx) UpsertSetting(s *models.AdminSetting) error {
	_, err := t.tx.Exec(
		`INSERT INTO admin_settings (setting_key, setting_value, description, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			description = excluded.description,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		s.SettingKey, s.SettingValue, s.Description, s.UpdatedBy.String(), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", mapErr(err))
	}
	return nil
}

func (t *sqliteTx) DeleteSetting(key string) error {
	result, err := t.tx.Exec(`DELETE FROM admin_settings WHERE setting_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", mapErr(err))
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- snapshot reads ---

func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mapErr(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	return scanLoan(row)
}

func (s *SQLiteStore) ListLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", mapErr(err))
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (s *SQLiteStore) ListLoansByUser(ctx context.Context, userID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for user %s: %w", userID, mapErr(err))
	}
	defer rows.Close()
	return collectLoans(rows)
}

func collectLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (s *SQLiteStore) GetInvestment(ctx context.Context, id uuid.UUID) (*models.Investment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id.String())
	return scanInvestment(row)
}

func (s *SQLiteStore) ListInvestments(ctx context.Context) ([]*models.Investment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+investmentColumns+` FROM investments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", mapErr(err))
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func (s *SQLiteStore) ListInvestmentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Investment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+investmentColumns+` FROM investments WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list investments for user %s: %w", userID, mapErr(err))
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func collectInvestments(rows *sql.Rows) ([]*models.Investment, error) {
	var investments []*models.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment row: %w", err)
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

const paymentColumns = `id, sender_id, receiver_id, amount, reason, transaction_type, status, created_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var idStr, senderStr, receiverStr, typeStr, statusStr string
	if err := row.Scan(&idStr, &senderStr, &receiverStr, &p.Amount, &p.Reason, &typeStr, &statusStr, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.ID = uuid.MustParse(idStr)
	p.SenderID = uuid.MustParse(senderStr)
	p.ReceiverID = uuid.MustParse(receiverStr)
	p.TransactionType = models.TransactionType(typeStr)
	p.Status = models.PaymentStatus(statusStr)
	return &p, nil
}

func (s *SQLiteStore) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", mapErr(err))
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *SQLiteStore) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE sender_id = ? OR receiver_id = ? ORDER BY created_at DESC`,
		userID.String(), userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for user %s: %w", userID, mapErr(err))
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (*models.AdminSetting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT setting_key, setting_value, description, updated_by, updated_at FROM admin_settings WHERE setting_key = ?`, key)
	return scanSetting(row)
}

func (s *SQLiteStore) ListSettings(ctx context.Context) ([]*models.AdminSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT setting_key, setting_value, description, updated_by, updated_at FROM admin_settings ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", mapErr(err))
	}
	defer rows.Close()

	var settings []*models.AdminSetting
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

func scanSetting(row rowScanner) (*models.AdminSetting, error) {
	var setting models.AdminSetting
	var updatedBy string
	if err := row.Scan(&setting.SettingKey, &setting.SettingValue, &setting.Description, &updatedBy, &setting.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	setting.UpdatedBy = uuid.MustParse(updatedBy)
	return &setting, nil
}

// DashboardStats computes the admin rollups. These are advisory reads
// outside any write transaction; amounts are aggregated as REAL, which
// is acceptable for a dashboard.
func (s *SQLiteStore) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", mapErr(err))
	}

	var loanAmount float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(amount AS REAL)), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0)
		FROM loans`,
	).Scan(&stats.Loans.Total, &loanAmount, &stats.Loans.Pending, &stats.Loans.Approved, &stats.Loans.Paid)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate loans: %w", mapErr(err))
	}
	stats.Loans.TotalAmount = decimal.NewFromFloat(loanAmount)

	var invAmount float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(amount AS REAL)), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'matured' THEN 1 ELSE 0 END), 0)
		FROM investments`,
	).Scan(&stats.Investments.Total, &invAmount, &stats.Investments.Active, &stats.Investments.Matured)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate investments: %w", mapErr(err))
	}
	stats.Investments.TotalAmount = decimal.NewFromFloat(invAmount)

	var payAmount, monthly float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(amount AS REAL)), 0),
			COALESCE(SUM(CASE WHEN created_at >= datetime('now', '-30 days') THEN CAST(amount AS REAL) ELSE 0 END), 0)
		FROM payments`,
	).Scan(&stats.Payments.Total, &payAmount, &monthly)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments: %w", mapErr(err))
	}
	stats.Payments.TotalAmount = decimal.NewFromFloat(payAmount)
	stats.Payments.MonthlyVolume = decimal.NewFromFloat(monthly)

	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", mapErr(err))
	}
	defer rows.Close()
	recent, err := collectLoans(rows)
	if err != nil {
		return nil, err
	}
	for _, loan := range recent {
		stats.RecentActivity = append(stats.RecentActivity, *loan)
	}
	return stats, nil
}

// UserStats computes the per-user rollups.
func (s *SQLiteStore) UserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats := &models.UserStats{}
	id := userID.String()

	var loanAmount, loanPaid float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(amount AS REAL)), 0),
			COALESCE(SUM(CAST(amount_paid AS REAL)), 0)
		FROM loans WHERE user_id = ?`, id,
	).Scan(&stats.TotalLoans, &loanAmount, &loanPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user loans: %w", mapErr(err))
	}
	stats.TotalLoanAmount = decimal.NewFromFloat(loanAmount)
	stats.TotalLoanPaid = decimal.NewFromFloat(loanPaid)

	var invAmount, expected float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(amount AS REAL)), 0),
			COALESCE(SUM(CAST(maturity_amount AS REAL)), 0)
		FROM investments WHERE user_id = ?`, id,
	).Scan(&stats.TotalInvestments, &invAmount, &expected)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user investments: %w", mapErr(err))
	}
	stats.TotalInvestmentAmount = decimal.NewFromFloat(invAmount)
	stats.ExpectedReturns = decimal.NewFromFloat(expected)

	var sent, received float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN sender_id = ? THEN CAST(amount AS REAL) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN receiver_id = ? THEN CAST(amount AS REAL) ELSE 0 END), 0)
		FROM payments WHERE sender_id = ? OR receiver_id = ?`, id, id, id, id,
	).Scan(&stats.TotalTransactions, &sent, &received)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user payments: %w", mapErr(err))
	}
	stats.TotalSent = decimal.NewFromFloat(sent)
	stats.TotalReceived = decimal.NewFromFloat(received)
	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
