package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/pkg/models"
	"bankcore/pkg/policy"
	"bankcore/pkg/store"
)

// Register creates a user with an optional starting balance. Username
// and email must be unique; a clash surfaces as ErrConflict. The
// password arrives already hashed, this layer never sees plaintext.
func (l *Ledger) Register(ctx context.Context, username, email, passwordHash string, role models.Role, initialBalance decimal.Decimal) (*models.User, error) {
	if username == "" || email == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance must not be negative", ErrInvalidInput)
	}

	now := l.now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Balance:      initialBalance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		return mapStoreErr(tx.CreateUser(user))
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: username or email already taken", ErrConflict)
		}
		return nil, err
	}
	l.logger.Info("user registered", "user_id", user.ID, "username", username, "role", role)
	return user, nil
}

// GetUser returns a user profile.
func (l *Ledger) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := l.storage.GetUser(ctx, userID)
	return user, mapStoreErr(err)
}

// ListUsers returns every user; admin tier only.
func (l *Ledger) ListUsers(ctx context.Context, ident Identity) ([]*models.User, error) {
	if !policy.Allowed(ident.Role, policy.OpViewAll) {
		return nil, ErrForbidden
	}
	users, err := l.storage.ListUsers(ctx)
	return users, mapStoreErr(err)
}

// DeleteUser removes a user. Deletion is rejected with ErrConflict while
// loans, investments or payments still reference the user; the audit
// trail stays intact.
func (l *Ledger) DeleteUser(ctx context.Context, ident Identity, userID uuid.UUID) error {
	if !policy.Allowed(ident.Role, policy.OpManageUsers) {
		return ErrForbidden
	}
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		return mapStoreErr(tx.DeleteUser(userID))
	})
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: user has loans, investments or payments", ErrConflict)
	}
	if err != nil {
		return err
	}
	l.logger.Info("user deleted", "user_id", userID, "deleted_by", ident.UserID)
	return nil
}

// UserStats returns the per-user rollups; callers may view their own,
// admin tier may view anyone's.
func (l *Ledger) UserStats(ctx context.Context, ident Identity, userID uuid.UUID) (*models.UserStats, error) {
	if userID != ident.UserID && !policy.AdminTier(ident.Role) {
		return nil, ErrForbidden
	}
	stats, err := l.storage.UserStats(ctx, userID)
	return stats, mapStoreErr(err)
}
