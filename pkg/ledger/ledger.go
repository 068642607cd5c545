// Package ledger holds the business logic for accounts, loans,
// investments and transfers. Every mutation runs inside a single storage
// transaction so a balance change and the records that caused it commit
// together or not at all.
package ledger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bankcore/pkg/models"
	"bankcore/pkg/store"
)

// Identity is the authenticated caller of an engine operation. It is
// supplied by the authentication layer and trusted as given.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// Ledger handles the business logic for all balance-mutating operations.
type Ledger struct {
	storage store.Storage
	logger  *slog.Logger
	now     func() time.Time // injectable clock for maturity date handling
}

// New creates a Ledger on top of a Storage implementation.
func New(s store.Storage, logger *slog.Logger) *Ledger {
	return &Ledger{
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
}
