package ledger

import (
	"context"

	"bankcore/pkg/models"
	"bankcore/pkg/policy"
)

// DashboardStats returns the admin dashboard rollups. The numbers are
// derived reads, not authoritative ledger state.
func (l *Ledger) DashboardStats(ctx context.Context, ident Identity) (*models.DashboardStats, error) {
	if !policy.Allowed(ident.Role, policy.OpViewStats) {
		return nil, ErrForbidden
	}
	stats, err := l.storage.DashboardStats(ctx)
	return stats, mapStoreErr(err)
}
