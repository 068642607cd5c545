package ledger

import (
	"context"

	"bankcore/pkg/models"
	"bankcore/pkg/policy"
	"bankcore/pkg/store"
)

// ListSettings returns every admin setting. Reads are open to the
// whole admin tier; mutation stays with admin and master.
func (l *Ledger) ListSettings(ctx context.Context, ident Identity) ([]*models.AdminSetting, error) {
	if !policy.AdminTier(ident.Role) {
		return nil, ErrForbidden
	}
	settings, err := l.storage.ListSettings(ctx)
	return settings, mapStoreErr(err)
}

// GetSetting returns one admin setting by key.
func (l *Ledger) GetSetting(ctx context.Context, ident Identity, key string) (*models.AdminSetting, error) {
	if !policy.AdminTier(ident.Role) {
		return nil, ErrForbidden
	}
	setting, err := l.storage.GetSetting(ctx, key)
	return setting, mapStoreErr(err)
}

// PutSetting creates or updates a setting (upsert semantics).
func (l *Ledger) PutSetting(ctx context.Context, ident Identity, key, value, description string) error {
	if !policy.Allowed(ident.Role, policy.OpManageSettings) {
		return ErrForbidden
	}
	if key == "" {
		return ErrInvalidInput
	}
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		return mapStoreErr(tx.UpsertSetting(&models.AdminSetting{
			SettingKey:   key,
			SettingValue: value,
			Description:  description,
			UpdatedBy:    ident.UserID,
			UpdatedAt:    l.now(),
		}))
	})
	if err != nil {
		return err
	}
	l.logger.Info("setting updated", "key", key, "updated_by", ident.UserID)
	return nil
}

// DeleteSetting removes a setting by key.
func (l *Ledger) DeleteSetting(ctx context.Context, ident Identity, key string) error {
	if !policy.Allowed(ident.Role, policy.OpManageSettings) {
		return ErrForbidden
	}
	return l.storage.WithTx(ctx, func(tx store.Tx) error {
		return mapStoreErr(tx.DeleteSetting(key))
	})
}
