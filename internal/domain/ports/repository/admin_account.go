package repository

import (
	"context"

	"device-activation/internal/domain/model"
)

// AdminAccountRepository is the port for dashboard credential storage.
type AdminAccountRepository interface {
	// FindByUsername returns domain.ErrNotFound when no such account exists.
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.AdminAccount, error)
	// Save creates the account or updates its password hash.
	Save(ctx context.Context, tx Tx, account *model.AdminAccount) error
}
