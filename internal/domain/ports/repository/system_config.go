package repository

import (
	"context"

	"device-activation/internal/domain/model"
)

// SystemConfigRepository is the port for keyed dashboard configuration.
type SystemConfigRepository interface {
	// Get returns domain.ErrNotFound for unknown keys.
	Get(ctx context.Context, tx Tx, key string) (*model.SystemConfig, error)
	// Set upserts a key. An empty description leaves the stored one intact.
	Set(ctx context.Context, tx Tx, entry *model.SystemConfig) error
	// All returns every entry.
	All(ctx context.Context, tx Tx) ([]*model.SystemConfig, error)
}
