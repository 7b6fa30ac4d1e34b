package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

var _ repository.SystemConfigRepository = (*systemConfigRepo)(nil)

type systemConfigRepo struct {
	pool *pgxpool.Pool
}

func NewSystemConfigRepo(pool *pgxpool.Pool) repository.SystemConfigRepository {
	return &systemConfigRepo{pool: pool}
}

func (r *systemConfigRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.SystemConfig, error) {
	const q = `SELECT key, value, description, updated_at FROM system_config WHERE key = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	var c model.SystemConfig
	if err := row.Scan(&c.Key, &c.Value, &c.Description, &c.UpdatedAt); err != nil {
		return nil, mapRowError(err)
	}
	return &c, nil
}

func (r *systemConfigRepo) Set(ctx context.Context, tx repository.Tx, entry *model.SystemConfig) error {
	entry.UpdatedAt = time.Now()
	const q = `
INSERT INTO system_config (key, value, description, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  description = CASE WHEN EXCLUDED.description = '' THEN system_config.description ELSE EXCLUDED.description END,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q, entry.Key, entry.Value, entry.Description, entry.UpdatedAt)
	return err
}

func (r *systemConfigRepo) All(ctx context.Context, tx repository.Tx) ([]*model.SystemConfig, error) {
	const q = `SELECT key, value, description, updated_at FROM system_config ORDER BY key;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SystemConfig
	for rows.Next() {
		var c model.SystemConfig
		if err := rows.Scan(&c.Key, &c.Value, &c.Description, &c.UpdatedAt); err != nil {
			return nil, mapRowError(err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
