package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

var _ repository.AdminAccountRepository = (*adminAccountRepo)(nil)

type adminAccountRepo struct {
	pool *pgxpool.Pool
}

func NewAdminAccountRepo(pool *pgxpool.Pool) repository.AdminAccountRepository {
	return &adminAccountRepo{pool: pool}
}

func (r *adminAccountRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.AdminAccount, error) {
	const q = `
SELECT id, username, password_hash, created_at, updated_at
  FROM admin_accounts
 WHERE username = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, username)
	if err != nil {
		return nil, err
	}
	var a model.AdminAccount
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapRowError(err)
	}
	return &a, nil
}

// Save creates the account or rotates its password hash.
func (r *adminAccountRepo) Save(ctx context.Context, tx repository.Tx, account *model.AdminAccount) error {
	if account.ID == "" {
		account.ID = ulid.Make().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const q = `
INSERT INTO admin_accounts (id, username, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO UPDATE SET
  password_hash = EXCLUDED.password_hash,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q, account.ID, account.Username, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	return err
}

func mapRowError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return domain.ErrReadDatabaseRow
}
