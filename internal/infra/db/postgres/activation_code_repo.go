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

// Ensure implementation satisfies the interface.
var _ repository.ActivationCodeRepository = (*activationCodeRepo)(nil)

type activationCodeRepo struct {
	pool *pgxpool.Pool
}

func NewActivationCodeRepo(pool *pgxpool.Pool) repository.ActivationCodeRepository {
	return &activationCodeRepo{pool: pool}
}

const codeColumns = `id, code, is_used, used_at, used_by, valid_days, expires_at, card_type, created_at`

func scanCode(row pgx.Row) (*model.ActivationCode, error) {
	var ac model.ActivationCode
	err := row.Scan(
		&ac.ID, &ac.Code, &ac.IsUsed, &ac.UsedAt, &ac.UsedBy, &ac.ValidDays, &ac.ExpiresAt, &ac.CardType, &ac.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &ac, nil
}

// Insert persists a freshly generated code. Rows start unused; binding
// happens exclusively through Activate.
func (r *activationCodeRepo) Insert(ctx context.Context, tx repository.Tx, code *model.ActivationCode) error {
	if code.ID == "" {
		code.ID = ulid.Make().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO activation_codes (id, code, is_used, used_at, used_by, valid_days, expires_at, card_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Code, code.IsUsed, code.UsedAt, code.UsedBy, code.ValidDays, code.ExpiresAt, code.CardType, code.CreatedAt,
	)
	return err
}

// FindByCode looks a record up by its unique token, used or not.
func (r *activationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM activation_codes WHERE code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

// FindBoundByDevice returns the record currently bound to the device.
// A device can briefly hold a second, stale row after superseding an expired
// binding; ordering by used_at ensures the newest binding is the one seen.
func (r *activationCodeRepo) FindBoundByDevice(ctx context.Context, tx repository.Tx, deviceID string) (*model.ActivationCode, error) {
	const q = `
SELECT ` + codeColumns + `
  FROM activation_codes
 WHERE used_by = $1 AND is_used = TRUE
 ORDER BY used_at DESC NULLS LAST
 LIMIT 1;
`
	row, err := pickRow(ctx, r.pool, tx, q, deviceID)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *activationCodeRepo) CodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM activation_codes WHERE code = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

// Activate is the atomic check-and-bind: the WHERE clause guarantees only
// one concurrent caller can flip an unused row to used. Callers must treat
// a false return as losing the race, not as success.
func (r *activationCodeRepo) Activate(ctx context.Context, tx repository.Tx, code string, deviceID string, usedAt time.Time, expiresAt *time.Time) (bool, error) {
	const q = `
UPDATE activation_codes
   SET is_used = TRUE, used_at = $2, used_by = $3, expires_at = $4
 WHERE code = $1 AND is_used = FALSE;
`
	tag, err := execSQL(ctx, r.pool, tx, q, code, usedAt, deviceID, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *activationCodeRepo) FindUsed(ctx context.Context, tx repository.Tx) ([]*model.ActivationCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM activation_codes WHERE is_used = TRUE;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCodes(rows)
}

// ReleaseByIDs resets bindings back to the unused state. The predicate
// re-checks is_used and the actual expiry at write time so a row activated
// between the caller's read and this write is never released.
func (r *activationCodeRepo) ReleaseByIDs(ctx context.Context, tx repository.Tx, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
UPDATE activation_codes
   SET is_used = FALSE, used_at = NULL, used_by = NULL, expires_at = NULL
 WHERE id = ANY($1)
   AND is_used = TRUE
   AND COALESCE(used_at + make_interval(days => valid_days), expires_at) < $2;
`
	tag, err := execSQL(ctx, r.pool, tx, q, ids, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *activationCodeRepo) List(ctx context.Context, tx repository.Tx) ([]*model.ActivationCode, error) {
	const q = `SELECT ` + codeColumns + ` FROM activation_codes ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCodes(rows)
}

func (r *activationCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM activation_codes WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectCodes(rows pgx.Rows) ([]*model.ActivationCode, error) {
	var out []*model.ActivationCode
	for rows.Next() {
		var ac model.ActivationCode
		if err := rows.Scan(
			&ac.ID, &ac.Code, &ac.IsUsed, &ac.UsedAt, &ac.UsedBy, &ac.ValidDays, &ac.ExpiresAt, &ac.CardType, &ac.CreatedAt,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &ac)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
