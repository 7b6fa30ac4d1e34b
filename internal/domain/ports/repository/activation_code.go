package repository

import (
	"context"
	"time"

	"device-activation/internal/domain/model"
)

// ActivationCodeRepository is the port for the activation code store.
type ActivationCodeRepository interface {
	// Insert persists a freshly generated, unused code.
	Insert(ctx context.Context, tx Tx, code *model.ActivationCode) error
	// FindByCode looks a code up by its unique token. Returns
	// domain.ErrNotFound when the token is unknown.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.ActivationCode, error)
	// FindBoundByDevice returns the record currently bound to deviceID
	// (used_by = deviceID AND is_used), or domain.ErrNotFound.
	FindBoundByDevice(ctx context.Context, tx Tx, deviceID string) (*model.ActivationCode, error)
	// CodeExists reports whether the token is already present, used during
	// generation to guarantee uniqueness.
	CodeExists(ctx context.Context, tx Tx, code string) (bool, error)
	// Activate performs the atomic conditional bind: it sets
	// is_used/used_at/used_by/expires_at only if the row is still unused.
	// Returns false when zero rows were affected, i.e. a concurrent caller
	// won the race.
	Activate(ctx context.Context, tx Tx, code string, deviceID string, usedAt time.Time, expiresAt *time.Time) (bool, error)
	// FindUsed returns all records with is_used = TRUE.
	FindUsed(ctx context.Context, tx Tx) ([]*model.ActivationCode, error)
	// ReleaseByIDs resets the binding fields of the given rows back to the
	// unused state. The write re-checks `is_used AND actual expiry < now`
	// so rows re-activated after the caller's read are never released.
	ReleaseByIDs(ctx context.Context, tx Tx, ids []string, now time.Time) (int64, error)
	// List returns every record, newest first.
	List(ctx context.Context, tx Tx) ([]*model.ActivationCode, error)
	// Delete removes a record by ID. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, tx Tx, id string) error
}
