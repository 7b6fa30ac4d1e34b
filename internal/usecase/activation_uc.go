// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
	"device-activation/internal/infra/logging"
)

// VerifyResult is returned on a successful verification.
type VerifyResult struct {
	Code        string
	ExpiresAt   *time.Time // nil means the binding never expires
	Reconfirmed bool       // true when the device re-verified its existing code
}

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

type ActivationUseCase interface {
	// Generate creates count fresh unused codes. validDays is stored
	// verbatim: the validity window only starts at first verification.
	Generate(ctx context.Context, count int, validDays *int, cardType *string) ([]*model.ActivationCode, error)
	// Verify runs the binding state machine for a (code, device) pair.
	Verify(ctx context.Context, code, deviceID string) (*VerifyResult, error)
	// Sweep releases every bound record whose actual expiry precedes now
	// and returns how many were released.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// ExpiredBindings returns the bound records that a sweep at `now`
	// would release, without mutating anything.
	ExpiredBindings(ctx context.Context, now time.Time) ([]*model.ActivationCode, error)
	// Stats aggregates a read-only projection over all codes.
	Stats(ctx context.Context, now time.Time) (*model.CodeStats, error)
	// Delete removes a code by ID.
	Delete(ctx context.Context, id string) error
	// List returns all codes, newest first.
	List(ctx context.Context) ([]*model.ActivationCode, error)
}

type activationUC struct {
	codes       repository.ActivationCodeRepository
	tm          repository.TransactionManager
	pool        *pgxpool.Pool // nil in unit tests; enables per-device advisory locks
	batchMax    int
	retryBudget int

	log *zerolog.Logger
}

// NewActivationUseCase constructs the use case. pool may be nil, in which
// case Verify runs without per-device advisory locking (unit tests only;
// production wiring always passes the pool).
func NewActivationUseCase(
	codes repository.ActivationCodeRepository,
	tm repository.TransactionManager,
	pool *pgxpool.Pool,
	batchMax, retryBudget int,
	logger *zerolog.Logger,
) *activationUC {
	if batchMax <= 0 || batchMax > 100 {
		batchMax = 100
	}
	if retryBudget <= 0 {
		retryBudget = 10
	}
	return &activationUC{
		codes:       codes,
		tm:          tm,
		pool:        pool,
		batchMax:    batchMax,
		retryBudget: retryBudget,
		log:         logger,
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// Generate draws random tokens, retrying each until it does not collide
// with an existing code, and persists one unused row per token.
func (uc *activationUC) Generate(ctx context.Context, count int, validDays *int, cardType *string) ([]*model.ActivationCode, error) {
	if count < 1 || count > uc.batchMax {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidArgument, uc.batchMax)
	}
	if validDays != nil && *validDays < 0 {
		return nil, fmt.Errorf("%w: validDays must not be negative", domain.ErrInvalidArgument)
	}

	out := make([]*model.ActivationCode, 0, count)
	for i := 0; i < count; i++ {
		token, err := uc.drawUniqueToken(ctx)
		if err != nil {
			return nil, err
		}
		rec := &model.ActivationCode{
			Code:      token,
			ValidDays: validDays,
			CardType:  cardType,
			CreatedAt: time.Now(),
		}
		if err := uc.codes.Insert(ctx, repository.NoTX, rec); err != nil {
			return nil, fmt.Errorf("insert activation code: %w", err)
		}
		out = append(out, rec)
	}
	uc.log.Info().Int("count", len(out)).Msg("activation codes generated")
	return out, nil
}

// drawUniqueToken retries random draws until the token is unused. With 64
// bits of entropy the budget is never reached in practice; it exists so a
// broken entropy source fails loudly instead of spinning.
func (uc *activationUC) drawUniqueToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < uc.retryBudget; attempt++ {
		token, err := generateActivationCode()
		if err != nil {
			return "", err
		}
		exists, err := uc.codes.CodeExists(ctx, repository.NoTX, token)
		if err != nil {
			return "", fmt.Errorf("uniqueness check: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", domain.ErrGenerationExhausted
}

// Verify decides, for a (code, device) pair, whether to accept, reject, or
// idempotently re-confirm a binding.
//
// The whole sequence runs inside one transaction holding a per-device
// advisory lock, so two concurrent calls for the same device cannot both
// reach the activation step and acquire different codes.
func (uc *activationUC) Verify(ctx context.Context, code, deviceID string) (*VerifyResult, error) {
	defer logging.TraceDuration(uc.log, "ActivationUC.Verify")()
	if code == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: code and device id are required", domain.ErrInvalidArgument)
	}

	if uc.pool == nil {
		return uc.verifyLocked(ctx, repository.NoTX, code, deviceID, time.Now())
	}

	conn, err := uc.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serialize per device for the whole read-then-activate sequence.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(deviceID)); err != nil {
		return nil, err
	}

	res, err := uc.verifyLocked(ctx, tx, code, deviceID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *activationUC) verifyLocked(ctx context.Context, tx repository.Tx, code, deviceID string, now time.Time) (*VerifyResult, error) {
	existing, err := uc.codes.FindBoundByDevice(ctx, tx, deviceID)
	switch {
	case err == nil:
		expired := existing.IsExpired(now)
		if existing.Code == code {
			if expired {
				return nil, domain.ErrCodeExpired
			}
			// Idempotent re-verification: no mutation, same expiry.
			return &VerifyResult{Code: code, ExpiresAt: existing.ActualExpiry(), Reconfirmed: true}, nil
		}
		if !expired {
			return nil, &domain.DeviceBoundError{BoundCode: existing.Code}
		}
		// The old binding is stale. It deliberately stays is_used=TRUE
		// until the reconciliation sweep releases it; the device may
		// acquire a new code meanwhile.
		logging.With(ctx, uc.log).Info().
			Str("stale_code", existing.Code).
			Msg("expired binding superseded; sweep will release it")
	case errors.Is(err, domain.ErrNotFound):
		// No current binding; proceed to activation.
	default:
		return nil, err
	}

	rec, err := uc.codes.FindByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.IsUsed {
		return nil, domain.ErrCodeAlreadyUsed
	}

	var expiresAt *time.Time
	if rec.ValidDays != nil {
		t := now.Add(time.Duration(*rec.ValidDays) * 24 * time.Hour)
		expiresAt = &t
	}

	ok, err := uc.codes.Activate(ctx, tx, code, deviceID, now, expiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Zero rows affected: a concurrent verification won the race.
		return nil, domain.ErrCodeAlreadyUsed
	}
	return &VerifyResult{Code: code, ExpiresAt: expiresAt}, nil
}

// Sweep releases expired bindings in one transaction: all or nothing.
// Safe to run repeatedly; a second pass with no intervening activity
// releases zero rows.
func (uc *activationUC) Sweep(ctx context.Context, now time.Time) (int, error) {
	defer logging.TraceDuration(uc.log, "ActivationUC.Sweep")()
	var released int64
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		used, err := uc.codes.FindUsed(ctx, tx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(used))
		for _, rec := range used {
			if rec.IsExpired(now) {
				ids = append(ids, rec.ID)
			}
		}
		released, err = uc.codes.ReleaseByIDs(ctx, tx, ids, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		uc.log.Info().Int64("released", released).Msg("expired bindings released")
	}
	return int(released), nil
}

func (uc *activationUC) ExpiredBindings(ctx context.Context, now time.Time) ([]*model.ActivationCode, error) {
	used, err := uc.codes.FindUsed(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	expired := make([]*model.ActivationCode, 0)
	for _, rec := range used {
		if rec.IsExpired(now) {
			expired = append(expired, rec)
		}
	}
	return expired, nil
}

// Stats counts codes by state. Unused codes are always active: their
// validity window has not started yet, so they never report expired.
func (uc *activationUC) Stats(ctx context.Context, now time.Time) (*model.CodeStats, error) {
	all, err := uc.codes.List(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	stats := &model.CodeStats{Total: len(all)}
	for _, rec := range all {
		if !rec.IsUsed {
			stats.Active++
			continue
		}
		stats.Used++
		if rec.IsExpired(now) {
			stats.Expired++
		} else {
			stats.Active++
		}
	}
	return stats, nil
}

func (uc *activationUC) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	}
	err := uc.codes.Delete(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCodeNotFound
	}
	return err
}

func (uc *activationUC) List(ctx context.Context) ([]*model.ActivationCode, error) {
	return uc.codes.List(ctx, repository.NoTX)
}
