//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager runs the callback without a real transaction; the in-memory
// repos serialize internally.
type mockTxManager struct{}

func newMockTxManager() *mockTxManager { return &mockTxManager{} }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// memCodeRepo is a small in-memory implementation used by unit tests.
type memCodeRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.ActivationCode
	nextID  int
	insErr  error // simulate insert failures
	findErr error

	// ExistsFunc overrides CodeExists when set (e.g. to force collisions).
	ExistsFunc func(code string) (bool, error)
	// ActivateFunc overrides Activate when set (e.g. to lose the
	// conditional update).
	ActivateFunc func(code, deviceID string) (bool, error)
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{byID: map[string]*model.ActivationCode{}}
}

func (m *memCodeRepo) Insert(ctx context.Context, tx repository.Tx, code *model.ActivationCode) error {
	if m.insErr != nil {
		return m.insErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if code.ID == "" {
		m.nextID++
		code.ID = fmt.Sprintf("id-%d", m.nextID)
	}
	cp := *code
	m.byID[code.ID] = &cp
	return nil
}

func (m *memCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byID {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindBoundByDevice returns the newest binding for the device, matching the
// SQL's ORDER BY used_at DESC NULLS LAST.
func (m *memCodeRepo) FindBoundByDevice(ctx context.Context, tx repository.Tx, deviceID string) (*model.ActivationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *model.ActivationCode
	for _, c := range m.byID {
		if !c.IsUsed || c.UsedBy == nil || *c.UsedBy != deviceID {
			continue
		}
		if newest == nil {
			newest = c
			continue
		}
		switch {
		case c.UsedAt == nil:
			// nil used_at sorts last
		case newest.UsedAt == nil, c.UsedAt.After(*newest.UsedAt):
			newest = c
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *memCodeRepo) CodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(code)
	}
	_, err := m.FindByCode(ctx, tx, code)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (m *memCodeRepo) Activate(ctx context.Context, tx repository.Tx, code string, deviceID string, usedAt time.Time, expiresAt *time.Time) (bool, error) {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(code, deviceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Code == code && !c.IsUsed {
			c.IsUsed = true
			at := usedAt
			dev := deviceID
			c.UsedAt = &at
			c.UsedBy = &dev
			c.ExpiresAt = expiresAt
			return true, nil
		}
	}
	return false, nil
}

func (m *memCodeRepo) FindUsed(ctx context.Context, tx repository.Tx) ([]*model.ActivationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ActivationCode
	for _, c := range m.byID {
		if c.IsUsed {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memCodeRepo) ReleaseByIDs(ctx context.Context, tx repository.Tx, ids []string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := m.byID[id]
		if !ok || !c.IsUsed || !c.IsExpired(now) {
			continue // write-time re-filter, same as the SQL predicate
		}
		c.IsUsed = false
		c.UsedAt = nil
		c.UsedBy = nil
		c.ExpiresAt = nil
		n++
	}
	return n, nil
}

func (m *memCodeRepo) List(ctx context.Context, tx repository.Tx) ([]*model.ActivationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ActivationCode
	for _, c := range m.byID {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// get returns the live stored record (not a copy) for assertions.
func (m *memCodeRepo) get(code string) *model.ActivationCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byID {
		if c.Code == code {
			return c
		}
	}
	return nil
}

// memAdminRepo is an in-memory credential store.
type memAdminRepo struct {
	mu    sync.RWMutex
	byUser map[string]*model.AdminAccount
}

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{byUser: map[string]*model.AdminAccount{}}
}

func (m *memAdminRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.AdminAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byUser[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAdminRepo) Save(ctx context.Context, tx repository.Tx, account *model.AdminAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.byUser[account.Username] = &cp
	return nil
}

// memConfigRepo is an in-memory system configuration store.
type memConfigRepo struct {
	mu    sync.RWMutex
	byKey map[string]*model.SystemConfig
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{byKey: map[string]*model.SystemConfig{}}
}

func (m *memConfigRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.SystemConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConfigRepo) Set(ctx context.Context, tx repository.Tx, entry *model.SystemConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.byKey[entry.Key] = &cp
	return nil
}

func (m *memConfigRepo) All(ctx context.Context, tx repository.Tx) ([]*model.SystemConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SystemConfig
	for _, c := range m.byKey {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}
