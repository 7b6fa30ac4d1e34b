//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"device-activation/internal/domain/model"
	"device-activation/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// --- Mock Use Cases ---

type mockActivationUC struct {
	VerifyFunc   func(ctx context.Context, code, deviceID string) (*usecase.VerifyResult, error)
	GenerateFunc func(ctx context.Context, count int, validDays *int, cardType *string) ([]*model.ActivationCode, error)
	SweepFunc    func(ctx context.Context, now time.Time) (int, error)
	ExpiredFunc  func(ctx context.Context, now time.Time) ([]*model.ActivationCode, error)
	StatsFunc    func(ctx context.Context, now time.Time) (*model.CodeStats, error)
	DeleteFunc   func(ctx context.Context, id string) error
	ListFunc     func(ctx context.Context) ([]*model.ActivationCode, error)
}

var _ usecase.ActivationUseCase = (*mockActivationUC)(nil)

func (m *mockActivationUC) Verify(ctx context.Context, code, deviceID string) (*usecase.VerifyResult, error) {
	return m.VerifyFunc(ctx, code, deviceID)
}

func (m *mockActivationUC) Generate(ctx context.Context, count int, validDays *int, cardType *string) ([]*model.ActivationCode, error) {
	return m.GenerateFunc(ctx, count, validDays, cardType)
}

func (m *mockActivationUC) Sweep(ctx context.Context, now time.Time) (int, error) {
	return m.SweepFunc(ctx, now)
}

func (m *mockActivationUC) ExpiredBindings(ctx context.Context, now time.Time) ([]*model.ActivationCode, error) {
	return m.ExpiredFunc(ctx, now)
}

func (m *mockActivationUC) Stats(ctx context.Context, now time.Time) (*model.CodeStats, error) {
	return m.StatsFunc(ctx, now)
}

func (m *mockActivationUC) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockActivationUC) List(ctx context.Context) ([]*model.ActivationCode, error) {
	return m.ListFunc(ctx)
}

type mockAdminUC struct {
	LoginFunc          func(ctx context.Context, username, password string) (*model.AdminAccount, error)
	ChangePasswordFunc func(ctx context.Context, username, oldPassword, newPassword string) error
	EnsureAccountFunc  func(ctx context.Context, username, password string) (bool, error)
}

var _ usecase.AdminUseCase = (*mockAdminUC)(nil)

func (m *mockAdminUC) Login(ctx context.Context, username, password string) (*model.AdminAccount, error) {
	return m.LoginFunc(ctx, username, password)
}

func (m *mockAdminUC) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	return m.ChangePasswordFunc(ctx, username, oldPassword, newPassword)
}

func (m *mockAdminUC) EnsureAccount(ctx context.Context, username, password string) (bool, error) {
	return m.EnsureAccountFunc(ctx, username, password)
}

// mockRateLimiter counts Allow calls and answers from a script.
type mockRateLimiter struct {
	allow bool
	err   error
	calls int
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.calls++
	return m.allow, m.err
}
