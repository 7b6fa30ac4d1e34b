// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

const bcryptCost = 12

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

type AdminUseCase interface {
	// Login checks credentials and returns the account on success.
	Login(ctx context.Context, username, password string) (*model.AdminAccount, error)
	// ChangePassword rotates the password after re-checking the old one.
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	// EnsureAccount creates the account with the given password unless the
	// username already exists. Used by the seed command.
	EnsureAccount(ctx context.Context, username, password string) (created bool, err error)
}

type adminUC struct {
	accounts repository.AdminAccountRepository
	log      *zerolog.Logger
}

func NewAdminUseCase(accounts repository.AdminAccountRepository, logger *zerolog.Logger) *adminUC {
	return &adminUC{accounts: accounts, log: logger}
}

func (uc *adminUC) Login(ctx context.Context, username, password string) (*model.AdminAccount, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidArgument)
	}
	acc, err := uc.accounts.FindByUsername(ctx, repository.NoTX, username)
	if errors.Is(err, domain.ErrNotFound) {
		// Same error as a bad password so usernames cannot be probed.
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		uc.log.Warn().Str("username", username).Msg("failed admin login")
		return nil, domain.ErrInvalidCredentials
	}
	return acc, nil
}

func (uc *adminUC) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters", domain.ErrInvalidArgument)
	}
	acc, err := uc.Login(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = string(hash)
	acc.UpdatedAt = time.Now()
	if err := uc.accounts.Save(ctx, repository.NoTX, acc); err != nil {
		return err
	}
	uc.log.Info().Str("username", username).Msg("admin password changed")
	return nil
}

func (uc *adminUC) EnsureAccount(ctx context.Context, username, password string) (bool, error) {
	_, err := uc.accounts.FindByUsername(ctx, repository.NoTX, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return false, err
	}
	acc := &model.AdminAccount{Username: username, PasswordHash: string(hash)}
	if err := uc.accounts.Save(ctx, repository.NoTX, acc); err != nil {
		return false, err
	}
	return true, nil
}
