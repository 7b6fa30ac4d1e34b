// File: internal/usecase/config_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

// ConfigCache is the optional read-through cache in front of the config
// store. Implemented by the redis ConfigCache; nil disables caching.
type ConfigCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Invalidate(ctx context.Context, key string) error
}

// Compile-time check
var _ ConfigUseCase = (*configUC)(nil)

type ConfigUseCase interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
	All(ctx context.Context) ([]*model.SystemConfig, error)
}

type configUC struct {
	store repository.SystemConfigRepository
	cache ConfigCache
	log   *zerolog.Logger
}

func NewConfigUseCase(store repository.SystemConfigRepository, cache ConfigCache, logger *zerolog.Logger) *configUC {
	return &configUC{store: store, cache: cache, log: logger}
}

func (uc *configUC) Get(ctx context.Context, key string) (string, error) {
	if uc.cache != nil {
		if val, ok := uc.cache.Get(ctx, key); ok {
			return val, nil
		}
	}
	entry, err := uc.store.Get(ctx, repository.NoTX, key)
	if err != nil {
		return "", err
	}
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, entry.Value); err != nil {
			uc.log.Warn().Err(err).Str("key", key).Msg("config cache write failed")
		}
	}
	return entry.Value, nil
}

func (uc *configUC) Set(ctx context.Context, key, value, description string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", domain.ErrInvalidArgument)
	}
	if err := uc.store.Set(ctx, repository.NoTX, &model.SystemConfig{Key: key, Value: value, Description: description}); err != nil {
		return err
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, key); err != nil {
			uc.log.Warn().Err(err).Str("key", key).Msg("config cache invalidation failed")
		}
	}
	return nil
}

func (uc *configUC) All(ctx context.Context) ([]*model.SystemConfig, error) {
	return uc.store.All(ctx, repository.NoTX)
}
