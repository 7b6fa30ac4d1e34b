package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"device-activation/internal/infra/metrics"
	red "device-activation/internal/infra/redis"
	"device-activation/internal/usecase"
)

const sweepLockKey = "lock:activation_sweep"

// SweepWorker periodically releases expired bindings via the use case.
// A redis lock keeps concurrent replicas from sweeping at the same time;
// the sweep itself is idempotent, so a lost lock only costs duplicate work.
type SweepWorker struct {
	interval     time.Duration
	activationUC usecase.ActivationUseCase
	locker       red.Locker
	log          *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, activationUC usecase.ActivationUseCase, locker red.Locker, logger *zerolog.Logger) *SweepWorker {
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval:     interval,
		activationUC: activationUC,
		locker:       locker,
		log:          &swLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if w.locker != nil {
		token, err := w.locker.TryLock(runCtx, sweepLockKey, w.interval)
		if err != nil {
			w.log.Debug().Err(err).Msg("sweep lock not acquired; another replica is sweeping")
			return
		}
		defer func() { _ = w.locker.Unlock(runCtx, sweepLockKey, token) }()
	}

	released, err := w.activationUC.Sweep(runCtx, time.Now())
	if err != nil {
		metrics.IncSweepRun("error")
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	metrics.IncSweepRun("ok")
	if released > 0 {
		metrics.AddSweepReleased(released)
		w.log.Info().Int("released", released).Msg("expired bindings released")
	}
}
