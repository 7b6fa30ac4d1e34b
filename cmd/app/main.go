// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device-activation/internal/config"
	pg "device-activation/internal/infra/db/postgres"
	"device-activation/internal/infra/logging"
	"device-activation/internal/infra/metrics"
	red "device-activation/internal/infra/redis"
	"device-activation/internal/infra/sched"
	"device-activation/internal/infra/web"
	"device-activation/internal/usecase"
)

// Overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	configCache := red.NewConfigCache(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	codeRepo := pg.NewActivationCodeRepo(pool)
	adminRepo := pg.NewAdminAccountRepo(pool)
	configRepo := pg.NewSystemConfigRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	activationUC := usecase.NewActivationUseCase(
		codeRepo, txManager, pool,
		cfg.Activation.GenerateBatchMax, cfg.Activation.GenerateRetryBudget,
		logger,
	)
	adminUC := usecase.NewAdminUseCase(adminRepo, logger)
	configUC := usecase.NewConfigUseCase(configRepo, configCache, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Secure, "", cfg.Auth.SessionTTL)
	srv := web.NewServer(
		activationUC, adminUC, configUC, auth,
		rateLimiter, cfg.Activation.VerifyRateLimit, cfg.Activation.VerifyRateWindow,
		cfg.Auth.AllowedIPs, logger,
	)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Sweep worker ----
	worker := sched.NewSweepWorker(cfg.Activation.SweepInterval, activationUC, locker, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Pool stats ----
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
