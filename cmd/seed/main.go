// File: cmd/seed/main.go
// Seeds the default admin account and, optionally, a batch of demo codes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"device-activation/internal/config"
	pg "device-activation/internal/infra/db/postgres"
	"device-activation/internal/infra/logging"
	"device-activation/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	username := flag.String("admin-user", "admin", "default admin username")
	password := flag.String("admin-pass", "", "default admin password (required on first run)")
	demoCodes := flag.Int("demo-codes", 0, "number of demo activation codes to generate")
	demoDays := flag.Int("demo-days", 30, "validity window for demo codes")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	adminRepo := pg.NewAdminAccountRepo(pool)
	adminUC := usecase.NewAdminUseCase(adminRepo, logger)

	if *password == "" {
		log.Fatal("-admin-pass is required")
	}
	created, err := adminUC.EnsureAccount(ctx, *username, *password)
	if err != nil {
		log.Fatalf("ensure admin account: %v", err)
	}
	if created {
		fmt.Printf("admin account %q created\n", *username)
	} else {
		fmt.Printf("admin account %q already present. No changes.\n", *username)
	}

	if *demoCodes > 0 {
		codeRepo := pg.NewActivationCodeRepo(pool)
		txManager := pg.NewTxManager(pool)
		activationUC := usecase.NewActivationUseCase(codeRepo, txManager, pool,
			cfg.Activation.GenerateBatchMax, cfg.Activation.GenerateRetryBudget, logger)

		days := *demoDays
		codes, err := activationUC.Generate(ctx, *demoCodes, &days, nil)
		if err != nil {
			log.Fatalf("generate demo codes: %v", err)
		}
		fmt.Printf("generated %d demo codes (valid %d days after first use):\n", len(codes), days)
		for _, c := range codes {
			fmt.Printf("  - %s\n", c.Code)
		}
	}
}
