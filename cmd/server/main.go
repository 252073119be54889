package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/app"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

func main() {
	// Загрузка конфигурации: без секретов сервис не стартует
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}

	log := logger.NewWithFormat(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	log.Infow("Entitlement service starting up...", "env", cfg.App.Env, "store", cfg.Store.Driver)
	if plans := cfg.UnconfiguredPlans(); len(plans) > 0 {
		log.Warnw("Price IDs are not configured, checkout for these plans will fail", "plans", plans)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Errorw("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		log.Errorw("Application stopped with error", "error", err)
		application.Close()
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
