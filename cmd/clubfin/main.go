package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"clubfin/internal/backend"
	"clubfin/internal/cli"
	"clubfin/internal/docstore"
	apphttp "clubfin/internal/http"
	applog "clubfin/internal/log"
	"clubfin/internal/middleware/ratelimit"
	"clubfin/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	ctx := context.Background()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger.Logger).Open(ctx, bcfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	policy := cfg.ForecastPolicy()
	engine := services.NewReallocator(services.ReallocatorConfig{
		Unmapped: services.UnmappedPolicy(cfg.UnmappedPolicy),
		Forecast: policy,
	})

	srv := apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.Deps{
		Store:        b.Store,
		Transactions: services.NewTransactionService(b.Store, engine, b.Publisher),
		Alerts:       services.NewAlertService(b.Store, policy),
		Policy:       policy,
		Logger:       logger,
		RateLimit:    ratelimit.DefaultConfig(),
		Ready: func(ctx context.Context) error {
			_, err := b.Store.Get(ctx, docstore.CollectionBudgets, "readiness-probe")
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			return err
		},
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", "error", err)
		}
		if err := b.Cleanup(); err != nil {
			logger.ErrorContext(ctx, "Backend cleanup error", "error", err)
		}
	})

	logger.InfoContext(ctx, "Starting clubfin server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", b.Publisher != nil,
		"unmapped_policy", engine.Config().Unmapped)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.InfoContext(ctx, "Server stopped gracefully")
}
