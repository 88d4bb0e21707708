package main

import (
	"context"
	"os"
	"time"

	"clubfin/internal/backend"
	"clubfin/internal/cache"
	"clubfin/internal/cli"
	applog "clubfin/internal/log"
	"clubfin/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	ctx := context.Background()
	logger.InfoContext(ctx, "Starting clubfin-worker")

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	b, err := factory.Open(ctx, bcfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open backend", "error", err)
		os.Exit(1)
	}
	mirror, err := factory.OpenMirror(ctx, bcfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open budget mirror", "error", err)
		os.Exit(1)
	}

	seen := cache.NewFingerprints(cfg.MirrorCacheSize, 24*time.Hour)
	caches := cache.NewManager(seen)
	mirrorWorker := worker.NewMirrorWorker(b.Store, mirror, seen, cfg.ResyncInterval)

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := b.Cleanup(); err != nil {
			logger.ErrorContext(ctx, "Backend cleanup error", "error", err)
		}
	})

	logger.InfoContext(runCtx, "Performing startup mirror check...")
	if err := mirrorWorker.StartupCheck(runCtx); err != nil {
		logger.ErrorContext(runCtx, "Startup mirror check failed", "error", err)
	}
	if err := mirrorWorker.ResyncAll(runCtx); err != nil {
		logger.ErrorContext(runCtx, "Initial resync had failures", "error", err)
	}

	go func() {
		_ = caches.Run(runCtx, time.Hour)
	}()

	var consumer worker.Consumer
	if b.AMQP != nil {
		consumer = b.AMQP
	} else {
		logger.InfoContext(runCtx, "No AMQP broker, relying on periodic resync", "interval", cfg.ResyncInterval)
	}
	if err := mirrorWorker.Run(runCtx, consumer); err != nil {
		logger.ErrorContext(ctx, "Mirror worker stopped", "error", err)
		_ = b.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.InfoContext(ctx, "Worker stopped")
}
