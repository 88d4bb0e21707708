// Package cli collects the start-up steps shared by cmd/clubfin,
// cmd/clubfin-worker and cmd/clubfinctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clubfin/internal/config"
	applog "clubfin/internal/log"

	"github.com/joho/godotenv"
)

// SetupLogger installs a component-tagged text logger at the given level as
// the process default.
func SetupLogger(level slog.Level, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it
// does not validate.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.ErrorContext(context.Background(), "Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap runs the usual sequence: .env, config, then a logger at the
// configured level.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	logger := SetupLogger(slog.LevelInfo, component)
	cfg := LoadAndValidateConfig(logger)
	if lvl := cfg.SlogLevel(); lvl != slog.LevelInfo {
		logger = SetupLogger(lvl, component)
	}
	return cfg, logger
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM. cleanup
// runs before cancellation; done closes once shutdown finished or timed out.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.InfoContext(ctx, "Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()
		cancel()

		select {
		case <-finished:
			logger.InfoContext(shutdownCtx, "Shutdown complete")
		case <-shutdownCtx.Done():
			logger.WarnContext(context.Background(), "Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
