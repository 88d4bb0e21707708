// Package ctl implements clubfinctl, the treasurer's admin command line.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"clubfin/internal/backend"
	"clubfin/internal/config"
	"clubfin/internal/docstore"
	applog "clubfin/internal/log"

	"github.com/spf13/cobra"
)

// ErrAuditFindings makes the process exit non-zero when the audit is dirty.
var ErrAuditFindings = errors.New("audit reported findings")

// StoreOpener returns the document store commands read from and a release
// function.
type StoreOpener func(ctx context.Context) (docstore.Store, func() error, error)

// App carries what every command shares.
type App struct {
	cfg   *config.Config
	open  StoreOpener
	now   func() time.Time
	today string
}

// Option customises an App, mostly for tests.
type Option func(*App)

// WithStore replaces the configured backend with a fixed store.
func WithStore(store docstore.Store) Option {
	return func(a *App) {
		a.open = func(context.Context) (docstore.Store, func() error, error) {
			return store, func() error { return nil }, nil
		}
	}
}

// WithClock fixes the current time.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithConfig skips environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) { a.cfg = cfg }
}

// NewRootCommand builds the clubfinctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{now: time.Now}
	for _, opt := range opts {
		opt(app)
	}

	root := &cobra.Command{
		Use:           "clubfinctl",
		Short:         "Club budget administration",
		Long:          "Inspect budgets, maintenance forecasts and the reallocation journal, and seed the store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init()
		},
	}
	root.PersistentFlags().StringVar(&app.today, "today", "", "Evaluate as of this date (YYYY-MM-DD)")

	root.AddCommand(
		app.fiscalMonthCommand(),
		app.forecastCommand(),
		app.alertsCommand(),
		app.auditCommand(),
		app.budgetCommand(),
		app.importCommand(),
	)
	return root
}

// Execute is the entry point called from cmd/clubfinctl.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *App) init() error {
	if a.cfg == nil {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		a.cfg = cfg
		logger := applog.New(applog.Config{
			Level:     cfg.SlogLevel(),
			Component: applog.ComponentCLI,
			Output:    os.Stderr,
		})
		applog.SetDefault(logger)
	}
	if a.open == nil {
		a.open = a.openBackend
	}
	return nil
}

func (a *App) openBackend(ctx context.Context) (docstore.Store, func() error, error) {
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	// The CLI never publishes; the worker's resync picks up imports.
	bcfg.AMQPURL = ""
	b, err := backend.NewFactory(nil).Open(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	return b.Store, b.Cleanup, nil
}

// withStore opens the store for the duration of fn.
func (a *App) withStore(ctx context.Context, fn func(docstore.Store) error) (err error) {
	store, release, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(store)
}

// todayTime resolves --today, defaulting to the clock.
func (a *App) todayTime() (time.Time, error) {
	if a.today == "" {
		return a.now().UTC(), nil
	}
	d, err := parseDateFlag("today", a.today)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
