package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clubfin/internal/amqp"
	"clubfin/internal/docstore"
	"clubfin/internal/docstore/memory"
	applog "clubfin/internal/log"
	"clubfin/internal/sheets"
	gsheet "clubfin/internal/sheets/google"
	sheetsmem "clubfin/internal/sheets/memory"
	"clubfin/internal/storage"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger.With(applog.FieldComponent, applog.ComponentBackend)}
}

// Open creates the document store and, when configured, the AMQP client.
// A broker that cannot be reached is logged and skipped; saves still work
// and the worker's periodic resync covers the missed events.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{Store: store}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			b.AMQP = client
			b.Publisher = client
		}
	}

	b.Cleanup = func() error {
		var errs []error
		if b.AMQP != nil {
			errs = append(errs, b.AMQP.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return b, nil
}

func (f *Factory) openStore(ctx context.Context, cfg Config) (docstore.Store, error) {
	switch cfg.Type {
	case SQLiteStore:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
		return store, nil
	case MemoryStore:
		f.logger.InfoContext(ctx, "Initialized memory store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// OpenMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory mirror otherwise.
func (f *Factory) OpenMirror(ctx context.Context, cfg Config) (sheets.BudgetMirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, mirroring in memory")
		return sheetsmem.New(cfg.GoogleBudgetSheetSuffix), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		SheetSuffix:        cfg.GoogleBudgetSheetSuffix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
	}
	return client, nil
}
