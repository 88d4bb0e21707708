// Package worker keeps the spreadsheet mirror of each fiscal year's budget
// in step with the document store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clubfin/internal/amqp"
	"clubfin/internal/cache"
	"clubfin/internal/docstore"
	applog "clubfin/internal/log"
	"clubfin/internal/repository"
	"clubfin/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Consumer delivers budget change events. *amqp.Client satisfies it.
type Consumer interface {
	ConsumeBudgetChanges(ctx context.Context, handler func(context.Context, *amqp.BudgetChangedMessage) error) error
}

// MirrorWorker writes budget documents to the spreadsheet when they change.
type MirrorWorker struct {
	store          docstore.Reader
	mirror         sheets.BudgetMirror
	seen           *cache.Fingerprints
	resyncInterval time.Duration
}

func NewMirrorWorker(store docstore.Reader, mirror sheets.BudgetMirror, seen *cache.Fingerprints, resyncInterval time.Duration) *MirrorWorker {
	if seen == nil {
		seen = cache.NewFingerprints(64, 0)
	}
	return &MirrorWorker{
		store:          store,
		mirror:         mirror,
		seen:           seen,
		resyncInterval: resyncInterval,
	}
}

// HandleBudgetChanged processes a single budget change event.
func (w *MirrorWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	slog.DebugContext(ctx, "Processing budget change",
		applog.FieldFiscalYear, msg.FiscalYear,
		"reason", msg.Reason)

	if _, err := w.MirrorYear(ctx, msg.FiscalYear); err != nil {
		return fmt.Errorf("mirror FY%d: %w", msg.FiscalYear, err)
	}
	return nil
}

// MirrorYear writes fiscalYear's budget unless the tab already holds the same
// figures. written reports whether the spreadsheet was touched.
func (w *MirrorWorker) MirrorYear(ctx context.Context, fiscalYear int) (written bool, err error) {
	doc, ok, err := repository.GetBudget(ctx, w.store, fiscalYear)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.WarnContext(ctx, "Budget change for a year without a budget document",
			applog.FieldFiscalYear, fiscalYear)
		return false, nil
	}

	fp := sheets.Fingerprint(doc)
	if w.seen.Unchanged(fiscalYear, fp) {
		slog.DebugContext(ctx, "Budget unchanged since last mirror, skipping",
			applog.FieldFiscalYear, fiscalYear)
		return false, nil
	}

	if err := w.mirror.WriteBudget(ctx, doc); err != nil {
		w.seen.Forget(fiscalYear)
		return false, err
	}
	w.seen.Record(fiscalYear, fp)

	slog.InfoContext(ctx, "Budget mirrored",
		applog.FieldFiscalYear, fiscalYear,
		applog.FieldOperation, applog.OpMirror)
	return true, nil
}

// ResyncAll mirrors every stored budget. It is the backstop for lost events.
func (w *MirrorWorker) ResyncAll(ctx context.Context) error {
	docs, err := repository.ListBudgets(ctx, w.store)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}

	var errs []error
	written := 0
	for _, doc := range docs {
		ok, err := w.MirrorYear(ctx, doc.FiscalYear)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mirror budget",
				applog.FieldFiscalYear, doc.FiscalYear,
				"error", err)
			errs = append(errs, fmt.Errorf("FY%d: %w", doc.FiscalYear, err))
			continue
		}
		if ok {
			written++
		}
	}

	slog.InfoContext(ctx, "Resync finished",
		applog.FieldOperation, applog.OpResync,
		"budgets", len(docs),
		"written", written,
		"failed", len(errs))
	return errors.Join(errs...)
}

// StartupCheck seeds the fingerprint cache from tabs that already match the
// store, so a restart does not rewrite every year.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	docs, err := repository.ListBudgets(ctx, w.store)
	if err != nil {
		return fmt.Errorf("list budgets for startup check: %w", err)
	}

	matched := 0
	for _, doc := range docs {
		mirrored, err := w.mirror.ReadBudget(ctx, doc.FiscalYear)
		switch {
		case errors.Is(err, sheets.ErrTabNotFound):
			continue
		case err != nil:
			slog.WarnContext(ctx, "Could not read mirrored budget",
				applog.FieldFiscalYear, doc.FiscalYear,
				"error", err)
			continue
		}
		if fp := sheets.Fingerprint(doc); sheets.Fingerprint(mirrored) == fp {
			w.seen.Record(doc.FiscalYear, fp)
			matched++
		}
	}

	slog.InfoContext(ctx, "Startup mirror check done",
		"budgets", len(docs),
		"up_to_date", matched)
	return nil
}

// Run consumes events (when consumer is non-nil) and resyncs periodically
// until ctx is cancelled or either loop fails.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeBudgetChanges(ctx, w.HandleBudgetChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		if w.resyncInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(w.resyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.ResyncAll(ctx); err != nil {
					slog.WarnContext(ctx, "Periodic resync had failures", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
