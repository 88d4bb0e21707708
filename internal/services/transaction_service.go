package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	"clubfin/internal/fiscal"
	"clubfin/internal/repository"

	"github.com/google/uuid"
)

// BudgetPublisher announces committed budget changes.
type BudgetPublisher interface {
	PublishBudgetChanged(ctx context.Context, fiscalYear int, reason string) error
}

type (
	// SaveRequest is a create (empty Transaction.ID) or an edit.
	SaveRequest struct {
		Transaction      core.Transaction
		MarkItemComplete bool
	}

	// Result reports what a save or delete committed. Warnings are the
	// recoverable conditions met on the way.
	Result struct {
		Transaction core.Transaction
		Warnings    []error
		FiscalYears []int
	}
)

// TransactionService saves and deletes transactions, keeping linked items
// and budgets consistent in one store transaction.
type TransactionService struct {
	store     docstore.Store
	engine    *Reallocator
	publisher BudgetPublisher
	now       func() time.Time
	newID     func() string
}

func NewTransactionService(store docstore.Store, engine *Reallocator, publisher BudgetPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		engine:    engine,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *TransactionService) WithClock(now func() time.Time) *TransactionService {
	s.now = now
	return s
}

// WithIDs replaces the id generator used for new documents.
func (s *TransactionService) WithIDs(newID func() string) *TransactionService {
	s.newID = newID
	return s
}

// Save creates or updates a transaction. ErrLinkedItemNotFound aborts the
// save; nothing is persisted.
func (s *TransactionService) Save(ctx context.Context, actor core.Actor, req SaveRequest) (Result, error) {
	if err := actor.Validate(); err != nil {
		return Result{}, err
	}
	t := req.Transaction
	if t.FiscalYear == 0 && !t.Date.IsZero() {
		t.FiscalYear = fiscal.YearOf(t.Date.Time)
	}
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	now := s.now()
	var res Result
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r := s.engine.begin(tx, actor, now, s.newID)

		var old *core.Transaction
		if t.ID == "" {
			t.ID = s.newID()
			t.CreatedBy, t.CreatedAt = actor.UserID, now
		} else {
			prev, err := repository.GetTransaction(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			old = &prev
			t.CreatedBy, t.CreatedAt = prev.CreatedBy, prev.CreatedAt
			t.UpdatedBy, t.UpdatedAt = actor.UserID, now
		}

		if err := s.relink(ctx, r, old, t, req.MarkItemComplete); err != nil {
			return err
		}
		if err := repository.PutTransaction(ctx, tx, t); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		years, err := r.flush(ctx)
		if err != nil {
			return err
		}
		res = Result{Transaction: t, Warnings: r.warnings, FiscalYears: years}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"fiscal_year", t.FiscalYear,
		"amount", t.Amount.String(),
		"warnings", len(res.Warnings),
		"user", actor.UserID)

	s.publish(ctx, res.FiscalYears, "transaction_saved")
	return res, nil
}

// relink brings the item side in line with the new version of a transaction.
func (s *TransactionService) relink(ctx context.Context, r *run, old *core.Transaction, t core.Transaction, markComplete bool) error {
	newRef, newLinked := t.LinkRef()

	var oldRef core.ItemRef
	oldLinked := false
	if old != nil {
		oldRef, oldLinked = old.LinkRef()
	}

	// Resolve the target first so a bad link aborts before anything moves.
	var target core.Linkable
	if newLinked {
		item, err := repository.GetItem(ctx, r.tx, newRef)
		if err != nil {
			return err
		}
		target = item
	}

	if oldLinked && (!newLinked || oldRef != newRef) {
		prev, err := repository.GetItem(ctx, r.tx, oldRef)
		switch {
		case errors.Is(err, core.ErrLinkedItemNotFound):
			r.warn(ctx, err)
			prev = nil
		case err != nil:
			return err
		}
		if err := r.unlink(ctx, oldRef, prev, t.ID); err != nil {
			return err
		}
		if prev != nil {
			if err := repository.PutItem(ctx, r.tx, prev); err != nil {
				return fmt.Errorf("save item %s: %w", oldRef, err)
			}
		}
	}

	if target == nil {
		return nil
	}
	if err := r.link(ctx, target, t); err != nil {
		return err
	}
	if markComplete || target.IsCompleted() {
		r.complete(target)
	}
	if err := repository.PutItem(ctx, r.tx, target); err != nil {
		return fmt.Errorf("save item %s: %w", newRef, err)
	}
	return nil
}

// Delete removes a transaction and reverses its budget effects. A linked
// item that no longer exists is reported as a warning.
func (s *TransactionService) Delete(ctx context.Context, actor core.Actor, id string) (Result, error) {
	if err := actor.Validate(); err != nil {
		return Result{}, err
	}

	now := s.now()
	var res Result
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		t, err := repository.GetTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		r := s.engine.begin(tx, actor, now, s.newID)

		if ref, ok := t.LinkRef(); ok {
			item, err := repository.GetItem(ctx, tx, ref)
			switch {
			case errors.Is(err, core.ErrLinkedItemNotFound):
				r.warn(ctx, err)
				item = nil
			case err != nil:
				return err
			}
			if err := r.unlink(ctx, ref, item, t.ID); err != nil {
				return err
			}
			if item != nil {
				if err := repository.PutItem(ctx, tx, item); err != nil {
					return fmt.Errorf("save item %s: %w", ref, err)
				}
			}
		}

		if err := repository.DeleteTransaction(ctx, tx, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		years, err := r.flush(ctx)
		if err != nil {
			return err
		}
		res = Result{Transaction: t, Warnings: r.warnings, FiscalYears: years}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", id,
		"warnings", len(res.Warnings),
		"user", actor.UserID)

	s.publish(ctx, res.FiscalYears, "transaction_deleted")
	return res, nil
}

// Get returns a stored transaction.
func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return repository.GetTransaction(ctx, s.store, id)
}

func (s *TransactionService) publish(ctx context.Context, years []int, reason string) {
	if s.publisher == nil {
		if len(years) > 0 {
			slog.DebugContext(ctx, "Budget publisher not configured, skipping change events", "fiscal_years", years)
		}
		return
	}
	for _, fy := range years {
		if err := s.publisher.PublishBudgetChanged(ctx, fy, reason); err != nil {
			// The budget is committed; the mirror catches up on its next resync.
			slog.ErrorContext(ctx, "Failed to publish budget change", "fiscal_year", fy, "error", err)
		}
	}
}
