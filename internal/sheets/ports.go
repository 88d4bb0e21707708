package sheets

import (
	"context"
	"errors"

	"clubfin/internal/core"
)

var ErrTabNotFound = errors.New("budget tab not found")

// Ports for outbound adapters.
type (
	// BudgetWriter replaces the mirrored tab of a fiscal year's budget.
	BudgetWriter interface {
		WriteBudget(ctx context.Context, doc core.BudgetDocument) error
	}

	// BudgetReader reads a mirrored tab back. It returns ErrTabNotFound when
	// the year was never mirrored.
	BudgetReader interface {
		ReadBudget(ctx context.Context, fiscalYear int) (core.BudgetDocument, error)
	}

	BudgetMirror interface {
		BudgetWriter
		BudgetReader
	}
)
