// Package memory is an in-process budget mirror used in development and
// tests. It stores the rendered rows so reads go through the same parser as
// the spreadsheet.
package memory

import (
	"context"
	"sync"

	"clubfin/internal/core"
	ports "clubfin/internal/sheets"
)

var _ ports.BudgetMirror = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	suffix string
	tabs   map[string][][]any
	writes int
}

func New(suffix string) *Store {
	return &Store{suffix: suffix, tabs: make(map[string][][]any)}
}

func (s *Store) WriteBudget(ctx context.Context, doc core.BudgetDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := ports.BudgetRows(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[ports.TabName(s.suffix, doc.FiscalYear)] = rows
	s.writes++
	return nil
}

func (s *Store) ReadBudget(_ context.Context, fiscalYear int) (core.BudgetDocument, error) {
	s.mu.Lock()
	rows, ok := s.tabs[ports.TabName(s.suffix, fiscalYear)]
	s.mu.Unlock()
	if !ok {
		return core.BudgetDocument{}, ports.ErrTabNotFound
	}
	return ports.ParseBudgetRows(rows, fiscalYear)
}

// Rows returns a copy of the rows last written to tab.
func (s *Store) Rows(tab string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.tabs[tab]
	out := make([][]any, len(src))
	for i, r := range src {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Writes counts WriteBudget calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
