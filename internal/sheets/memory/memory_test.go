package memory

import (
	"context"
	"errors"
	"testing"

	"clubfin/internal/core"
	ports "clubfin/internal/sheets"

	"github.com/shopspring/decimal"
)

func TestStoreWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := New("Budget")

	if _, err := s.ReadBudget(ctx, 2026); !errors.Is(err, ports.ErrTabNotFound) {
		t.Fatalf("ReadBudget before write err = %v, want ErrTabNotFound", err)
	}

	doc := core.NewBudget(2026)
	if err := doc.Adjust(5, core.BucketCapex, decimal.RequireFromString("1500.25")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBudget(ctx, doc); err != nil {
		t.Fatalf("WriteBudget() error = %v", err)
	}

	got, err := s.ReadBudget(ctx, 2026)
	if err != nil {
		t.Fatalf("ReadBudget() error = %v", err)
	}
	if !got.Amount(5, core.BucketCapex).Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("capex = %s", got.Amount(5, core.BucketCapex))
	}

	rows := s.Rows("FY2026 Budget")
	if len(rows) != ports.RowCount {
		t.Errorf("rows = %d, want %d", len(rows), ports.RowCount)
	}
	if s.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", s.Writes())
	}
}

func TestStoreWriteHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New("Budget")
	if err := s.WriteBudget(ctx, core.NewBudget(2026)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if s.Writes() != 0 {
		t.Error("cancelled write should not be recorded")
	}
}
