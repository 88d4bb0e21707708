package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubfin/internal/core"
	"clubfin/internal/docstore/memory"

	"github.com/shopspring/decimal"
)

func TestItemRoundTripAcrossKinds(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	roof := &core.MaintenanceItem{
		ID: "roof", FiscalYear: 2025, BudgetAmount: decimal.NewFromInt(12000),
		Placement: core.Planned{Month: 2}, RecurrenceYearsMin: 7, RecurrenceYearsMax: 10,
	}
	lights := &core.CapexProject{
		ID: "lights", FiscalYear: 2026, Amount: decimal.NewFromInt(30000),
		Placement: core.Linked{Month: 3, OriginalMonth: 6, Transactions: []core.LinkedTransaction{
			{ID: "t1", Date: core.NewDate(2026, 1, 5), Amount: decimal.NewFromInt(100), FiscalYear: 2026},
		}},
	}
	for _, it := range []core.Linkable{roof, lights} {
		if err := PutItem(ctx, s, it); err != nil {
			t.Fatal(err)
		}
	}

	got, err := GetItem(ctx, s, core.ItemRef{Kind: core.CapexKind, ID: "lights"})
	if err != nil {
		t.Fatal(err)
	}
	l, ok := got.CurrentPlacement().(core.Linked)
	if !ok || l.OriginalMonth != 6 || l.Month != 3 {
		t.Fatalf("unexpected placement %#v", got.CurrentPlacement())
	}

	// Items resolve regardless of the fiscal year they were planned in.
	if _, err := GetItem(ctx, s, core.ItemRef{Kind: core.MaintenanceKind, ID: "roof"}); err != nil {
		t.Fatal(err)
	}

	_, err = GetItem(ctx, s, core.ItemRef{Kind: core.MaintenanceKind, ID: "lights"})
	if !errors.Is(err, core.ErrLinkedItemNotFound) {
		t.Fatalf("expected ErrLinkedItemNotFound, got %v", err)
	}

	all, err := ListItems(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
	fy26, err := ListMaintenanceItems(ctx, s, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(fy26) != 0 {
		t.Fatalf("roof is planned in 2025, got %v", fy26)
	}
}

func TestGetBudgetMissing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, ok, err := GetBudget(ctx, s, 2026)
	if err != nil || ok {
		t.Fatalf("expected missing budget, got ok=%v err=%v", ok, err)
	}

	b := core.NewBudget(2026)
	_ = b.Adjust(1, core.BucketOpex, decimal.NewFromInt(500))
	if err := PutBudget(ctx, s, b); err != nil {
		t.Fatal(err)
	}
	got, ok, err := GetBudget(ctx, s, 2026)
	if err != nil || !ok {
		t.Fatalf("expected budget, got ok=%v err=%v", ok, err)
	}
	if !got.Amount(1, core.BucketOpex).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected amount %s", got.Amount(1, core.BucketOpex))
	}
}

func TestTransactionNotFound(t *testing.T) {
	_, err := GetTransaction(context.Background(), memory.New(), "nope")
	if !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestJournalForItem(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	entries := []core.JournalEntry{
		{ID: "j1", Item: core.ItemRef{Kind: core.MaintenanceKind, ID: "roof"}, Reason: core.ReasonPlanRemoved},
		{ID: "j2", Item: core.ItemRef{Kind: core.MaintenanceKind, ID: "roof"}, Reason: core.ReasonSpendAdded},
		{ID: "j3", Item: core.ItemRef{Kind: core.CapexKind, ID: "roof"}, Reason: core.ReasonSpendAdded},
	}
	for _, e := range entries {
		e.At = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := AppendJournal(ctx, s, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := JournalForItem(ctx, s, core.ItemRef{Kind: core.MaintenanceKind, ID: "roof"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "j1" || got[1].ID != "j2" {
		t.Fatalf("unexpected journal %+v", got)
	}
}
