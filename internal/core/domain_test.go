package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"clubfin/internal/forecast"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2026, 3, 9))
	if err != nil || string(b) != `"2026-03-09"` {
		t.Fatalf("unexpected encoding %s (err=%v)", b, err)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2026-03-09T17:45:00Z"`), &d); err != nil {
		t.Fatalf("timestamp input: %v", err)
	}
	if d.String() != "2026-03-09" {
		t.Fatalf("expected truncated date, got %s", d)
	}

	if err := json.Unmarshal([]byte(`null`), &d); err != nil || !d.IsEmpty() {
		t.Fatalf("null must decode to empty date, got %v (err=%v)", d, err)
	}
	if err := json.Unmarshal([]byte(`"03/09/2026"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		Date:        NewDate(2025, 11, 3),
		Amount:      dec("120.00"),
		Type:        Expense,
		ExpenseType: OPEX,
		FiscalYear:  2026,
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		err    error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = dec("-1") }, ErrInvalidAmount},
		{"no date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"bad expense type", func(tx *Transaction) { tx.ExpenseType = "misc" }, ErrInvalidExpenseType},
		{"both links", func(tx *Transaction) {
			tx.MajorMaintenanceItemID, tx.CapexProjectID = "m1", "c1"
		}, ErrAmbiguousLink},
		{"revenue link", func(tx *Transaction) {
			tx.Type, tx.MajorMaintenanceItemID = Revenue, "m1"
		}, ErrLinkOnRevenue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := base
			tc.mutate(&tx)
			err := tx.Validate()
			if tc.err == nil && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}

	long := base
	long.Description = strings.Repeat("x", 201)
	if err := long.Validate(); !errors.Is(err, ErrInvalidDescription) {
		t.Fatalf("expected ErrInvalidDescription, got %v", err)
	}
}

func TestIsValidationError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrInvalidAmount, true},
		{fmt.Errorf("%w: %q", ErrInvalidExpenseType, "misc"), true},
		{fmt.Errorf("%w %d", ErrInvalidFiscalYear, -1), true},
		{ErrLinkedItemNotFound, false},
		{ErrTransactionNotFound, false},
		{errors.New("disk full"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsValidationError(tc.err); got != tc.want {
			t.Errorf("IsValidationError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestTransactionLinkRef(t *testing.T) {
	ref, ok := Transaction{CapexProjectID: "c1"}.LinkRef()
	if !ok || ref != (ItemRef{Kind: CapexKind, ID: "c1"}) {
		t.Fatalf("unexpected ref %v %v", ref, ok)
	}
	if _, ok := (Transaction{}).LinkRef(); ok {
		t.Fatal("unlinked transaction must not report a ref")
	}
	if ItemKind("capex").Bucket() != BucketCapex || MaintenanceKind.Bucket() != BucketOpex {
		t.Fatal("unexpected bucket mapping")
	}
}

func TestBudgetAdjust(t *testing.T) {
	b := NewBudget(2026)
	if err := b.Adjust(4, BucketOpex, dec("5000")); err != nil {
		t.Fatal(err)
	}
	if err := b.Adjust(4, BucketOpex, dec("-1200.50")); err != nil {
		t.Fatal(err)
	}
	if err := b.Adjust(0, BucketRevenue, dec("9000")); err != nil {
		t.Fatal(err)
	}
	if got := b.Amount(4, BucketOpex); !got.Equal(dec("3799.50")) {
		t.Fatalf("unexpected opex %s", got)
	}
	if got := b.Total(BucketOpex); !got.Equal(dec("3799.50")) {
		t.Fatalf("unexpected total %s", got)
	}
	if got := b.MonthlyBudgets[0].Net(); !got.Equal(dec("9000")) {
		t.Fatalf("unexpected net %s", got)
	}

	if err := b.Adjust(12, BucketOpex, dec("1")); !errors.Is(err, ErrInvalidFiscalMonth) {
		t.Fatalf("expected ErrInvalidFiscalMonth, got %v", err)
	}
	if err := b.Adjust(1, Bucket("misc"), dec("1")); err == nil {
		t.Fatal("expected unknown bucket error")
	}
	if BudgetID(2026) != "FY2026" {
		t.Fatalf("unexpected id %s", BudgetID(2026))
	}
}

func newMaintenance() *MaintenanceItem {
	return &MaintenanceItem{
		ID:                 "roof",
		Name:               "Clubhouse roof",
		FiscalYear:         2026,
		BudgetAmount:       dec("12000"),
		Placement:          Planned{Month: 2},
		RecurrenceYearsMin: 7,
		RecurrenceYearsMax: 10,
		TrackingEnabled:    true,
	}
}

func entry(id string, d Date, amount string) LinkedTransaction {
	return LinkedTransaction{ID: id, Date: d, Amount: dec(amount), FiscalYear: 2026}
}

func TestLinkTransaction(t *testing.T) {
	item := newMaintenance()

	if first := LinkTransaction(item, entry("t1", NewDate(2026, 3, 1), "8000")); !first {
		t.Fatal("first link must report first")
	}
	l, ok := item.Placement.(Linked)
	if !ok {
		t.Fatalf("expected Linked, got %T", item.Placement)
	}
	if l.OriginalMonth != 2 || l.Month != 2 {
		t.Fatalf("unexpected placement %+v", l)
	}

	MoveAllocation(item, 5)
	if first := LinkTransaction(item, entry("t2", NewDate(2026, 4, 1), "4500")); first {
		t.Fatal("second link must not report first")
	}
	l = item.Placement.(Linked)
	if l.Month != 5 || l.OriginalMonth != 2 || len(l.Transactions) != 2 {
		t.Fatalf("unexpected placement %+v", l)
	}
	if !item.TotalActualAmount.Equal(dec("12500")) {
		t.Fatalf("unexpected total %s", item.TotalActualAmount)
	}

	// Re-linking the same id replaces in place.
	LinkTransaction(item, entry("t1", NewDate(2026, 3, 1), "7000"))
	l = item.Placement.(Linked)
	if len(l.Transactions) != 2 || l.Transactions[0].ID != "t1" || !l.Transactions[0].Amount.Equal(dec("7000")) {
		t.Fatalf("expected in-place replacement, got %+v", l.Transactions)
	}
	if !item.TotalActualAmount.Equal(dec("11500")) {
		t.Fatalf("unexpected total %s", item.TotalActualAmount)
	}
}

func TestUnlinkTransaction(t *testing.T) {
	item := newMaintenance()
	LinkTransaction(item, entry("t1", NewDate(2026, 3, 1), "8000"))
	MoveAllocation(item, 5)
	LinkTransaction(item, entry("t2", NewDate(2026, 4, 1), "4500"))
	CompleteFromLedger(item, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), forecast.DefaultPolicy())

	if _, found, _ := UnlinkTransaction(item, "missing"); found {
		t.Fatal("unknown id must not be found")
	}

	removed, found, emptied := UnlinkTransaction(item, "t2")
	if !found || emptied || removed.ID != "t2" {
		t.Fatalf("unexpected unlink result %+v %v %v", removed, found, emptied)
	}
	if !item.TotalActualAmount.Equal(dec("8000")) {
		t.Fatalf("unexpected total %s", item.TotalActualAmount)
	}

	_, found, emptied = UnlinkTransaction(item, "t1")
	if !found || !emptied {
		t.Fatalf("expected emptied ledger, got found=%v emptied=%v", found, emptied)
	}
	p, ok := item.Placement.(Planned)
	if !ok || p.Month != 2 {
		t.Fatalf("expected Planned{2}, got %#v", item.Placement)
	}
	if item.Completed || item.LastOccurrence != nil || item.NextDueDateMin != nil || !item.TotalActualAmount.IsZero() {
		t.Fatalf("item not reset: %+v", item)
	}

	if _, found, _ := UnlinkTransaction(item, "t1"); found {
		t.Fatal("planned item has nothing to unlink")
	}
}

func TestCompleteFromLedger(t *testing.T) {
	item := newMaintenance()
	if CompleteFromLedger(item, time.Now(), forecast.DefaultPolicy()) {
		t.Fatal("empty ledger cannot complete")
	}

	LinkTransaction(item, entry("t2", NewDate(2024, 3, 1), "4000"))
	LinkTransaction(item, entry("t1", NewDate(2024, 2, 1), "6000"))
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !CompleteFromLedger(item, today, forecast.Policy{InflationRate: 0}) {
		t.Fatal("expected completion")
	}

	if !item.Completed || item.LastOccurrence == nil {
		t.Fatal("expected completed item with last occurrence")
	}
	if item.LastOccurrence.Date.String() != "2024-03-01" || !item.LastOccurrence.Amount.Equal(dec("10000")) {
		t.Fatalf("unexpected occurrence %+v", item.LastOccurrence)
	}
	if len(item.LastOccurrence.TransactionIDs) != 2 {
		t.Fatalf("expected both ids, got %v", item.LastOccurrence.TransactionIDs)
	}
	if item.NextDueDateMin.String() != "2031-03-01" || item.NextDueDateMax.String() != "2034-03-01" {
		t.Fatalf("unexpected window %s..%s", item.NextDueDateMin, item.NextDueDateMax)
	}
	if !item.NextExpectedCost.Equal(dec("10000")) {
		t.Fatalf("unexpected cost %s", item.NextExpectedCost)
	}
}

func TestCapexComplete(t *testing.T) {
	p := &CapexProject{ID: "lights", FiscalYear: 2026, Amount: dec("30000"), Placement: Planned{Month: 6}}
	LinkTransaction(p, entry("t1", NewDate(2026, 5, 20), "31000"))
	CompleteFromLedger(p, time.Now(), forecast.DefaultPolicy())

	if !p.Completed || p.CompletedDate.String() != "2026-05-20" || p.InstallDate.String() != "2026-05-20" {
		t.Fatalf("unexpected completion %+v", p)
	}
	if p.Bucket() != BucketCapex || p.Ref().Kind != CapexKind {
		t.Fatal("unexpected capex identity")
	}

	UnlinkTransaction(p, "t1")
	if p.Completed || p.CompletedDate != nil || p.InstallDate != nil {
		t.Fatalf("expected reopened project, got %+v", p)
	}
}

func TestPlacementJSON(t *testing.T) {
	item := newMaintenance()
	LinkTransaction(item, entry("t1", NewDate(2026, 3, 1), "8000"))
	MoveAllocation(item, 5)

	b, err := json.Marshal(item)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["placement"] != "linked" || raw["month"] != float64(5) || raw["originalMonth"] != float64(2) {
		t.Fatalf("unexpected wire shape %s", b)
	}

	var back MaintenanceItem
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	l, ok := back.Placement.(Linked)
	if !ok || l.Month != 5 || l.OriginalMonth != 2 || len(l.Transactions) != 1 {
		t.Fatalf("unexpected decoded placement %#v", back.Placement)
	}
	if !l.Transactions[0].Amount.Equal(dec("8000")) {
		t.Fatalf("unexpected entry %+v", l.Transactions[0])
	}
}

func TestPlacementJSONLegacy(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want Placement
	}{
		{
			"planned without discriminator",
			`{"id":"a","fiscalYear":2026,"budgetAmount":"100","month":4}`,
			Planned{Month: 4},
		},
		{
			"linked without originalMonth",
			`{"id":"a","fiscalYear":2026,"budgetAmount":"100","month":4,
			  "linkedTransactions":[{"id":"t","date":"2026-01-02","amount":"50","fiscalYear":2026}]}`,
			Linked{Month: 4, OriginalMonth: 4},
		},
		{
			"planned flag with empty ledger",
			`{"id":"a","fiscalYear":2026,"budgetAmount":"100","placement":"linked","month":7,"originalMonth":1,"linkedTransactions":[]}`,
			Planned{Month: 7},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p CapexProject
			if err := json.Unmarshal([]byte(tc.doc), &p); err != nil {
				t.Fatal(err)
			}
			switch want := tc.want.(type) {
			case Planned:
				if got, ok := p.Placement.(Planned); !ok || got != want {
					t.Fatalf("expected %#v, got %#v", want, p.Placement)
				}
			case Linked:
				got, ok := p.Placement.(Linked)
				if !ok || got.Month != want.Month || got.OriginalMonth != want.OriginalMonth {
					t.Fatalf("expected %#v, got %#v", want, p.Placement)
				}
			}
		})
	}
}

func TestMaintenanceItemValidate(t *testing.T) {
	item := newMaintenance()
	if err := item.Validate(); err != nil {
		t.Fatalf("expected valid item, got %v", err)
	}
	item.RecurrenceYearsMax = 3
	if err := item.Validate(); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
	item = newMaintenance()
	item.Placement = Planned{Month: 14}
	if err := item.Validate(); !errors.Is(err, ErrInvalidFiscalMonth) {
		t.Fatalf("expected ErrInvalidFiscalMonth, got %v", err)
	}
}
