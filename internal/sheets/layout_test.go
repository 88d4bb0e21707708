package sheets

import (
	"errors"
	"strings"
	"testing"
	"time"

	"clubfin/internal/core"

	"github.com/shopspring/decimal"
)

func sampleBudget(t *testing.T) core.BudgetDocument {
	t.Helper()
	doc := core.NewBudget(2026)
	adjust := func(m int, b core.Bucket, v string) {
		if err := doc.Adjust(m, b, decimal.RequireFromString(v)); err != nil {
			t.Fatal(err)
		}
	}
	adjust(0, core.BucketRevenue, "1000")
	adjust(0, core.BucketOpex, "250.5")
	adjust(6, core.BucketGA, "40")
	adjust(11, core.BucketCapex, "12000")
	return doc
}

func TestTabName(t *testing.T) {
	tests := []struct {
		suffix string
		want   string
	}{
		{"Budget", "FY2026 Budget"},
		{"  Plan ", "FY2026 Plan"},
		{"", "FY2026"},
	}
	for _, tt := range tests {
		if got := TabName(tt.suffix, 2026); got != tt.want {
			t.Errorf("TabName(%q) = %q, want %q", tt.suffix, got, tt.want)
		}
	}
	if got := A1Range("FY2026 Budget"); got != "'FY2026 Budget'!A1:F14" {
		t.Errorf("A1Range = %q", got)
	}
	if got := A1Range("Bob's"); got != "'Bob''s'!A1:F14" {
		t.Errorf("A1Range should escape quotes, got %q", got)
	}
}

func TestBudgetRows(t *testing.T) {
	rows := BudgetRows(sampleBudget(t))
	if len(rows) != RowCount {
		t.Fatalf("len(rows) = %d, want %d", len(rows), RowCount)
	}

	checks := []struct {
		row, col int
		want     string
	}{
		{0, 0, "Month"},
		{0, 4, "G&A"},
		{1, 0, "Oct 2025"},
		{1, 1, "1000.00"},
		{1, 2, "250.50"},
		{1, 5, "749.50"},
		{4, 0, "Jan 2026"},
		{7, 4, "40.00"},
		{12, 0, "Sep 2026"},
		{12, 3, "12000.00"},
		{12, 5, "-12000.00"},
		{13, 0, "Total"},
		{13, 1, "1000.00"},
		{13, 5, "-11290.50"},
	}
	for _, c := range checks {
		if got := rows[c.row][c.col]; got != c.want {
			t.Errorf("rows[%d][%d] = %v, want %s", c.row, c.col, got, c.want)
		}
	}
}

func TestParseBudgetRows_RoundTrip(t *testing.T) {
	doc := sampleBudget(t)
	got, err := ParseBudgetRows(BudgetRows(doc), 2026)
	if err != nil {
		t.Fatalf("ParseBudgetRows() error = %v", err)
	}
	for m := range doc.MonthlyBudgets {
		for _, b := range columnBuckets {
			if !got.Amount(m, b).Equal(doc.Amount(m, b)) {
				t.Errorf("month %d %s = %s, want %s", m, b, got.Amount(m, b), doc.Amount(m, b))
			}
		}
	}
}

func TestParseBudgetRows_FormattedCells(t *testing.T) {
	values := [][]any{
		{"month", "revenue", "opex", "capex", "g&a"},
		{"Oct 2025", "1,234.50", "1234,50", 99.5, ""},
		{"Nov 2025", "-12", "", "", "0"},
	}
	doc, err := ParseBudgetRows(values, 2026)
	if err != nil {
		t.Fatalf("ParseBudgetRows() error = %v", err)
	}
	want := map[core.Bucket]string{
		core.BucketRevenue: "1234.5",
		core.BucketOpex:    "1234.5",
		core.BucketCapex:   "99.5",
		core.BucketGA:      "0",
	}
	for b, v := range want {
		if !doc.Amount(0, b).Equal(decimal.RequireFromString(v)) {
			t.Errorf("Oct %s = %s, want %s", b, doc.Amount(0, b), v)
		}
	}
	if !doc.Amount(1, core.BucketRevenue).Equal(decimal.NewFromInt(-12)) {
		t.Errorf("Nov revenue = %s", doc.Amount(1, core.BucketRevenue))
	}
}

func TestParseBudgetRows_Errors(t *testing.T) {
	if _, err := ParseBudgetRows(nil, 2026); !errors.Is(err, ErrTabNotFound) {
		t.Errorf("empty tab err = %v, want ErrTabNotFound", err)
	}

	_, err := ParseBudgetRows([][]any{{"Month", "Revenue", "OpEx"}}, 2026)
	if err == nil || !strings.Contains(err.Error(), "unexpected budget header") {
		t.Errorf("missing columns err = %v", err)
	}

	_, err = ParseBudgetRows([][]any{
		{"Month", "Revenue", "OpEx", "CapEx", "G&A"},
		{"Oct 2025", "lots"},
	}, 2026)
	if err == nil || !strings.Contains(err.Error(), "Oct 2025") {
		t.Errorf("bad cell err = %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := sampleBudget(t)
	b := sampleBudget(t)
	b.UpdatedAt = time.Now()
	b.UpdatedBy = "treasurer@example.org"
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("metadata should not change the fingerprint")
	}

	if err := b.Adjust(3, core.BucketOpex, decimal.NewFromInt(1)); err != nil {
		t.Fatal(err)
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("amount change should change the fingerprint")
	}
}
