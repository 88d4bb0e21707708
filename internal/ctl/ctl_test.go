package ctl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clubfin/internal/config"
	"clubfin/internal/core"
	"clubfin/internal/docstore/memory"
	"clubfin/internal/forecast"
	"clubfin/internal/repository"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	th := forecast.DefaultThresholds()
	return &config.Config{
		InflationRate: forecast.DefaultInflationRate,
		CriticalYears: th.CriticalYears,
		WarningYears:  th.WarningYears,
	}
}

func run(t *testing.T, store *memory.Store, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(WithConfig(testConfig()), WithStore(store), WithClock(func() time.Time { return fixedNow }))
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

const seedJSON = `{
  "budgets": [{"fiscalYear": 2026, "monthlyBudgets": [
    {"revenue":"1000","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"12000","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"},
    {"revenue":"0","opex":"0","capex":"0","ga":"0"}
  ]}],
  "maintenance": [{
    "id": "roof", "name": "Clubhouse roof", "fiscalYear": 2026, "budgetAmount": "12000",
    "placement": "planned", "month": 5,
    "recurrenceYearsMin": 7, "recurrenceYearsMax": 10,
    "trackingEnabled": true, "nextDueDateMin": "2026-09-01", "nextDueDateMax": "2029-09-01",
    "nextExpectedCost": "12500"
  }]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFiscalMonthCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"fiscal-month", "2025-10-01"}, "FY2026  month 0 (Oct)"},
		{[]string{"fiscal-month", "2026-09-30"}, "FY2026  month 11 (Sep)"},
		{[]string{"fiscal-month", "2026-01-15", "--fiscal-year", "2026"}, "month 3 (Jan)"},
		{[]string{"fiscal-month", "2026-10-01", "--fiscal-year", "2026"}, "outside FY2026"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got, err := run(t, memory.New(), tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("output %q does not contain %q", got, tt.want)
			}
		})
	}

	if _, err := run(t, memory.New(), "fiscal-month", "yesterday"); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestForecastCommand(t *testing.T) {
	got, err := run(t, memory.New(), "forecast",
		"--last", "2020-04-15", "--amount", "10000", "--min", "7", "--max", "10",
		"--inflation", "0", "--today", "2026-04-15")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"2027-04-15 to 2030-04-15", "Status:        critical", "Expected cost: 10,000.00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q does not contain %q", got, want)
		}
	}

	_, err = run(t, memory.New(), "forecast", "--last", "2020-04-15", "--amount", "10000", "--min", "5", "--max", "3")
	if !errors.Is(err, core.ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
}

func TestImportThenInspect(t *testing.T) {
	store := memory.New()
	path := writeSeed(t, seedJSON)

	got, err := run(t, store, "import", "--dry-run", path)
	if err != nil || !strings.Contains(got, "Would write 2 documents") {
		t.Fatalf("dry run: %q %v", got, err)
	}
	if _, ok, _ := repository.GetBudget(context.Background(), store, 2026); ok {
		t.Fatal("dry run must not write")
	}

	if got, err = run(t, store, "import", path); err != nil || !strings.Contains(got, "Imported 2 documents") {
		t.Fatalf("import: %q %v", got, err)
	}
	roof, err := repository.GetMaintenanceItem(context.Background(), store, "roof")
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := roof.Placement.(core.Planned); !ok || p.Month != 5 {
		t.Fatalf("unexpected placement %#v", roof.Placement)
	}

	got, err = run(t, store, "budget", "show", "FY2026")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Oct 2025", "Mar 2026", "12000.00", "Total", "-11000.00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("budget output missing %q:\n%s", want, got)
		}
	}
	if _, err := run(t, store, "budget", "show", "2030"); !errors.Is(err, core.ErrBudgetDocumentMissing) {
		t.Fatalf("expected ErrBudgetDocumentMissing, got %v", err)
	}

	if got, err = run(t, store, "audit"); err != nil || !strings.Contains(got, "Journal consistent") {
		t.Fatalf("audit: %q %v", got, err)
	}

	got, err = run(t, store, "alerts")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "critical") || !strings.Contains(got, "Clubhouse roof") {
		t.Fatalf("alerts output %q", got)
	}
}

func TestAuditReportsFindings(t *testing.T) {
	store := memory.New()
	item := &core.CapexProject{
		ID:         "nets",
		Name:       "Practice nets",
		FiscalYear: 2026,
		Amount:     decimal.RequireFromString("4000"),
		Placement: core.Linked{
			Month:         2,
			OriginalMonth: 1,
			Transactions: []core.LinkedTransaction{{
				ID:     "tx-1",
				Date:   core.NewDate(2025, 12, 1),
				Amount: decimal.RequireFromString("4000"),
			}},
		},
	}
	if err := repository.PutItem(context.Background(), store, item); err != nil {
		t.Fatal(err)
	}

	got, err := run(t, store, "audit")
	if !errors.Is(err, ErrAuditFindings) {
		t.Fatalf("expected ErrAuditFindings, got %v", err)
	}
	if !strings.Contains(got, "capex/nets") {
		t.Fatalf("finding output %q", got)
	}
}

func TestSeedRejectsLinkedItems(t *testing.T) {
	seed := Seed{Capex: []core.CapexProject{{
		ID:         "nets",
		FiscalYear: 2026,
		Amount:     decimal.RequireFromString("4000"),
		Placement: core.Linked{
			Month:        2,
			Transactions: []core.LinkedTransaction{{ID: "tx-1", Date: core.NewDate(2025, 12, 1), Amount: decimal.RequireFromString("1")}},
		},
	}}}
	if _, err := seed.Ops(); !errors.Is(err, errLinkedSeed) {
		t.Fatalf("expected errLinkedSeed, got %v", err)
	}

	bad := Seed{Maintenance: []core.MaintenanceItem{{ID: "roof", FiscalYear: 2026, RecurrenceYearsMin: 5, RecurrenceYearsMax: 2}}}
	if _, err := bad.Ops(); !errors.Is(err, core.ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
}
