//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"clubfin/internal/core"

	"github.com/shopspring/decimal"
)

// Run with: go test -tags=integration ./internal/sheets/google
// Writes a tab for a far-future fiscal year so real budgets are untouched.
func TestIntegration_BudgetMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		SheetSuffix:        "Integration",
	}
	if cfg.SpreadsheetID == "" || (cfg.ServiceAccountJSON == "" && cfg.ServiceAccountFile == "") {
		t.Skip("Google Sheets credentials not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	doc := core.NewBudget(2099)
	amount := decimal.NewFromInt(time.Now().Unix() % 100000)
	if err := doc.Adjust(4, core.BucketGA, amount); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBudget(ctx, doc); err != nil {
		t.Fatalf("WriteBudget() error = %v", err)
	}
	got, err := c.ReadBudget(ctx, 2099)
	if err != nil {
		t.Fatalf("ReadBudget() error = %v", err)
	}
	if !got.Amount(4, core.BucketGA).Equal(amount) {
		t.Errorf("G&A = %s, want %s", got.Amount(4, core.BucketGA), amount)
	}
}
