package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type JournalReason string

const (
	ReasonPlanRemoved   JournalReason = "plan_removed"
	ReasonPlanRestored  JournalReason = "plan_restored"
	ReasonSpendAdded    JournalReason = "spend_added"
	ReasonSpendAdjusted JournalReason = "spend_adjusted"
	ReasonSpendRemoved  JournalReason = "spend_removed"

	// Skip markers carry a zero delta. They record that the engine chose not
	// to touch a budget, either because the cell's budget document was
	// missing or because the transaction date fell outside its fiscal year
	// (Month is -1 then).
	ReasonPlanSkipped  JournalReason = "plan_skipped"
	ReasonSpendSkipped JournalReason = "spend_skipped"
)

// JournalEntry records one delta applied to a budget bucket on behalf of an item.
type JournalEntry struct {
	ID            string          `json:"id"`
	Item          ItemRef         `json:"item"`
	TransactionID string          `json:"transactionId,omitempty"`
	FiscalYear    int             `json:"fiscalYear"`
	Month         int             `json:"month"`
	Bucket        Bucket          `json:"bucket"`
	Delta         decimal.Decimal `json:"delta"`
	Reason        JournalReason   `json:"reason"`
	Actor         string          `json:"actor,omitempty"`
	At            time.Time       `json:"at"`
}

// IsPlan reports whether the entry moved the planned allocation rather than spending.
func (r JournalReason) IsPlan() bool {
	return r == ReasonPlanRemoved || r == ReasonPlanRestored || r == ReasonPlanSkipped
}

// IsSkip reports whether the entry is a skip marker.
func (r JournalReason) IsSkip() bool {
	return r == ReasonPlanSkipped || r == ReasonSpendSkipped
}

// Skipped returns the marker recorded instead of r when its budget is not touched.
func (r JournalReason) Skipped() JournalReason {
	if r.IsPlan() {
		return ReasonPlanSkipped
	}
	return ReasonSpendSkipped
}
