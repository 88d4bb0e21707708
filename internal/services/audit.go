package services

import (
	"context"
	"fmt"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	"clubfin/internal/repository"

	"github.com/shopspring/decimal"
)

// Finding is one item whose journal disagrees with its ledger.
type Finding struct {
	Item     core.ItemRef    `json:"item"`
	Check    string          `json:"check"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s expected %s, journal has %s", f.Item, f.Check, f.Expected, f.Actual)
}

// AuditService checks that the journal explains every item's budget state.
type AuditService struct {
	store docstore.Reader
}

func NewAuditService(store docstore.Reader) *AuditService {
	return &AuditService{store: store}
}

// Run returns one finding per broken invariant. Every ledger entry must be
// booked in full, or not at all when the journal records that the engine
// skipped it. The plan must be removed exactly while some entry is booked.
func (s *AuditService) Run(ctx context.Context) ([]Finding, error) {
	items, err := repository.ListItems(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var findings []Finding
	for _, item := range items {
		ref := item.Ref()
		journal, err := repository.JournalForItem(ctx, s.store, ref)
		if err != nil {
			return nil, fmt.Errorf("load journal for %s: %w", ref, err)
		}

		plan, spend := decimal.Zero, decimal.Zero
		planSkipped := false
		bookedByTx := map[string]decimal.Decimal{}
		skipped := map[string]bool{}
		for _, e := range journal {
			switch {
			case e.Reason == core.ReasonPlanSkipped:
				planSkipped = true
			case e.Reason.IsPlan():
				plan = plan.Add(e.Delta)
			case e.Reason.IsSkip():
				skipped[e.TransactionID] = true
			default:
				spend = spend.Add(e.Delta)
				bookedByTx[e.TransactionID] = bookedByTx[e.TransactionID].Add(e.Delta)
			}
		}

		wantSpend := decimal.Zero
		anyBooked := false
		for _, e := range item.CurrentPlacement().Entries() {
			booked := bookedByTx[e.ID]
			if booked.IsZero() && skipped[e.ID] {
				continue
			}
			wantSpend = wantSpend.Add(e.Amount)
			if !booked.IsZero() {
				anyBooked = true
			}
		}

		wantPlan := decimal.Zero
		if anyBooked {
			wantPlan = item.PlannedAmount().Neg()
		}
		planOK := plan.Equal(wantPlan) || (anyBooked && plan.IsZero() && planSkipped)

		if !planOK {
			findings = append(findings, Finding{Item: ref, Check: "planned allocation", Expected: wantPlan, Actual: plan})
		}
		if !spend.Equal(wantSpend) {
			findings = append(findings, Finding{Item: ref, Check: "linked spending", Expected: wantSpend, Actual: spend})
		}
	}
	return findings, nil
}
