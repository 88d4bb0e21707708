package core

import (
	"time"

	"clubfin/internal/forecast"

	"github.com/shopspring/decimal"
)

// LinkTransaction records entry on the item's ledger. An entry with the same
// id is replaced in place so re-linking on edit is idempotent. It reports
// whether the ledger was empty before the call.
func LinkTransaction(item Linkable, entry LinkedTransaction) (first bool) {
	p := item.CurrentPlacement()
	entries := append([]LinkedTransaction(nil), p.Entries()...)
	first = len(entries) == 0

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	item.SetPlacement(Linked{
		Month:         p.CurrentMonth(),
		OriginalMonth: p.PlannedMonth(),
		Transactions:  entries,
	})
	item.SetActualTotal(SumEntries(entries))
	return first
}

// MoveAllocation points a linked item at the month where its spending lives.
func MoveAllocation(item Linkable, month int) {
	if l, ok := item.CurrentPlacement().(Linked); ok {
		l.Month = month
		item.SetPlacement(l)
	}
}

// UnlinkTransaction removes the entry with id. When the ledger becomes empty
// the item goes back to Planned at its original month and loses its
// completion. Otherwise Month is left as it was; the engine moves it to the
// earliest booked entry once the journal is settled.
func UnlinkTransaction(item Linkable, id string) (removed LinkedTransaction, found, emptied bool) {
	l, ok := item.CurrentPlacement().(Linked)
	if !ok {
		return LinkedTransaction{}, false, false
	}

	remaining := make([]LinkedTransaction, 0, len(l.Transactions))
	for _, e := range l.Transactions {
		if !found && e.ID == id {
			removed, found = e, true
			continue
		}
		remaining = append(remaining, e)
	}
	if !found {
		return LinkedTransaction{}, false, false
	}

	if len(remaining) == 0 {
		item.SetPlacement(Planned{Month: l.OriginalMonth})
		item.SetActualTotal(decimal.Zero)
		item.Reopen()
		return removed, true, true
	}

	item.SetPlacement(Linked{Month: l.Month, OriginalMonth: l.OriginalMonth, Transactions: remaining})
	item.SetActualTotal(SumEntries(remaining))
	return removed, true, false
}

// CompleteFromLedger marks the item complete using its most recent entry and
// the ledger total. It is a no-op on an empty ledger.
func CompleteFromLedger(item Linkable, today time.Time, policy forecast.Policy) bool {
	entries := item.CurrentPlacement().Entries()
	if len(entries) == 0 {
		return false
	}
	latest := entries[0]
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		if e.Date.After(latest.Date.Time) {
			latest = e
		}
	}
	item.Complete(Completion{
		Last:           latest,
		Total:          SumEntries(entries),
		TransactionIDs: ids,
		Today:          today,
		Policy:         policy,
	})
	return true
}

// FindEntry returns the ledger entry with id.
func FindEntry(item Linkable, id string) (LinkedTransaction, bool) {
	for _, e := range item.CurrentPlacement().Entries() {
		if e.ID == id {
			return e, true
		}
	}
	return LinkedTransaction{}, false
}

func SumEntries(entries []LinkedTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
