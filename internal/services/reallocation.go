package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
	"clubfin/internal/fiscal"
	"clubfin/internal/forecast"
	"clubfin/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	// UnmappedSkip leaves the budget untouched for transactions dated
	// outside the fiscal year they were saved under.
	UnmappedSkip UnmappedPolicy = "skip"
	// UnmappedRoute books them in the fiscal year that contains the date.
	UnmappedRoute UnmappedPolicy = "route"
)

type UnmappedPolicy string

func (p UnmappedPolicy) Valid() bool {
	return p == UnmappedSkip || p == UnmappedRoute
}

// ReallocatorConfig holds the policy knobs of the engine.
type ReallocatorConfig struct {
	Unmapped UnmappedPolicy
	Forecast forecast.Policy
}

// DefaultReallocatorConfig skips unmapped transactions and uses the default forecast policy.
func DefaultReallocatorConfig() ReallocatorConfig {
	return ReallocatorConfig{
		Unmapped: UnmappedSkip,
		Forecast: forecast.DefaultPolicy(),
	}
}

// Reallocator moves planned item budgets to the months where linked
// spending actually happens. Every delta it applies is journaled, and
// reversals are computed from the journal so they undo exactly what was
// applied before.
type Reallocator struct {
	config ReallocatorConfig
}

// NewReallocator returns an engine for config. An unknown unmapped policy
// falls back to UnmappedSkip.
func NewReallocator(config ReallocatorConfig) *Reallocator {
	if !config.Unmapped.Valid() {
		config.Unmapped = UnmappedSkip
	}
	return &Reallocator{config: config}
}

func (e *Reallocator) Config() ReallocatorConfig { return e.config }

// slot addresses one budget cell.
type slot struct {
	FiscalYear int
	Month      int
	Bucket     core.Bucket
}

func slotOf(e core.JournalEntry) slot {
	return slot{FiscalYear: e.FiscalYear, Month: e.Month, Bucket: e.Bucket}
}

func sortedSlots(m map[slot]decimal.Decimal) []slot {
	out := make([]slot, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Bucket < b.Bucket
	})
	return out
}

// run is the state of one save or delete inside a store transaction.
type run struct {
	engine *Reallocator
	tx     docstore.Tx
	actor  core.Actor
	now    time.Time
	newID  func() string

	budgets  map[int]*core.BudgetDocument
	missing  map[int]bool
	dirty    map[int]bool
	warnings []error
}

func (e *Reallocator) begin(tx docstore.Tx, actor core.Actor, now time.Time, newID func() string) *run {
	return &run{
		engine:  e,
		tx:      tx,
		actor:   actor,
		now:     now,
		newID:   newID,
		budgets: map[int]*core.BudgetDocument{},
		missing: map[int]bool{},
		dirty:   map[int]bool{},
	}
}

func (r *run) warn(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Reallocation warning", "error", err)
	r.warnings = append(r.warnings, err)
}

func (r *run) budget(ctx context.Context, fiscalYear int) (*core.BudgetDocument, error) {
	if b, ok := r.budgets[fiscalYear]; ok {
		return b, nil
	}
	if r.missing[fiscalYear] {
		return nil, nil
	}
	b, ok, err := repository.GetBudget(ctx, r.tx, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("load budget FY%d: %w", fiscalYear, err)
	}
	if !ok {
		r.missing[fiscalYear] = true
		r.warn(ctx, fmt.Errorf("%w: %s", core.ErrBudgetDocumentMissing, core.BudgetID(fiscalYear)))
		return nil, nil
	}
	r.budgets[fiscalYear] = &b
	return &b, nil
}

// apply adds delta to a budget cell and journals it. A missing budget is a
// warning; a skip marker is journaled in place of the delta.
func (r *run) apply(ctx context.Context, ref core.ItemRef, txID string, s slot, delta decimal.Decimal, reason core.JournalReason) error {
	if delta.IsZero() {
		return nil
	}
	b, err := r.budget(ctx, s.FiscalYear)
	if err != nil {
		return err
	}
	if b == nil {
		return r.record(ctx, ref, txID, s, decimal.Zero, reason.Skipped())
	}
	if err := b.Adjust(s.Month, s.Bucket, delta); err != nil {
		return err
	}
	r.dirty[s.FiscalYear] = true
	return r.record(ctx, ref, txID, s, delta, reason)
}

func (r *run) record(ctx context.Context, ref core.ItemRef, txID string, s slot, delta decimal.Decimal, reason core.JournalReason) error {
	entry := core.JournalEntry{
		ID:            r.newID(),
		Item:          ref,
		TransactionID: txID,
		FiscalYear:    s.FiscalYear,
		Month:         s.Month,
		Bucket:        s.Bucket,
		Delta:         delta,
		Reason:        reason,
		Actor:         r.actor.UserID,
		At:            r.now,
	}
	if err := repository.AppendJournal(ctx, r.tx, entry); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	slog.DebugContext(ctx, "Budget adjusted",
		"item", ref.String(),
		"transaction_id", txID,
		"fiscal_year", s.FiscalYear,
		"fiscal_month", s.Month,
		"bucket", s.Bucket,
		"delta", delta.String(),
		"reason", reason)
	return nil
}

// locate finds the budget cell a transaction's spending belongs in.
func (r *run) locate(ctx context.Context, t core.Transaction, bucket core.Bucket) (slot, bool) {
	if month, ok := fiscal.MonthOf(t.Date.Time, t.FiscalYear); ok {
		return slot{FiscalYear: t.FiscalYear, Month: month, Bucket: bucket}, true
	}
	r.warn(ctx, fmt.Errorf("%w: transaction %s dated %s saved under FY%d",
		core.ErrUnmappedFiscalMonth, t.ID, t.Date, t.FiscalYear))
	if r.engine.config.Unmapped != UnmappedRoute {
		return slot{}, false
	}
	fy, month := fiscal.Locate(t.Date.Time)
	return slot{FiscalYear: fy, Month: month, Bucket: bucket}, true
}

// planNet sums plan removals and restorations per cell.
func planNet(journal []core.JournalEntry) map[slot]decimal.Decimal {
	out := map[slot]decimal.Decimal{}
	for _, e := range journal {
		if e.Reason.IsPlan() {
			out[slotOf(e)] = out[slotOf(e)].Add(e.Delta)
		}
	}
	return out
}

func planParked(journal []core.JournalEntry) bool {
	for _, net := range planNet(journal) {
		if !net.IsZero() {
			return false
		}
	}
	return true
}

// spendOf sums what is currently booked for one transaction, per cell.
func spendOf(journal []core.JournalEntry, txID string) map[slot]decimal.Decimal {
	out := map[slot]decimal.Decimal{}
	for _, e := range journal {
		if !e.Reason.IsPlan() && e.TransactionID == txID {
			out[slotOf(e)] = out[slotOf(e)].Add(e.Delta)
		}
	}
	return out
}

// reconcileSpend moves the booked amounts of txID to target. Cells whose
// amount does not change are left alone, so an edit within one month is a
// single adjustment of new minus old.
func (r *run) reconcileSpend(ctx context.Context, ref core.ItemRef, txID string, journal []core.JournalEntry, target map[slot]decimal.Decimal) error {
	current := spendOf(journal, txID)
	union := map[slot]decimal.Decimal{}
	for s := range current {
		union[s] = decimal.Zero
	}
	for s := range target {
		union[s] = decimal.Zero
	}

	for _, s := range sortedSlots(union) {
		have, want := current[s], target[s]
		delta := want.Sub(have)
		if delta.IsZero() {
			continue
		}
		reason := core.ReasonSpendAdjusted
		switch {
		case have.IsZero():
			reason = core.ReasonSpendAdded
		case want.IsZero():
			reason = core.ReasonSpendRemoved
		}
		if err := r.apply(ctx, ref, txID, s, delta, reason); err != nil {
			return err
		}
	}
	return nil
}

// bookedMonths maps every transaction with spending on the journal to the
// month it is booked in.
func bookedMonths(journal []core.JournalEntry) map[string]int {
	byTx := map[string]map[slot]decimal.Decimal{}
	for _, e := range journal {
		if e.Reason.IsPlan() || e.TransactionID == "" {
			continue
		}
		if byTx[e.TransactionID] == nil {
			byTx[e.TransactionID] = map[slot]decimal.Decimal{}
		}
		byTx[e.TransactionID][slotOf(e)] = byTx[e.TransactionID][slotOf(e)].Add(e.Delta)
	}

	out := map[string]int{}
	for id, cells := range byTx {
		for _, s := range sortedSlots(cells) {
			if !cells[s].IsZero() {
				out[id] = s.Month
				break
			}
		}
	}
	return out
}

// settle brings the plan allocation and the item's month in line with what
// is booked. The plan stays parked until some linked spending is booked and
// comes back once none is. A linked item lives in the month of its earliest
// booked entry, or at its original month while nothing is booked.
func (r *run) settle(ctx context.Context, ref core.ItemRef, item core.Linkable) error {
	journal, err := repository.JournalForItem(ctx, r.tx, ref)
	if err != nil {
		return fmt.Errorf("load journal for %s: %w", ref, err)
	}
	booked := bookedMonths(journal)
	parked := planParked(journal)

	switch {
	case len(booked) > 0 && parked:
		plan := slot{
			FiscalYear: item.PlannedFiscalYear(),
			Month:      item.CurrentPlacement().PlannedMonth(),
			Bucket:     item.Bucket(),
		}
		if err := r.apply(ctx, ref, "", plan, item.PlannedAmount().Neg(), core.ReasonPlanRemoved); err != nil {
			return err
		}
	case len(booked) == 0 && !parked:
		net := planNet(journal)
		for _, s := range sortedSlots(net) {
			if err := r.apply(ctx, ref, "", s, net[s].Neg(), core.ReasonPlanRestored); err != nil {
				return err
			}
		}
	}

	l, ok := item.CurrentPlacement().(core.Linked)
	if !ok {
		return nil
	}
	month := l.OriginalMonth
	var earliest *core.LinkedTransaction
	for i, e := range l.Transactions {
		if _, ok := booked[e.ID]; !ok {
			continue
		}
		if earliest == nil || e.Date.Before(earliest.Date.Time) ||
			(e.Date.Equal(earliest.Date.Time) && e.ID < earliest.ID) {
			earliest = &l.Transactions[i]
		}
	}
	if earliest != nil {
		month = booked[earliest.ID]
	}
	core.MoveAllocation(item, month)
	return nil
}

// link records t on item and books it. It serves both create and edit: an
// entry with the same id is replaced and only the difference is booked.
func (r *run) link(ctx context.Context, item core.Linkable, t core.Transaction) error {
	ref, bucket := item.Ref(), item.Bucket()
	journal, err := repository.JournalForItem(ctx, r.tx, ref)
	if err != nil {
		return fmt.Errorf("load journal for %s: %w", ref, err)
	}

	core.LinkTransaction(item, t.Entry())

	target := map[slot]decimal.Decimal{}
	s, ok := r.locate(ctx, t, bucket)
	if ok {
		target[s] = t.Amount
	}
	if err := r.reconcileSpend(ctx, ref, t.ID, journal, target); err != nil {
		return err
	}
	if !ok {
		unmapped := slot{FiscalYear: t.FiscalYear, Month: -1, Bucket: bucket}
		if err := r.record(ctx, ref, t.ID, unmapped, decimal.Zero, core.ReasonSpendSkipped); err != nil {
			return err
		}
	}
	return r.settle(ctx, ref, item)
}

// unlink reverses everything booked for txID on ref. item may be nil when
// the document no longer exists; the booked spending is still reversed.
func (r *run) unlink(ctx context.Context, ref core.ItemRef, item core.Linkable, txID string) error {
	journal, err := repository.JournalForItem(ctx, r.tx, ref)
	if err != nil {
		return fmt.Errorf("load journal for %s: %w", ref, err)
	}
	if err := r.reconcileSpend(ctx, ref, txID, journal, nil); err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	if _, found, _ := core.UnlinkTransaction(item, txID); !found {
		slog.WarnContext(ctx, "Transaction missing from item ledger", "item", ref.String(), "transaction_id", txID)
	}
	if err := r.settle(ctx, ref, item); err != nil {
		return err
	}
	if item.IsCompleted() {
		core.CompleteFromLedger(item, r.now, r.engine.config.Forecast)
	}
	return nil
}

func (r *run) complete(item core.Linkable) {
	core.CompleteFromLedger(item, r.now, r.engine.config.Forecast)
}

// flush persists every budget the run changed and returns their years.
func (r *run) flush(ctx context.Context) ([]int, error) {
	years := make([]int, 0, len(r.dirty))
	for fy := range r.dirty {
		years = append(years, fy)
	}
	sort.Ints(years)
	for _, fy := range years {
		b := r.budgets[fy]
		b.UpdatedBy = r.actor.UserID
		b.UpdatedAt = r.now
		if err := repository.PutBudget(ctx, r.tx, *b); err != nil {
			return nil, fmt.Errorf("save budget FY%d: %w", fy, err)
		}
	}
	return years, nil
}
