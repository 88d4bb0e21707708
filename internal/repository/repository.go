// Package repository maps domain documents onto docstore collections.
// Every function takes the narrowest docstore view it needs so the same code
// runs against the store or inside a transaction.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clubfin/internal/core"
	"clubfin/internal/docstore"
)

func get[T any](ctx context.Context, r docstore.Reader, collection, id string) (T, error) {
	var v T
	data, err := r.Get(ctx, collection, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return v, nil
}

func put(ctx context.Context, w docstore.Writer, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return w.Set(ctx, collection, id, data)
}

func list[T any](ctx context.Context, r docstore.Reader, collection string, filters ...docstore.Filter) ([]T, error) {
	docs, err := r.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func byFiscalYear(fiscalYear int) []docstore.Filter {
	if fiscalYear == 0 {
		return nil
	}
	return []docstore.Filter{{Field: "fiscalYear", Value: fiscalYear}}
}

// ItemCollection returns the collection an item kind is stored in.
func ItemCollection(kind core.ItemKind) (string, error) {
	switch kind {
	case core.MaintenanceKind:
		return docstore.CollectionMaintenance, nil
	case core.CapexKind:
		return docstore.CollectionCapex, nil
	}
	return "", fmt.Errorf("unknown item kind %q", kind)
}

// Transactions

// GetTransaction returns the transaction with id or ErrTransactionNotFound.
func GetTransaction(ctx context.Context, r docstore.Reader, id string) (core.Transaction, error) {
	tx, err := get[core.Transaction](ctx, r, docstore.CollectionTransactions, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return tx, fmt.Errorf("%w: %s", core.ErrTransactionNotFound, id)
	}
	return tx, err
}

// PutTransaction creates or replaces tx.
func PutTransaction(ctx context.Context, w docstore.Writer, tx core.Transaction) error {
	return put(ctx, w, docstore.CollectionTransactions, tx.ID, tx)
}

// DeleteTransaction removes the transaction with id.
func DeleteTransaction(ctx context.Context, w docstore.Writer, id string) error {
	return w.Delete(ctx, docstore.CollectionTransactions, id)
}

// ListTransactions returns the transactions saved under fiscalYear, or all
// of them when fiscalYear is zero.
func ListTransactions(ctx context.Context, r docstore.Reader, fiscalYear int) ([]core.Transaction, error) {
	return list[core.Transaction](ctx, r, docstore.CollectionTransactions, byFiscalYear(fiscalYear)...)
}

// Budgets

// GetBudget reports ok == false when no budget exists for the year.
func GetBudget(ctx context.Context, r docstore.Reader, fiscalYear int) (b core.BudgetDocument, ok bool, err error) {
	b, err = get[core.BudgetDocument](ctx, r, docstore.CollectionBudgets, core.BudgetID(fiscalYear))
	if errors.Is(err, docstore.ErrNotFound) {
		return core.BudgetDocument{}, false, nil
	}
	if err != nil {
		return core.BudgetDocument{}, false, err
	}
	return b, true, nil
}

func PutBudget(ctx context.Context, w docstore.Writer, b core.BudgetDocument) error {
	return put(ctx, w, docstore.CollectionBudgets, core.BudgetID(b.FiscalYear), b)
}

func ListBudgets(ctx context.Context, r docstore.Reader) ([]core.BudgetDocument, error) {
	return list[core.BudgetDocument](ctx, r, docstore.CollectionBudgets)
}

// Items

// GetItem resolves ref across every fiscal year.
func GetItem(ctx context.Context, r docstore.Reader, ref core.ItemRef) (core.Linkable, error) {
	var (
		item core.Linkable
		err  error
	)
	switch ref.Kind {
	case core.MaintenanceKind:
		var m core.MaintenanceItem
		m, err = get[core.MaintenanceItem](ctx, r, docstore.CollectionMaintenance, ref.ID)
		item = &m
	case core.CapexKind:
		var c core.CapexProject
		c, err = get[core.CapexProject](ctx, r, docstore.CollectionCapex, ref.ID)
		item = &c
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrLinkedItemNotFound, ref)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrLinkedItemNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func PutItem(ctx context.Context, w docstore.Writer, item core.Linkable) error {
	ref := item.Ref()
	coll, err := ItemCollection(ref.Kind)
	if err != nil {
		return err
	}
	return put(ctx, w, coll, ref.ID, item)
}

func GetMaintenanceItem(ctx context.Context, r docstore.Reader, id string) (core.MaintenanceItem, error) {
	return get[core.MaintenanceItem](ctx, r, docstore.CollectionMaintenance, id)
}

func GetCapexProject(ctx context.Context, r docstore.Reader, id string) (core.CapexProject, error) {
	return get[core.CapexProject](ctx, r, docstore.CollectionCapex, id)
}

// ListMaintenanceItems returns the items planned in fiscalYear, or all of
// them when fiscalYear is zero.
func ListMaintenanceItems(ctx context.Context, r docstore.Reader, fiscalYear int) ([]core.MaintenanceItem, error) {
	return list[core.MaintenanceItem](ctx, r, docstore.CollectionMaintenance, byFiscalYear(fiscalYear)...)
}

func ListCapexProjects(ctx context.Context, r docstore.Reader, fiscalYear int) ([]core.CapexProject, error) {
	return list[core.CapexProject](ctx, r, docstore.CollectionCapex, byFiscalYear(fiscalYear)...)
}

// ListItems returns every maintenance item and CAPEX project.
func ListItems(ctx context.Context, r docstore.Reader) ([]core.Linkable, error) {
	maint, err := ListMaintenanceItems(ctx, r, 0)
	if err != nil {
		return nil, err
	}
	capex, err := ListCapexProjects(ctx, r, 0)
	if err != nil {
		return nil, err
	}
	out := make([]core.Linkable, 0, len(maint)+len(capex))
	for i := range maint {
		out = append(out, &maint[i])
	}
	for i := range capex {
		out = append(out, &capex[i])
	}
	return out, nil
}

// Journal

func AppendJournal(ctx context.Context, w docstore.Writer, e core.JournalEntry) error {
	return put(ctx, w, docstore.CollectionJournal, e.ID, e)
}

// JournalForItem returns the entries recorded for ref.
func JournalForItem(ctx context.Context, r docstore.Reader, ref core.ItemRef) ([]core.JournalEntry, error) {
	return list[core.JournalEntry](ctx, r, docstore.CollectionJournal,
		docstore.Filter{Field: "item.kind", Value: string(ref.Kind)},
		docstore.Filter{Field: "item.id", Value: ref.ID},
	)
}
