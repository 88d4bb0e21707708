// Package docstore defines the document database the rest of the module
// persists through. Documents are JSON objects addressed by collection and id.
package docstore

import (
	"context"
	"errors"
)

const (
	CollectionTransactions = "transactions"
	CollectionMaintenance  = "majorMaintenanceItems"
	CollectionCapex        = "capexProjects"
	CollectionBudgets      = "budgets"
	CollectionJournal      = "reallocationJournal"
)

const (
	OpSet OpKind = iota
	OpMerge
	OpDelete
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidDocument = errors.New("document must be a JSON object")
)

type (
	OpKind int

	Document struct {
		ID   string
		Data []byte
	}

	// Filter matches documents whose field equals Value. Field may be a dotted
	// path into nested objects, e.g. "item.id".
	Filter struct {
		Field string
		Value any
	}

	// Op is one write of a batch.
	Op struct {
		Kind       OpKind
		Collection string
		ID         string
		Data       []byte
	}

	Reader interface {
		// Get returns ErrNotFound when the document does not exist.
		Get(ctx context.Context, collection, id string) ([]byte, error)
		// Query returns every document matching all filters, ordered by id.
		Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	}

	Writer interface {
		Set(ctx context.Context, collection, id string, data []byte) error
		// Merge overlays the top-level fields of patch onto the stored document,
		// creating it when absent.
		Merge(ctx context.Context, collection, id string, patch []byte) error
		Delete(ctx context.Context, collection, id string) error
	}

	// Tx is the view of the store inside RunInTx. Reads observe the
	// transaction's own uncommitted writes.
	Tx interface {
		Reader
		Writer
	}

	Store interface {
		Tx
		// RunInTx commits every write fn makes, or none of them when fn
		// returns an error.
		RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
		BatchWrite(ctx context.Context, ops []Op) error
		Close() error
	}
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpMerge:
		return "merge"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Apply runs a single batch operation against w.
func Apply(ctx context.Context, w Writer, op Op) error {
	switch op.Kind {
	case OpSet:
		return w.Set(ctx, op.Collection, op.ID, op.Data)
	case OpMerge:
		return w.Merge(ctx, op.Collection, op.ID, op.Data)
	case OpDelete:
		return w.Delete(ctx, op.Collection, op.ID)
	}
	return errors.New("unknown batch operation")
}
