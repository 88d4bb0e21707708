// Package backend assembles the document store and outbound adapters the
// binaries share.
package backend

import (
	"clubfin/internal/amqp"
	"clubfin/internal/docstore"
	"clubfin/internal/services"
)

// CleanupFunc releases resources opened by the factory.
type CleanupFunc func() error

// Backend bundles an open store with its optional event publisher.
type Backend struct {
	Store docstore.Store
	// Publisher is nil when no AMQP URL is configured or the broker was
	// unreachable at start-up.
	Publisher services.BudgetPublisher
	// AMQP is the concrete client behind Publisher, for consumers.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (st StoreType) String() string {
	return string(st)
}

func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}
