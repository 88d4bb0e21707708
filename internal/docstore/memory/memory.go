// Package memory is an in-process docstore used in development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"clubfin/internal/docstore"
)

type key struct {
	collection string
	id         string
}

// Store keeps documents in maps. Transactions are serialized and their
// writes staged until commit.
type Store struct {
	txMu sync.Mutex // one writer at a time

	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: map[string]map[string][]byte{}}
}

func (s *Store) Get(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(collection, id)
}

func (s *Store) get(collection, id string) ([]byte, error) {
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query(s.docs[collection], nil, collection, filters)
}

func (s *Store) Set(ctx context.Context, collection, id string, data []byte) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Set(ctx, collection, id, data)
	})
}

func (s *Store) Merge(ctx context.Context, collection, id string, patch []byte) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Merge(ctx, collection, id, patch)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Delete(ctx, collection, id)
	})
}

// BatchWrite applies every op atomically.
func (s *Store) BatchWrite(ctx context.Context, ops []docstore.Op) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		for _, op := range ops {
			if err := docstore.Apply(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s, staged: map[key][]byte{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, data := range tx.staged {
		if data == nil {
			delete(s.docs[k.collection], k.id)
			continue
		}
		coll, ok := s.docs[k.collection]
		if !ok {
			coll = map[string][]byte{}
			s.docs[k.collection] = coll
		}
		coll[k.id] = data
	}
	return nil
}

func (s *Store) Close() error { return nil }

// memTx overlays staged writes on the committed maps. A nil staged value is
// a pending delete.
type memTx struct {
	store  *Store
	staged map[key][]byte
}

func (t *memTx) Get(_ context.Context, collection, id string) ([]byte, error) {
	if data, ok := t.staged[key{collection, id}]; ok {
		if data == nil {
			return nil, docstore.ErrNotFound
		}
		return append([]byte(nil), data...), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.get(collection, id)
}

func (t *memTx) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return query(t.store.docs[collection], t.staged, collection, filters)
}

func (t *memTx) Set(_ context.Context, collection, id string, data []byte) error {
	if err := docstore.CheckObject(data); err != nil {
		return err
	}
	t.staged[key{collection, id}] = append([]byte(nil), data...)
	return nil
}

func (t *memTx) Merge(ctx context.Context, collection, id string, patch []byte) error {
	base, err := t.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	merged, err := docstore.MergeJSON(base, patch)
	if err != nil {
		return err
	}
	t.staged[key{collection, id}] = merged
	return nil
}

func (t *memTx) Delete(_ context.Context, collection, id string) error {
	t.staged[key{collection, id}] = nil
	return nil
}

func query(committed map[string][]byte, staged map[key][]byte, collection string, filters []docstore.Filter) ([]docstore.Document, error) {
	view := make(map[string][]byte, len(committed))
	for id, data := range committed {
		view[id] = data
	}
	for k, data := range staged {
		if k.collection != collection {
			continue
		}
		if data == nil {
			delete(view, k.id)
		} else {
			view[k.id] = data
		}
	}

	out := make([]docstore.Document, 0, len(view))
	for id, data := range view {
		ok, err := docstore.Matches(data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, docstore.Document{ID: id, Data: append([]byte(nil), data...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
