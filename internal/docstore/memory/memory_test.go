package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"clubfin/internal/docstore"
	"clubfin/internal/docstore/docstoretest"
)

func TestStoreContract(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store { return New() })
}

// Read-modify-write inside RunInTx must not lose updates.
func TestConcurrentTransactionsSerialize(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Set(ctx, "counters", "c", []byte(`{"n":0}`)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
				data, err := tx.Get(ctx, "counters", "c")
				if err != nil {
					return err
				}
				var c struct{ N int }
				if err := json.Unmarshal(data, &c); err != nil {
					return err
				}
				c.N++
				out, _ := json.Marshal(map[string]int{"n": c.N})
				return tx.Set(ctx, "counters", "c", out)
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	data, err := s.Get(ctx, "counters", "c")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"n":20}` {
		t.Fatalf("expected 20 increments, got %s", data)
	}
}
