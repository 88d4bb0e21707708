// Package docstoretest holds the behaviour every docstore.Store must share.
package docstoretest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"clubfin/internal/docstore"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) docstore.Store

// Run exercises a store implementation against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, newStore(t)) })
	t.Run("RejectsNonObject", func(t *testing.T) { testRejectsNonObject(t, newStore(t)) })
	t.Run("Query", func(t *testing.T) { testQuery(t, newStore(t)) })
	t.Run("Merge", func(t *testing.T) { testMerge(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("BatchWrite", func(t *testing.T) { testBatchWrite(t, newStore(t)) })
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func testGetMissing(t *testing.T, s docstore.Store) {
	if _, err := s.Get(context.Background(), "things", "nope"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSetGetDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "things", "a", []byte(`{"name":"first","n":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "things", "a", []byte(`{"name":"second"}`)); err != nil {
		t.Fatal(err)
	}
	data, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatal(err)
	}
	doc := decode(t, data)
	if doc["name"] != "second" {
		t.Fatalf("set must replace, got %v", doc)
	}
	if _, ok := doc["n"]; ok {
		t.Fatalf("set must not keep old fields, got %v", doc)
	}

	if _, err := s.Get(ctx, "other", "a"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("collections must be isolated, got %v", err)
	}

	if err := s.Delete(ctx, "things", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "things", "a"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "things", "a"); err != nil {
		t.Fatalf("deleting a missing document must succeed, got %v", err)
	}
}

func testRejectsNonObject(t *testing.T, s docstore.Store) {
	for _, bad := range []string{`[1,2]`, `"x"`, `not json`} {
		if err := s.Set(context.Background(), "things", "a", []byte(bad)); !errors.Is(err, docstore.ErrInvalidDocument) {
			t.Fatalf("%s: expected ErrInvalidDocument, got %v", bad, err)
		}
	}
}

func testQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	docs := map[string]string{
		"c": `{"fiscalYear":2026,"item":{"kind":"maintenance","id":"roof"}}`,
		"a": `{"fiscalYear":2026,"item":{"kind":"capex","id":"lights"}}`,
		"b": `{"fiscalYear":2025,"item":{"kind":"maintenance","id":"roof"}}`,
	}
	for id, body := range docs {
		if err := s.Set(ctx, "journal", id, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name    string
		filters []docstore.Filter
		want    []string
	}{
		{"all", nil, []string{"a", "b", "c"}},
		{"number", []docstore.Filter{{Field: "fiscalYear", Value: 2026}}, []string{"a", "c"}},
		{"nested", []docstore.Filter{{Field: "item.id", Value: "roof"}}, []string{"b", "c"}},
		{"conjunction", []docstore.Filter{
			{Field: "item.id", Value: "roof"},
			{Field: "fiscalYear", Value: 2025},
		}, []string{"b"}},
		{"missing field", []docstore.Filter{{Field: "nope", Value: "x"}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Query(ctx, "journal", tc.filters...)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %d documents", tc.want, len(got))
			}
			for i, d := range got {
				if d.ID != tc.want[i] {
					t.Fatalf("expected %v in order, got %s at %d", tc.want, d.ID, i)
				}
			}
		})
	}
}

func testMerge(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Merge(ctx, "things", "m", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("merge must create: %v", err)
	}
	if err := s.Merge(ctx, "things", "m", []byte(`{"b":"two","a":null}`)); err != nil {
		t.Fatal(err)
	}
	data, err := s.Get(ctx, "things", "m")
	if err != nil {
		t.Fatal(err)
	}
	doc := decode(t, data)
	if doc["b"] != "two" {
		t.Fatalf("expected merged field, got %v", doc)
	}
	if _, ok := doc["a"]; ok {
		t.Fatalf("null must remove the field, got %v", doc)
	}
}

func testTxCommit(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "things", "gone", []byte(`{"x":1}`)); err != nil {
		t.Fatal(err)
	}

	err := s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Set(ctx, "things", "a", []byte(`{"v":1}`)); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "things", "gone"); err != nil {
			return err
		}
		data, err := tx.Get(ctx, "things", "a")
		if err != nil {
			return err
		}
		if decode(t, data)["v"] != float64(1) {
			t.Errorf("tx must read its own write, got %s", data)
		}
		if _, err := tx.Get(ctx, "things", "gone"); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("tx must see its own delete, got %v", err)
		}
		docs, err := tx.Query(ctx, "things")
		if err != nil {
			return err
		}
		if len(docs) != 1 || docs[0].ID != "a" {
			t.Errorf("tx query must reflect staged writes, got %v", docs)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "things", "a"); err != nil {
		t.Fatalf("committed write missing: %v", err)
	}
	if _, err := s.Get(ctx, "things", "gone"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("committed delete missing: %v", err)
	}
}

func testTxRollback(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "things", "keep", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Set(ctx, "things", "new", []byte(`{"v":2}`)); err != nil {
			return err
		}
		if err := tx.Set(ctx, "things", "keep", []byte(`{"v":3}`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if _, err := s.Get(ctx, "things", "new"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("rolled back write visible: %v", err)
	}
	data, err := s.Get(ctx, "things", "keep")
	if err != nil {
		t.Fatal(err)
	}
	if decode(t, data)["v"] != float64(1) {
		t.Fatalf("rolled back update visible: %s", data)
	}
}

func testBatchWrite(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ops := []docstore.Op{
		{Kind: docstore.OpSet, Collection: "things", ID: "a", Data: []byte(`{"v":1}`)},
		{Kind: docstore.OpSet, Collection: "things", ID: "b", Data: []byte(`{"v":2}`)},
		{Kind: docstore.OpMerge, Collection: "things", ID: "a", Data: []byte(`{"w":true}`)},
		{Kind: docstore.OpDelete, Collection: "things", ID: "b"},
	}
	if err := s.BatchWrite(ctx, ops); err != nil {
		t.Fatal(err)
	}
	docs, err := s.Query(ctx, "things")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("unexpected documents %v", docs)
	}
	if doc := decode(t, docs[0].Data); doc["v"] != float64(1) || doc["w"] != true {
		t.Fatalf("unexpected merged document %v", doc)
	}

	bad := []docstore.Op{
		{Kind: docstore.OpSet, Collection: "things", ID: "c", Data: []byte(`{"v":3}`)},
		{Kind: docstore.OpSet, Collection: "things", ID: "d", Data: []byte(`[]`)},
	}
	if err := s.BatchWrite(ctx, bad); err == nil {
		t.Fatal("expected batch failure")
	}
	if _, err := s.Get(ctx, "things", "c"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("failed batch must not apply partially: %v", err)
	}
}
