package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLRU(size int, ttl time.Duration) (*LRU[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, 0)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRU_SetOverwrites(t *testing.T) {
	c, _ := newTestLRU(2, 0)
	c.Set("a", "1")
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("Get(a) = %q, want 2", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRU_TTL(t *testing.T) {
	c, clock := newTestLRU(4, time.Minute)
	c.Set("a", "1")
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", "2")

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should still be live")
	}

	clock.t = clock.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRU_Delete(t *testing.T) {
	c, _ := newTestLRU(2, 0)
	c.Set("a", "1")
	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone")
	}
}

func TestFingerprints(t *testing.T) {
	f := NewFingerprints(8, 0)
	if f.Unchanged(2026, "abc") {
		t.Error("unknown year should not be unchanged")
	}
	f.Record(2026, "abc")
	if !f.Unchanged(2026, "abc") {
		t.Error("same fingerprint should be unchanged")
	}
	if f.Unchanged(2026, "def") {
		t.Error("different fingerprint should be a change")
	}
	if f.Unchanged(2027, "abc") {
		t.Error("years are independent")
	}
	f.Forget(2026)
	if f.Unchanged(2026, "abc") {
		t.Error("forgotten year should be a change")
	}
}

func TestManager_Sweep(t *testing.T) {
	c, clock := newTestLRU(4, time.Second)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(2 * time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
}
