// Package cache holds the in-process caches the mirror worker uses to skip
// rewriting budget tabs that have not changed.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	applog "clubfin/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[string] = (*LRU[string])(nil)

type Cleaner interface {
	CleanExpired() int
}

// Fingerprints remembers the last content hash written per fiscal year.
type Fingerprints struct {
	lru *LRU[string]
}

func NewFingerprints(size int, ttl time.Duration) *Fingerprints {
	return &Fingerprints{lru: NewLRU[string](size, ttl)}
}

func yearKey(fiscalYear int) string {
	return fmt.Sprintf("FY%d", fiscalYear)
}

// Unchanged reports whether fingerprint matches the last one recorded for
// fiscalYear.
func (f *Fingerprints) Unchanged(fiscalYear int, fingerprint string) bool {
	last, ok := f.lru.Get(yearKey(fiscalYear))
	return ok && last == fingerprint
}

func (f *Fingerprints) Record(fiscalYear int, fingerprint string) {
	f.lru.Set(yearKey(fiscalYear), fingerprint)
}

func (f *Fingerprints) Forget(fiscalYear int) {
	f.lru.Delete(yearKey(fiscalYear))
}

func (f *Fingerprints) CleanExpired() int {
	return f.lru.CleanExpired()
}

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	caches []Cleaner
}

func NewManager(caches ...Cleaner) *Manager {
	return &Manager{caches: caches}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed",
					applog.FieldComponent, applog.ComponentCache,
					"removed", n)
			}
		}
	}
}
