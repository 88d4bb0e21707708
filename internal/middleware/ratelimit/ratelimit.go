// Package ratelimit throttles writes per caller with a fixed one-minute
// window.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	now     func() time.Time

	requestsPerMinute int
	cleanupInterval   time.Duration
	rejected          int64
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Limiter{
		clients:           make(map[string]*clientInfo),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
}

// Allow records a request for key and reports whether it is within budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok || now.Sub(c.windowStart) >= window {
		l.clients[key] = &clientInfo{windowStart: now, requests: 1}
		return true
	}
	c.requests++
	if c.requests > l.requestsPerMinute {
		atomic.AddInt64(&l.rejected, 1)
		return false
	}
	return true
}

// Run evicts idle callers until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Cleanup drops callers whose window ended more than ten minutes ago.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-10 * time.Minute)
	removed := 0
	for key, c := range l.clients {
		if c.windowStart.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

type Metrics struct {
	Rejected    int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	n := int64(len(l.clients))
	l.mu.Unlock()
	return Metrics{
		Rejected:    atomic.LoadInt64(&l.rejected),
		ClientCount: n,
	}
}

// Middleware throttles requests by the key extracted from each request.
// onLimit, when set, writes the rejection; otherwise a plain 429 is sent.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(key(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
