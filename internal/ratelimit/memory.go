package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in a map guarded by a mutex, which makes
// each read-modify-write atomic per key.  Lapsed entries are removed by
// Sweep; run StartSweeper to keep memory bounded.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Check(_ context.Context, key string, limit int, win time.Duration) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(win)}
		l.windows[key] = w
		return Result{Allowed: limit > 0, Remaining: max(limit-1, 0), ResetAt: w.resetAt}, nil
	}
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Sweep drops every window that has lapsed at now and returns how many
// were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (l *MemoryLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep(l.now())
			}
		}
	}()
}
