package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps one fixed window per key in process memory.
type MemoryLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*window
}

func NewMemory(w time.Duration, max int) *MemoryLimiter {
	return &MemoryLimiter{
		window:  w,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*window),
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &window{resetAt: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	count, resetAt := e.count, e.resetAt
	l.mu.Unlock()

	return decide(count, l.max, resetAt), nil
}

// Sweep drops expired windows and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				slog.DebugContext(ctx, "rate limiter swept expired windows", "removed", n)
			}
		}
	}
}
