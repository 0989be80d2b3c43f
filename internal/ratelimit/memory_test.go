package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxstack/email-reachability-go/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedLimiter(w time.Duration, max int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemory(w, max).WithClock(clock.Now), clock
}

func TestMemoryLimiter_AdmitsUpToCeiling(t *testing.T) {
	l, clock := newClockedLimiter(10*time.Minute, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Admit(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, clock.Now().Add(10*time.Minute), d.ResetAt)
	}

	d, err := l.Admit(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// other keys are independent
	d, _ = l.Admit(ctx, "5.6.7.8")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l, clock := newClockedLimiter(time.Minute, 1)
	ctx := context.Background()

	d, _ := l.Admit(ctx, "k")
	assert.True(t, d.Allowed)
	d, _ = l.Admit(ctx, "k")
	assert.False(t, d.Allowed)

	clock.Advance(59 * time.Second)
	d, _ = l.Admit(ctx, "k")
	assert.False(t, d.Allowed, "window has not expired yet")

	clock.Advance(time.Second)
	d, _ = l.Admit(ctx, "k")
	assert.True(t, d.Allowed, "a new window starts at the reset deadline")
	assert.Equal(t, 0, d.Remaining)
}

func TestMemoryLimiter_RejectedCallsStillCount(t *testing.T) {
	l, _ := newClockedLimiter(time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Admit(ctx, "k")
	}
	assert.Equal(t, 5, l.entries["k"].count)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l, clock := newClockedLimiter(time.Minute, 10)
	ctx := context.Background()

	l.Admit(ctx, "old")
	clock.Advance(30 * time.Second)
	l.Admit(ctx, "new")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
	_, ok := l.entries["new"]
	assert.True(t, ok)
}

func TestMemoryLimiter_Run(t *testing.T) {
	l, clock := newClockedLimiter(time.Minute, 10)
	l.Admit(context.Background(), "k")
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemory(time.Minute, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Admit(ctx, "shared")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestNew_SelectsBackend(t *testing.T) {
	cfg := &config.Config{RateLimitWindow: time.Minute, RateLimitMax: 5}
	l, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	cfg.RedisURL = "not a url"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func ExampleMemoryLimiter_Admit() {
	l := NewMemory(time.Minute, 2)
	for i := 0; i < 3; i++ {
		d, _ := l.Admit(context.Background(), "client")
		fmt.Println(d.Allowed, d.Remaining)
	}
	// Output:
	// true 1
	// true 0
	// false 0
}
