package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is safe to read from the sweeper goroutine while a test advances it.
type clock struct{ ns atomic.Int64 }

func newClock(t time.Time) *clock {
	c := &clock{}
	c.ns.Store(t.UnixNano())
	return c
}

func (c *clock) now() time.Time          { return time.Unix(0, c.ns.Load()).UTC() }
func (c *clock) advance(d time.Duration) { c.ns.Add(int64(d)) }

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	c := newClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter().WithClock(c.now)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := l.Check(ctx, "email-check:1.2.3.4", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 5-i, res.Remaining)
		assert.Equal(t, c.now().Add(time.Hour), res.ResetAt)
	}

	res, err := l.Check(ctx, "email-check:1.2.3.4", 5, time.Hour)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "sixth request in the window is denied")
	assert.Equal(t, 0, res.Remaining)

	c.advance(time.Hour)
	res, _ = l.Check(ctx, "email-check:1.2.3.4", 5, time.Hour)
	assert.False(t, res.Allowed, "window still open exactly at resetAt")

	c.advance(time.Millisecond)
	res, _ = l.Check(ctx, "email-check:1.2.3.4", 5, time.Hour)
	assert.True(t, res.Allowed, "past resetAt the window restarts")
	assert.Equal(t, 4, res.Remaining)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	res, _ := l.Check(ctx, "a", 1, time.Minute)
	assert.True(t, res.Allowed)
	res, _ = l.Check(ctx, "a", 1, time.Minute)
	assert.False(t, res.Allowed)
	res, _ = l.Check(ctx, "b", 1, time.Minute)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_ConcurrentChecksNeverOvershoot(t *testing.T) {
	l := NewMemoryLimiter()
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(context.Background(), "login:9.9.9.9", 10, time.Minute)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 10, allowed.Load())
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	c := newClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter().WithClock(c.now)
	ctx := context.Background()

	_, _ = l.Check(ctx, "short", 3, time.Minute)
	_, _ = l.Check(ctx, "long", 3, time.Hour)
	require.Equal(t, 2, l.Len())

	assert.Equal(t, 0, l.Sweep(c.now().Add(30*time.Second)))
	assert.Equal(t, 1, l.Sweep(c.now().Add(2*time.Minute)))
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_SweeperStopsWithContext(t *testing.T) {
	c := newClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter().WithClock(c.now)
	_, _ = l.Check(context.Background(), "k", 1, time.Minute)
	c.advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	l.StartSweeper(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestNew_FallsBackWithoutRedis(t *testing.T) {
	l := New("redis", "rl", nil, zerolog.Nop())
	_, ok := l.(*MemoryLimiter)
	assert.True(t, ok)

	_, ok = New("memory", "rl", nil, zerolog.Nop()).(*MemoryLimiter)
	assert.True(t, ok)
}
