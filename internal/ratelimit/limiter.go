// Package ratelimit counts requests per key in fixed windows.  The
// in-process MemoryLimiter suits a single instance; RedisLimiter shares
// counters across instances.  Both satisfy Limiter.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrRateLimited is returned by callers that turn a denied Result into an
// error.
var ErrRateLimited = errors.New("rate limited")

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether the request identified by key fits in its
// budget of limit requests per window.  The first request opens a window
// ending at now+window; once now passes ResetAt the window starts over.
// A denied request does not consume budget.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// New picks the backend named by backend.  "redis" needs a live client;
// with a nil client it degrades to the in-process limiter.
func New(backend, prefix string, rdb *redis.Client, log zerolog.Logger) Limiter {
	if backend == "redis" {
		if rdb != nil {
			return NewRedisLimiter(rdb, prefix)
		}
		log.Warn().Msg("ratelimit: redis unavailable, using in-memory limiter")
	}
	return NewMemoryLimiter()
}
