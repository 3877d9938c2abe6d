package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when a caller gives up waiting for a token.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// KeyedLimiter is a token bucket per key. Acquire blocks until a token is
// available or the context ends.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	burst    int
	every    time.Duration
}

// NewKeyedLimiter allows burst calls at once and one more per interval.
func NewKeyedLimiter(burst int, every time.Duration) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		burst:    burst,
		every:    every,
	}
}

// Acquire waits for a token for key. The release func is a no-op because
// tokens refill with time, not on return.
func (l *KeyedLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	if err := l.limiter(key).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimitExceeded, err)
	}
	return func() {}, nil
}

func (l *KeyedLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		limit := rate.Inf
		if l.every > 0 {
			limit = rate.Every(l.every)
		}
		lim = rate.NewLimiter(limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Ensure KeyedLimiter implements the RateLimiter interface.
var _ ports.RateLimiter = (*KeyedLimiter)(nil)
