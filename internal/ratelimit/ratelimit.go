package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides if a request from key should be allowed.
// Allow returns (allowed, retryAfterSeconds). When allowed is false, retryAfterSeconds
// may be set for the Retry-After response header (0 = omit).
type Limiter interface {
	Allow(key string) (allowed bool, retryAfterSec int)
}

// Noop allows all requests.
type Noop struct{}

func (Noop) Allow(key string) (bool, int) { return true, 0 }

// maxIdleKeys bounds the key map; full buckets are dropped past it.
const maxIdleKeys = 10000

// InMemory is a token-bucket rate limiter per key (single-instance only).
type InMemory struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
	nowFunc  func() time.Time
}

// NewInMemory allows bursts of up to limit requests per key, refilled
// evenly over window.
func NewInMemory(limit int, window time.Duration) *InMemory {
	if limit < 1 {
		limit = 1
	}
	return &InMemory{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		nowFunc:  time.Now,
	}
}

func (r *InMemory) Allow(key string) (allowed bool, retryAfterSec int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	l, ok := r.limiters[key]
	if !ok {
		if len(r.limiters) >= maxIdleKeys {
			r.prune(now)
		}
		l = rate.NewLimiter(r.every, r.burst)
		r.limiters[key] = l
	}
	res := l.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	retryAfterSec = int(math.Ceil(delay.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	return false, retryAfterSec
}

func (r *InMemory) prune(now time.Time) {
	for k, l := range r.limiters {
		if l.TokensAt(now) >= float64(r.burst) {
			delete(r.limiters, k)
		}
	}
}
