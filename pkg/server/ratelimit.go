package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/polisai/polis-cipher/pkg/config"
	"github.com/polisai/polis-cipher/pkg/domain"
)

// rateLimiter keeps one token bucket per endpoint. Buckets survive
// reconfiguration so a reload does not hand out a fresh burst.
type rateLimiter struct {
	mu      sync.RWMutex
	rate    float64
	burst   float64
	buckets map[string]*tokenBucket
	now     func() time.Time
}

func newRateLimiter(now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{buckets: make(map[string]*tokenBucket), now: now}
}

// configure applies new limits to existing and future buckets.
func (rl *rateLimiter) configure(cfg config.RateLimitConfig) {
	rate := float64(cfg.RequestsPerSecond)
	burst := float64(cfg.Burst)
	if burst <= 0 {
		burst = rate
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rate = rate
	rl.burst = burst
	if rate <= 0 {
		rl.buckets = make(map[string]*tokenBucket)
		return
	}
	now := rl.now()
	for _, bucket := range rl.buckets {
		bucket.configure(rate, burst, now)
	}
}

// allow takes a token for endpoint. remaining is -1 when limiting is off.
func (rl *rateLimiter) allow(endpoint string) (ok bool, limit, remaining int) {
	now := rl.now()

	rl.mu.RLock()
	rate, burst := rl.rate, rl.burst
	bucket := rl.buckets[endpoint]
	rl.mu.RUnlock()

	if rate <= 0 {
		return true, 0, -1
	}

	if bucket == nil {
		rl.mu.Lock()
		bucket = rl.buckets[endpoint]
		if bucket == nil {
			bucket = newTokenBucket(rate, burst, now)
			rl.buckets[endpoint] = bucket
		}
		rl.mu.Unlock()
	}

	ok, tokens := bucket.take(now)
	return ok, int(rate), int(tokens)
}

// rateLimit rejects requests over the endpoint's budget with 429.
func (s *Server) rateLimit(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, limit, remaining := s.limiter.allow(endpoint)
		if remaining >= 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		if !ok {
			s.metrics.RecordRateLimited(endpoint)
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(rate, capacity float64, now time.Time) *tokenBucket {
	return &tokenBucket{rate: rate, capacity: capacity, tokens: capacity, lastRefill: now}
}

func (tb *tokenBucket) configure(rate, capacity float64, now time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if capacity > tb.capacity {
		tb.tokens += capacity - tb.capacity
	}
	tb.rate = rate
	tb.capacity = capacity
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

func (tb *tokenBucket) take(now time.Time) (bool, float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens < 1 {
		return false, tb.tokens
	}
	tb.tokens--
	return true, tb.tokens
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
