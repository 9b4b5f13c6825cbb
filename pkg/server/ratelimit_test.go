package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-cipher/pkg/config"
	"github.com/polisai/polis-cipher/pkg/domain"
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenBucket(t *testing.T) {
	start := time.Unix(1700000000, 0)
	bucket := newTokenBucket(2, 3, start)

	for i := 0; i < 3; i++ {
		ok, _ := bucket.take(start)
		require.True(t, ok, "take %d", i)
	}
	ok, _ := bucket.take(start)
	assert.False(t, ok)

	ok, remaining := bucket.take(start.Add(500 * time.Millisecond))
	assert.True(t, ok)
	assert.InDelta(t, 0, remaining, 1e-9)

	// refill never exceeds capacity
	ok, remaining = bucket.take(start.Add(time.Hour))
	assert.True(t, ok)
	assert.InDelta(t, 2, remaining, 1e-9)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(nil)
	rl.configure(config.RateLimitConfig{})

	for i := 0; i < 100; i++ {
		ok, _, remaining := rl.allow("encode")
		require.True(t, ok)
		require.Equal(t, -1, remaining)
	}
}

func TestRateLimiterReconfigureKeepsBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := newRateLimiter(clock.Now)
	rl.configure(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	ok, _, _ := rl.allow("encode")
	require.True(t, ok)
	ok, _, _ = rl.allow("encode")
	require.True(t, ok)
	ok, _, _ = rl.allow("encode")
	require.False(t, ok)

	// other endpoints have their own budget
	ok, _, _ = rl.allow("decode")
	assert.True(t, ok)

	rl.configure(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	ok, _, _ = rl.allow("encode")
	assert.False(t, ok, "reload must not refill an exhausted bucket")

	clock.Advance(time.Second)
	ok, limit, remaining := rl.allow("encode")
	assert.True(t, ok)
	assert.Equal(t, 1, limit)
	assert.Equal(t, 0, remaining)
}

func TestRateLimitedRequests(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := config.Default()
	cfg.Server.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}

	srv, err := New(context.Background(), Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    clock.Now,
	})
	require.NoError(t, err)

	body := domain.CodecRequest{Message: "hello", Key: "key"}

	rec := do(t, srv, http.MethodPost, "/v1/encode", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(t, srv, http.MethodPost, "/v1/encode", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, domain.CodeRateLimited, decodeError(t, rec).Code)
	assert.InDelta(t, 1, metricValue(t, srv.metrics, "cipher_rate_limited_total", "encode"), 0)

	// health checks are never limited
	for i := 0; i < 3; i++ {
		rec = do(t, srv, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	clock.Advance(time.Second)
	rec = do(t, srv, http.MethodPost, "/v1/encode", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}
