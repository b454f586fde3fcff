// Package middleware holds the Gin middleware shared by every route of the
// task API.
//
// This file implements the per-client rate limit for the task API: an
// in-memory token bucket per caller identity, with idle buckets swept out
// during lookups so the map stays bounded. Process-local on purpose; a
// single-process SQLite-backed service has no second instance to coordinate
// with. This is abuse control, not authorization.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity string owning its token bucket.
// The value must be stable for the duration of the request.
type keyFunc func(*gin.Context) string

// KeyByClientIP keys buckets by the client IP Gin resolved (trusted proxy
// settings apply). The "ip:" prefix leaves namespace room for other identity
// schemes.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// bucket pairs a token bucket with its last activity, which drives eviction.
type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// sweepEvery is the number of lookups between idle-bucket sweeps.
const sweepEvery = 5000

// RateLimiter hands out and enforces per-key token buckets. Buckets are
// created on first sight and evicted after idleTTL of inactivity; the sweep
// piggybacks on lookups rather than running a background goroutine. Safe for
// concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64

	idleTTL time.Duration
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with the
// given burst capacity (values <= 0 are coerced to 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
	}
}

// take returns the bucket for key, creating it if needed. Every sweepEvery
// lookups the idle entries are evicted first, before key's own timestamp is
// refreshed, so a stale bucket is collectable even when it is the one being
// fetched.
func (rl *RateLimiter) take(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		rl.sweepLocked(now)
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.seen = now
		return b.lim
	}

	b := &bucket{lim: rate.NewLimiter(rl.rps, rl.burst), seen: now}
	rl.buckets[key] = b
	return b.lim
}

// sweepLocked drops every bucket idle for idleTTL or longer. Callers hold mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.seen) >= rl.idleTTL {
			delete(rl.buckets, k)
		}
	}
}

// Handler returns the enforcement middleware. A request that finds its bucket
// empty is answered immediately with Retry-After: 1 and the standard error
// envelope:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "<uuid>",
//	  "code":       "too_many_requests",
//	  "message":    "rate limit exceeded"
//	}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.take(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
