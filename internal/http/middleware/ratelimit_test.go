package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "4711")

	if got := KeyByClientIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("key = %q, want %q", got, "ip:203.0.113.9")
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(5, 0, KeyByClientIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1 (coerced)", rl.burst)
	}
	if rl.idleTTL != 10*time.Minute {
		t.Fatalf("idleTTL = %v, want 10m", rl.idleTTL)
	}
}

func TestRateLimiter_TakeReusesBucket(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByClientIP())

	first := rl.take("ip:10.0.0.1")
	if first == nil {
		t.Fatal("take returned nil limiter")
	}
	if second := rl.take("ip:10.0.0.1"); second != first {
		t.Fatal("same key returned a different limiter instance")
	}
}

func TestRateLimiter_SweepEvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByClientIP())

	rl.mu.Lock()
	rl.idleTTL = time.Nanosecond
	rl.buckets["ip:old"] = &bucket{
		lim:  rate.NewLimiter(1, 1),
		seen: time.Now().Add(-time.Hour),
	}
	// One more lookup crosses the sweep threshold.
	rl.lookups = sweepEvery - 1
	rl.mu.Unlock()

	rl.take("ip:new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["ip:old"]; ok {
		t.Fatal("idle bucket survived the sweep")
	}
	if _, ok := rl.buckets["ip:new"]; !ok {
		t.Fatal("bucket for the new key was not created")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookups = %d, want 0 after sweep", rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// rps=1 burst=1: the first immediate request drains the bucket.
	rl := NewRateLimiter(1, 1, KeyByClientIP())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/tasks", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.RemoteAddr = net.JoinHostPort("203.0.113.9", "4711")
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want %q", got, "1")
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal 429 body: %v", err)
	}
	if body["code"] != "too_many_requests" {
		t.Fatalf("code = %q, want %q", body["code"], "too_many_requests")
	}
	if body["message"] != "rate limit exceeded" {
		t.Fatalf("message = %q, want %q", body["message"], "rate limit exceeded")
	}
	if body["request_id"] != "rid-1" {
		t.Fatalf("request_id = %q, want %q", body["request_id"], "rid-1")
	}
}
