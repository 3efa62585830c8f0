package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter implements per-client token bucket rate limiting.
// A bucket holds max tokens and refills max tokens per window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	max     float64
	window  time.Duration
	now     func() time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		max:     float64(max),
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether a request from client may proceed
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket := rl.refill(client)
	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// RetryAfter returns the number of seconds until the next token is available
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[client]
	if !ok || bucket.tokens >= 1 {
		return 0
	}
	seconds := (1.0 - bucket.tokens) * rl.window.Seconds() / rl.max
	return int(math.Ceil(seconds))
}

// Cleanup removes buckets for clients that haven't been seen recently
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxAge)
	for client, bucket := range rl.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

// refill must be called with mu held
func (rl *RateLimiter) refill(client string) *tokenBucket {
	now := rl.now()
	bucket, ok := rl.buckets[client]
	if !ok {
		bucket = &tokenBucket{tokens: rl.max, lastRefill: now}
		rl.buckets[client] = bucket
		return bucket
	}

	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * rl.max / rl.window.Seconds()
	if bucket.tokens > rl.max {
		bucket.tokens = rl.max
	}
	bucket.lastRefill = now
	return bucket
}

// rateLimit rejects requests over the per-client budget with 429
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if !s.limiter.Allow(client) {
			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.RetryAfter(client)))
			sendError(w, http.StatusTooManyRequests, "Too many requests", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
