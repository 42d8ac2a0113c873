package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cortexai/text2sql/internal/models"
)

type slidingWindow struct {
	mu       sync.Mutex
	requests []time.Time
}

func (sw *slidingWindow) allow(now time.Time, limit int, window time.Duration) (remaining int, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-window)
	valid := sw.requests[:0]
	for _, t := range sw.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	sw.requests = valid

	if len(sw.requests) >= limit {
		return 0, false
	}
	sw.requests = append(sw.requests, now)
	return limit - len(sw.requests), true
}

func (sw *slidingWindow) idleSince(cutoff time.Time) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.requests) == 0 || sw.requests[len(sw.requests)-1].Before(cutoff)
}

// RateLimiter counts requests per client over a sliding one-minute window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	window  time.Duration
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*slidingWindow),
		limit:   limitPerMinute,
		window:  time.Minute,
	}
}

// RunCleanup drops idle clients every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-rl.window)
	for key, sw := range rl.windows {
		if sw.idleSince(cutoff) {
			delete(rl.windows, key)
		}
	}
}

func (rl *RateLimiter) get(key string) *slidingWindow {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	sw, ok := rl.windows[key]
	if !ok {
		sw = &slidingWindow{}
		rl.windows[key] = sw
	}
	return sw
}

// Middleware rejects clients over the limit with 429. Clients are keyed by
// API key when present, otherwise by remote IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(rl.limit)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, ok := rl.get(clientKey(r)).allow(time.Now(), rl.limit, rl.window)

		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", "60")
			models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit is NewRateLimiter(limitPerMinute).Middleware without background
// cleanup; use it for short-lived handlers and tests.
func RateLimit(limitPerMinute int) func(http.Handler) http.Handler {
	return NewRateLimiter(limitPerMinute).Middleware
}

func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
