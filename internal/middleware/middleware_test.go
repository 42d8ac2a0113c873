package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cortexai/text2sql/internal/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
})

// ─── Security Headers ─────────────────────────────────────────────────────────

func TestSecurityHeaders(t *testing.T) {
	handler := middleware.SecurityHeaders(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}
	for h, want := range headers {
		if got := rr.Header().Get(h); got != want {
			t.Errorf("header %s = %q, want %q", h, got, want)
		}
	}
	// CSP and HSTS should be non-empty
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy header missing")
	}
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Strict-Transport-Security header missing")
	}
}

// ─── Request ID ───────────────────────────────────────────────────────────────

func TestRequestIDGenerated(t *testing.T) {
	handler := middleware.RequestID(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	id := rr.Header().Get("X-Request-ID")
	if id == "" {
		t.Error("X-Request-ID should be generated if not present")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	handler := middleware.RequestID(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "my-trace-id-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "my-trace-id-123" {
		t.Errorf("X-Request-ID should propagate existing ID, got %q", got)
	}
}

func TestRequestIDInContext(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen == "" || seen != rr.Header().Get("X-Request-ID") {
		t.Errorf("context id %q, header id %q", seen, rr.Header().Get("X-Request-ID"))
	}
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	h := middleware.Auth([]string{"secret", ""}, "X-API-Key", "/health", "/metrics")(okHandler)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		cookie string
		want   int
	}{
		{"missing key", http.MethodPost, "/query", "", "", http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/query", "wrong-key", "", http.StatusForbidden},
		{"empty configured key never matches", http.MethodPost, "/query", " ", "", http.StatusForbidden},
		{"header key", http.MethodPost, "/hybrid-query", "secret", "", http.StatusOK},
		{"cookie key", http.MethodPost, "/vector-search", "", "secret", http.StatusOK},
		{"public health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"public metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"preflight", http.MethodOptions, "/query", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "api_key", Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

// ─── Rate Limiter ─────────────────────────────────────────────────────────────

func TestRateLimiter(t *testing.T) {
	type hit struct {
		addr, key string
		want      int
	}
	tests := []struct {
		name  string
		limit int
		hits  []hit
	}{
		{
			name:  "blocks after limit",
			limit: 2,
			hits: []hit{
				{"192.168.1.1:1234", "", http.StatusOK},
				{"192.168.1.1:1234", "", http.StatusOK},
				{"192.168.1.1:1234", "", http.StatusTooManyRequests},
			},
		},
		{
			name:  "clients counted separately",
			limit: 1,
			hits: []hit{
				{"10.0.0.1:1", "", http.StatusOK},
				{"10.0.0.2:1", "", http.StatusOK},
				{"10.0.0.1:1", "", http.StatusTooManyRequests},
			},
		},
		{
			name:  "same ip different ports share a window",
			limit: 1,
			hits: []hit{
				{"10.0.0.9:1000", "", http.StatusOK},
				{"10.0.0.9:2000", "", http.StatusTooManyRequests},
			},
		},
		{
			name:  "api key takes precedence over ip",
			limit: 1,
			hits: []hit{
				{"10.0.0.5:1", "team-a", http.StatusOK},
				{"10.0.0.5:1", "team-b", http.StatusOK},
				{"10.0.0.6:1", "team-a", http.StatusTooManyRequests},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.NewRateLimiter(tt.limit).Middleware(okHandler)
			for i, hit := range tt.hits {
				req := httptest.NewRequest(http.MethodPost, "/query", nil)
				req.RemoteAddr = hit.addr
				if hit.key != "" {
					req.Header.Set("X-API-Key", hit.key)
				}
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, req)
				if rr.Code != hit.want {
					t.Errorf("hit %d (%s): status = %d, want %d", i, hit.addr, rr.Code, hit.want)
				}
				if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") == "" {
					t.Error("Retry-After header missing on rate limit response")
				}
			}
		})
	}
}

func TestRateLimiterCleanupStopsWithContext(t *testing.T) {
	rl := middleware.NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

// ─── Recovery ─────────────────────────────────────────────────────────────────

func TestRecovery(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map in pipeline state")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORSPreflight(t *testing.T) {
	cfg := middleware.DefaultCORSConfig([]string{"http://localhost:3000"}, 300)
	h := middleware.CORS(cfg)(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight should return 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin header missing")
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	cfg := middleware.DefaultCORSConfig([]string{"http://localhost:3000"}, 300)
	h := middleware.CORS(cfg)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin should not get CORS header")
	}
}

func TestCORSWildcard(t *testing.T) {
	h := middleware.CORS(middleware.DefaultCORSConfig([]string{"*"}, 600))(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Access-Control-Max-Age = %q", got)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("non-preflight request should reach the handler, got %d", rr.Code)
	}
}

// ─── Metrics ──────────────────────────────────────────────────────────────────

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	var pattern string
	r.Post("/vector-search/{source}", func(w http.ResponseWriter, r *http.Request) {
		pattern = chi.RouteContext(r.Context()).RoutePattern()
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodPost, "/vector-search/films", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
	if pattern != "/vector-search/{source}" {
		t.Errorf("pattern = %q", pattern)
	}
}

// ─── Logging ──────────────────────────────────────────────────────────────────

func TestLoggingKeepsFirstStatus(t *testing.T) {
	h := middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", nil))
	if rr.Code != http.StatusBadRequest || rr.Body.String() != "bad" {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}
