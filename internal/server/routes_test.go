package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cortexai/text2sql/internal/config"
	"github.com/cortexai/text2sql/internal/handler"
	"github.com/cortexai/text2sql/internal/middleware"
	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/pipeline"
	"github.com/cortexai/text2sql/internal/schemadoc"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

type stubRunner struct{}

func (stubRunner) Run(context.Context, pipeline.Request) (*models.QueryResponse, error) {
	return &models.QueryResponse{TableNames: []string{}, ChartType: models.ChartNone}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, vectorsearch.Query) ([]vectorsearch.Match, error) {
	return []vectorsearch.Match{}, nil
}

type stubInitializer struct{}

func (stubInitializer) Run(context.Context) (schemadoc.Report, error) {
	return schemadoc.Report{Skipped: true, Failed: []string{}}, nil
}

func testRouter(cfg *config.Config) http.Handler {
	return newRouter(cfg, handlers{
		query:   handler.NewQueryHandler(stubRunner{}, nil, nil),
		vector:  handler.NewVectorHandler(stubSearcher{}),
		admin:   handler.NewAdminHandler(stubInitializer{}),
		health:  handler.NewHealthHandler(map[string]handler.HealthChecker{}),
		limiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	})
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// ─── Routing ─────────────────────────────────────────────────

func TestRouter_Routes(t *testing.T) {
	h := testRouter(&config.Config{APIPrefix: "/api", RateLimitPerMinute: 100})

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/query", `{"question": "How many films?"}`, http.StatusOK},
		{http.MethodPost, "/api/hybrid-query", `{"question": "films about sharks"}`, http.StatusOK},
		{http.MethodPost, "/api/vector-search", `{"query": "sharks"}`, http.StatusOK},
		{http.MethodPost, "/api/vector-search/films", `{"query": "sharks"}`, http.StatusOK},
		{http.MethodPost, "/api/vector-search/payments", `{"query": "sharks"}`, http.StatusNotFound},
		{http.MethodPost, "/api/admin/init-table-docs", "", http.StatusOK},
		{http.MethodPost, "/query", `{"question": "How many films?"}`, http.StatusNotFound},
		{http.MethodGet, "/api/query", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rr := do(h, tt.method, tt.path, tt.body, nil)
		if rr.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rr.Code, tt.want)
		}
	}
}

func TestRouter_EmptyPrefix(t *testing.T) {
	h := testRouter(&config.Config{RateLimitPerMinute: 100})
	if rr := do(h, http.MethodPost, "/query", `{"question": "How many films?"}`, nil); rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

// ─── Auth / rate limiting ────────────────────────────────────

func TestRouter_AuthOnlyGuardsAPI(t *testing.T) {
	h := testRouter(&config.Config{
		EnableAuth:         true,
		APIKeys:            []string{"secret"},
		APIKeyHeader:       "X-API-Key",
		RateLimitPerMinute: 100,
	})

	if rr := do(h, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("health status = %d", rr.Code)
	}
	if rr := do(h, http.MethodPost, "/query", `{"question": "x"}`, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d", rr.Code)
	}
	if rr := do(h, http.MethodPost, "/query", `{"question": "x"}`, map[string]string{"X-API-Key": "wrong"}); rr.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d", rr.Code)
	}
	if rr := do(h, http.MethodPost, "/query", `{"question": "x"}`, map[string]string{"X-API-Key": "secret"}); rr.Code != http.StatusOK {
		t.Errorf("valid key status = %d", rr.Code)
	}
}

func TestRouter_RateLimitsAPI(t *testing.T) {
	h := testRouter(&config.Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(h, http.MethodPost, "/vector-search", `{"query": "x"}`, nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}
	if rr := do(h, http.MethodPost, "/vector-search", `{"query": "x"}`, nil); rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rr.Code)
	}
	for i := 0; i < 3; i++ {
		if rr := do(h, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
			t.Errorf("health should not be rate limited, status = %d", rr.Code)
		}
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	h := testRouter(&config.Config{RateLimitPerMinute: 100})
	rr := do(h, http.MethodGet, "/health", "", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}
