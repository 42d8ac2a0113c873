package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cortexai/text2sql/internal/models"
)

const version = "1.0.0"

// HealthChecker is implemented by dependencies that can report connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles GET /health, probing every registered dependency
// concurrently.
type HealthHandler struct {
	checks  map[string]HealthChecker
	timeout time.Duration
}

func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 5 * time.Second}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var mu sync.Mutex
	checks := map[string]string{"server": "ok"}
	degraded := false

	var g errgroup.Group
	for name, checker := range h.checks {
		g.Go(func() error {
			status := "ok"
			if err := checker.Ping(ctx); err != nil {
				status = "unavailable: " + err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			checks[name] = status
			if status != "ok" {
				degraded = true
			}
			return nil
		})
	}
	_ = g.Wait()

	overall, code := "healthy", http.StatusOK
	if degraded {
		overall, code = "degraded", http.StatusServiceUnavailable
	}
	models.WriteJSON(w, code, models.HealthResponse{
		Status:  overall,
		Version: version,
		Checks:  checks,
	})
}
