package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cortexai/text2sql/internal/config"
	"github.com/cortexai/text2sql/internal/handler"
	"github.com/cortexai/text2sql/internal/middleware"
	"github.com/cortexai/text2sql/internal/observability"
)

// handlers groups everything the router mounts.
type handlers struct {
	query   *handler.QueryHandler
	vector  *handler.VectorHandler
	admin   *handler.AdminHandler
	health  *handler.HealthHandler
	limiter *middleware.RateLimiter
}

func newRouter(cfg *config.Config, h handlers) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins, config.DefaultCORSMaxAge)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/", handler.Root)
	r.Get("/health", h.health.Health)
	r.Handle("/metrics", observability.Handler())

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{h.limiter.Middleware}
	if cfg.EnableAuth {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		p := cfg.APIPrefix
		r.Post(p+"/query", h.query.Query)
		r.Post(p+"/hybrid-query", h.query.HybridQuery)

		r.Post(p+"/vector-search", h.vector.Search)
		r.Post(p+"/vector-search/{source}", h.vector.SearchSource)

		r.Post(p+"/admin/init-table-docs", h.admin.InitTableDocs)
	})

	return r
}
