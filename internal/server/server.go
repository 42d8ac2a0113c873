package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/config"
	"github.com/cortexai/text2sql/internal/database"
	"github.com/cortexai/text2sql/internal/handler"
	"github.com/cortexai/text2sql/internal/middleware"
	"github.com/cortexai/text2sql/internal/pipeline"
	"github.com/cortexai/text2sql/internal/query"
	"github.com/cortexai/text2sql/internal/schemadoc"
	"github.com/cortexai/text2sql/internal/security"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

type Server struct {
	cfg         *config.Config
	http        *http.Server
	db          *sql.DB
	backend     *backend
	limiter     *middleware.RateLimiter
	initializer *schemadoc.Initializer
}

// New wires every component from cfg. The database must be reachable; other
// backends are only probed by /health.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	logStartupSummary(cfg)

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, db: db}

	router, err := s.setup(ctx)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("setup routes: %w", err)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*time.Duration(cfg.LLMTimeout)*time.Second + config.DefaultQueryTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context) (http.Handler, error) {
	cfg := s.cfg

	// ─── Backends ───────────────────────────────────────────────────────────────
	be, err := newBackend(ctx, cfg, s.db)
	if err != nil {
		return nil, err
	}
	s.backend = be

	content, err := NewContentStore(cfg, s.db)
	if err != nil {
		return nil, err
	}
	if err := content.EnsureSchema(ctx); err != nil {
		log.Warn().Err(err).Str("backend", content.Backend()).Msg("content index not ready, vector search will fail until it is")
	}

	embedder := NewEmbedder(cfg)
	completer := NewCompleter(cfg, embedder)

	catalog, err := newPromptCatalog(cfg)
	if err != nil {
		return nil, err
	}

	// ─── Security ───────────────────────────────────────────────────────────────
	var validator *security.SQLValidator
	if cfg.EnableSQLGuard {
		validator = security.NewSQLValidator()
	}
	var masker *security.DataMasker
	if cfg.EnableDataMasking {
		masker = security.NewDataMasker(cfg.SensitiveColumns)
	}
	piiKeywords := cfg.PIIKeywords
	if !cfg.EnablePIIDetection {
		piiKeywords = nil
	}
	promptVal := security.NewPromptValidator(cfg.MaxPromptLength, piiKeywords)
	audit := security.NewAuditLogger(cfg.EnableAuditLogging)

	// ─── Retrieval ──────────────────────────────────────────────────────────────
	docs := schemadoc.NewStore(s.db, cfg.EmbeddingDimensions)
	s.initializer = schemadoc.NewInitializer(docs, be.columns, embedder, schemaTables(cfg))
	schemaSearch := vectorsearch.NewService(embedder, docs, cfg.SchemaTopK, config.MaxVectorTopK)
	contentSearch := vectorsearch.NewService(embedder, content, cfg.VectorTopK, config.MaxVectorTopK)

	p := pipeline.New(pipeline.Deps{
		LLM:              completer,
		Prompts:          catalog,
		Schema:           schemaSearch,
		Content:          contentSearch,
		Executor:         query.NewGuarded(be.exec, validator, masker),
		Tables:           query.NewTableCatalog(be.lister),
		Audit:            audit,
		SchemaTopK:       cfg.SchemaTopK,
		PromptResultRows: cfg.PromptResultRows,
	})

	// ─── Handlers ───────────────────────────────────────────────────────────────
	checks := map[string]handler.HealthChecker{
		"postgres": handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, s.db) }),
	}
	if cfg.VectorBackend == config.BackendElasticsearch {
		checks["elasticsearch"] = handler.PingFunc(content.Ping)
	}
	if cfg.QueryBackend == config.BackendBigQuery {
		checks["bigquery"] = handler.PingFunc(be.ping)
	}

	s.limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	return newRouter(cfg, handlers{
		query:   handler.NewQueryHandler(p, promptVal, audit),
		vector:  handler.NewVectorHandler(contentSearch),
		admin:   handler.NewAdminHandler(s.initializer),
		health:  handler.NewHealthHandler(checks),
		limiter: s.limiter,
	}), nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	go s.limiter.RunCleanup(ctx, time.Minute)

	if s.cfg.InitTableDocs {
		go s.initTableDocs(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) initTableDocs(ctx context.Context) {
	rep, err := s.initializer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("table_docs initialization failed")
		return
	}
	log.Info().
		Bool("skipped", rep.Skipped).
		Int("inserted", rep.Inserted).
		Int("failed", len(rep.Failed)).
		Str("elapsed", rep.Elapsed).
		Msg("table_docs initialization finished")
}

func (s *Server) close() {
	if s.backend != nil && s.backend.close != nil {
		if err := s.backend.close(); err != nil {
			log.Warn().Err(err).Msg("error closing BigQuery client")
		} else {
			log.Info().Msg("BigQuery client closed")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing database")
		}
	}
}
