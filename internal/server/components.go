package server

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/config"
	"github.com/cortexai/text2sql/internal/database"
	"github.com/cortexai/text2sql/internal/llm"
	"github.com/cortexai/text2sql/internal/prompts"
	"github.com/cortexai/text2sql/internal/query"
	"github.com/cortexai/text2sql/internal/schemadoc"
	"github.com/cortexai/text2sql/internal/security"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

// OpenDatabase opens the Postgres handle shared by query execution, schema
// documents and pgvector content embeddings.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.Open(ctx, database.Config{
		DSN:             cfg.DSN(),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
	})
}

// NewEmbedder returns the embedding client. Embeddings always use the
// OpenAI-compatible endpoint regardless of the completion provider.
func NewEmbedder(cfg *config.Config) *llm.OpenAI {
	return llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
		MaxTokens:      cfg.LLMMaxTokens,
		Temperature:    cfg.LLMTemperature,
	})
}

// NewCompleter returns the completion client for the configured provider.
func NewCompleter(cfg *config.Config, openai *llm.OpenAI) llm.Completer {
	var c llm.Completer = openai
	if cfg.LLMProvider == config.ProviderAnthropic {
		c = llm.NewAnthropic(cfg.AnthropicAPIKey, cfg.LLMModel, cfg.AnthropicBaseURL, cfg.LLMMaxTokens, cfg.LLMTemperature)
	}
	return llm.WithTimeout(c, time.Duration(cfg.LLMTimeout)*time.Second)
}

// ContentStore is the write side and health probe of the content index.
type ContentStore struct {
	vectorsearch.Store
	Ping func(ctx context.Context) error
}

// NewContentStore picks the content embedding backend.
func NewContentStore(cfg *config.Config, db *sql.DB) (*ContentStore, error) {
	switch cfg.VectorBackend {
	case config.BackendElasticsearch:
		es, err := vectorsearch.NewESStore(vectorsearch.ESConfig{
			Addresses:   []string{cfg.ElasticsearchScheme + "://" + cfg.ElasticsearchHost + ":" + strconv.Itoa(cfg.ElasticsearchPort)},
			Username:    cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.ElasticsearchIndex,
			Dimensions:  cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, err
		}
		return &ContentStore{Store: es, Ping: es.Ping}, nil
	case config.BackendPGVector:
		return &ContentStore{
			Store: vectorsearch.NewPGStore(db, cfg.EmbeddingDimensions),
			Ping:  func(ctx context.Context) error { return database.Ping(ctx, db) },
		}, nil
	}
	return nil, fmt.Errorf("%w: vector_backend=%q", config.ErrUnknownBackend, cfg.VectorBackend)
}

// EmbeddingSources returns the built-in sources with config overrides applied.
func EmbeddingSources(cfg *config.Config) []vectorsearch.Source {
	overrides := make(map[string]string, len(cfg.EmbeddingSources))
	for name, sq := range cfg.EmbeddingSources {
		overrides[name] = sq.Query
	}
	return vectorsearch.WithQueries(vectorsearch.DefaultSources, overrides)
}

// backend is the query side: executor plus catalog access for one backend.
type backend struct {
	exec    query.Executor
	lister  query.TableLister
	columns query.ColumnDescriber
	ping    func(ctx context.Context) error
	close   func() error
}

func newBackend(ctx context.Context, cfg *config.Config, db *sql.DB) (*backend, error) {
	switch cfg.QueryBackend {
	case config.BackendBigQuery:
		var cost *security.CostTracker
		if cfg.EnableQueryCostTracking {
			cost = security.NewCostTracker(cfg.MaxQueryBytesProcessed)
		}
		bq, err := query.NewBigQueryExecutor(ctx, query.BigQueryConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Location:        cfg.BigQueryLocation,
			Dataset:         cfg.BigQueryDataset,
			MaxRows:         cfg.MaxResultRows,
			Timeout:         config.DefaultQueryTimeout,
		}, cost)
		if err != nil {
			return nil, err
		}
		return &backend{exec: bq, lister: bq, columns: bq, ping: bq.Ping, close: bq.Close}, nil
	case config.BackendPostgres:
		tables := query.NewPostgresTables(db, "table_docs", "unified_embeddings")
		return &backend{
			exec:    query.NewPostgresExecutor(db, cfg.MaxResultRows),
			lister:  tables,
			columns: tables,
			ping:    func(ctx context.Context) error { return database.Ping(ctx, db) },
		}, nil
	}
	return nil, fmt.Errorf("%w: query_backend=%q", config.ErrUnknownBackend, cfg.QueryBackend)
}

func newPromptCatalog(cfg *config.Config) (*prompts.Catalog, error) {
	extra := make(map[string]prompts.Definition, len(cfg.PromptTemplates))
	for locale, set := range cfg.PromptTemplates {
		extra[locale] = prompts.Definition{
			Intent:    set.Intent,
			SQLSystem: set.SQLSystem,
			SQLUser:   set.SQLUser,
			Answer:    set.Answer,
		}
	}
	return prompts.NewCatalog(cfg.DefaultLanguage, extra)
}

func schemaTables(cfg *config.Config) []schemadoc.Table {
	out := make([]schemadoc.Table, len(cfg.TableDescriptions))
	for i, t := range cfg.TableDescriptions {
		out[i] = schemadoc.Table{Name: t.Name, Description: t.Description}
	}
	return out
}

func logStartupSummary(cfg *config.Config) {
	log.Info().
		Str("query_backend", cfg.QueryBackend).
		Str("vector_backend", cfg.VectorBackend).
		Str("llm_provider", cfg.LLMProvider).
		Str("llm_model", cfg.LLMModel).
		Str("default_language", cfg.DefaultLanguage).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("sql_guard", cfg.EnableSQLGuard).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("auth enabled but no API keys configured - all API requests will be rejected")
	}
}
