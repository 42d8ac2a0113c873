package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrMissingAPIKey   = errors.New("missing llm api key")
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Database
	DatabaseURL string `json:"database_url"`
	DBHost      string `json:"db_host"`
	DBPort      int    `json:"db_port"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	DBName      string `json:"db_name"`
	DBSSLMode   string `json:"db_sslmode"`

	// Backends
	QueryBackend  string `json:"query_backend"`  // postgres | bigquery
	VectorBackend string `json:"vector_backend"` // pgvector | elasticsearch

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryDataset              string `json:"bigquery_dataset"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Security
	EnableSQLGuard          bool     `json:"enable_sql_guard"`
	MaxQueryBytesProcessed  int64    `json:"max_query_bytes_processed"`
	EnableQueryCostTracking bool     `json:"enable_query_cost_tracking"`
	EnableDataMasking       bool     `json:"enable_data_masking"`
	EnablePIIDetection      bool     `json:"enable_pii_detection"`
	SensitiveColumns        []string `json:"sensitive_columns"`
	PIIKeywords             []string `json:"pii_keywords"`
	EnableAuditLogging      bool     `json:"enable_audit_logging"`
	MaxPromptLength         int      `json:"max_prompt_length"`

	// Elasticsearch
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	ElasticsearchIndex       string `json:"elasticsearch_index"`

	// AI / LLM
	LLMProvider         string  `json:"llm_provider"` // openai | anthropic
	LLMModel            string  `json:"llm_model"`
	LLMTemperature      float64 `json:"llm_temperature"`
	LLMMaxTokens        int     `json:"llm_max_tokens"`
	LLMTimeout          int     `json:"llm_timeout"` // seconds
	OpenAIAPIKey        string  `json:"openai_api_key"`
	OpenAIBaseURL       string  `json:"openai_base_url"`
	AnthropicAPIKey     string  `json:"anthropic_api_key"`
	AnthropicBaseURL    string  `json:"anthropic_base_url"` // override for custom proxy
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimensions int     `json:"embedding_dimensions"`

	// Pipeline
	DefaultLanguage   string                 `json:"default_language"`
	InitTableDocs     bool                   `json:"init_table_docs"`
	SchemaTopK        int                    `json:"schema_top_k"`
	VectorTopK        int                    `json:"vector_top_k"`
	MaxResultRows     int                    `json:"max_result_rows"`
	PromptResultRows  int                    `json:"prompt_result_rows"`
	TableDescriptions []TableDescription     `json:"table_descriptions"`
	PromptTemplates   map[string]PromptSet   `json:"prompt_templates"`
	EmbeddingSources  map[string]SourceQuery `json:"embedding_sources"`

	// Ingestion
	EmbedBatchSize int `json:"embed_batch_size"`
	EmbedDelayMS   int `json:"embed_delay_ms"`
}

// TableDescription is one entry of the known-table catalogue. Order matters:
// schema documents are created in the listed order.
type TableDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PromptSet holds raw text/template sources for one locale.
type PromptSet struct {
	Intent    string `json:"intent"`
	SQLSystem string `json:"sql_system"`
	SQLUser   string `json:"sql_user"`
	Answer    string `json:"answer"`
}

// SourceQuery selects (id, content, metadata json) rows for content embedding.
type SourceQuery struct {
	Query string `json:"query"`
}

func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		DBHost:                   DefaultDBHost,
		DBPort:                   DefaultDBPort,
		DBUser:                   DefaultDBUser,
		DBName:                   DefaultDBName,
		DBSSLMode:                DefaultDBSSLMode,
		QueryBackend:             BackendPostgres,
		VectorBackend:            BackendPGVector,
		BigQueryLocation:         DefaultBigQueryLocation,
		EnableSQLGuard:           true,
		MaxQueryBytesProcessed:   DefaultMaxQueryBytesProcessed,
		EnableQueryCostTracking:  true,
		EnableDataMasking:        true,
		EnablePIIDetection:       true,
		SensitiveColumns:         DefaultSensitiveColumns,
		PIIKeywords:              DefaultPIIKeywords,
		EnableAuditLogging:       true,
		MaxPromptLength:          DefaultMaxPromptLength,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchIndex:       DefaultElasticsearchIndex,
		LLMProvider:              ProviderOpenAI,
		LLMTemperature:           DefaultLLMTemperature,
		LLMMaxTokens:             DefaultLLMMaxTokens,
		LLMTimeout:               DefaultLLMTimeout,
		EmbeddingModel:           DefaultEmbeddingModel,
		EmbeddingDimensions:      DefaultEmbeddingDimensions,
		DefaultLanguage:          DefaultLanguage,
		InitTableDocs:            true,
		SchemaTopK:               DefaultSchemaTopK,
		VectorTopK:               DefaultVectorTopK,
		MaxResultRows:            DefaultMaxResultRows,
		PromptResultRows:         DefaultPromptResultRows,
		TableDescriptions:        DefaultTableDescriptions,
		EmbedBatchSize:           DefaultEmbedBatchSize,
		EmbedDelayMS:             DefaultEmbedDelayMS,
	}

	// Load from JSON config file if specified
	if path := getEnv("TEXT2SQL_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyModelDefault(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyModelDefault picks the provider's default model when neither the file
// nor the environment named one.
func applyModelDefault(cfg *Config) {
	if cfg.LLMModel != "" {
		return
	}
	switch cfg.LLMProvider {
	case ProviderAnthropic:
		cfg.LLMModel = DefaultAnthropicModel
	default:
		cfg.LLMModel = DefaultLLMModel
	}
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.QueryBackend {
	case BackendPostgres:
	case BackendBigQuery:
		if c.GCPProjectID == "" {
			return fmt.Errorf("query backend %q requires gcp_project_id", c.QueryBackend)
		}
	default:
		return fmt.Errorf("%w: query_backend=%q", ErrUnknownBackend, c.QueryBackend)
	}
	switch c.VectorBackend {
	case BackendPGVector, BackendElasticsearch:
	default:
		return fmt.Errorf("%w: vector_backend=%q", ErrUnknownBackend, c.VectorBackend)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.LLMProvider)
	}
	if c.SchemaTopK <= 0 || c.VectorTopK <= 0 {
		return fmt.Errorf("schema_top_k and vector_top_k must be positive")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be positive")
	}
	return nil
}

// RequireLLMKey reports whether the credentials for the selected provider
// are present. Embeddings always go through OpenAI.
func (c *Config) RequireLLMKey() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if c.LLMProvider == ProviderAnthropic && c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// DSN returns the Postgres connection string, preferring DatabaseURL.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TEXT2SQL_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TEXT2SQL_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TEXT2SQL_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TEXT2SQL_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("TEXT2SQL_API_PREFIX"); ok {
		cfg.APIPrefix = v
	}
	if v := getEnv("TEXT2SQL_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}

	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		cfg.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.DBPort = p
		}
	}
	if v := getEnv("DB_USER", ""); v != "" {
		cfg.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", getEnv("DB_PASS", "")); v != "" {
		cfg.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		cfg.DBName = v
	}
	if v := getEnv("DB_SSLMODE", ""); v != "" {
		cfg.DBSSLMode = v
	}

	if v := getEnv("QUERY_BACKEND", ""); v != "" {
		cfg.QueryBackend = strings.ToLower(v)
	}
	if v := getEnv("VECTOR_BACKEND", ""); v != "" {
		cfg.VectorBackend = strings.ToLower(v)
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("BIGQUERY_DATASET", ""); v != "" {
		cfg.BigQueryDataset = v
	}
	if v := getEnv("BIGQUERY_LOCATION", ""); v != "" {
		cfg.BigQueryLocation = v
	}

	if v := getEnv("LLM_PROVIDER", ""); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := getEnv("LLM_MODEL", ""); v != "" {
		cfg.LLMModel = v
	}
	if v := getEnv("LLM_TEMPERATURE", ""); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLMTemperature = t
		}
	}
	if v := getEnv("LLM_MAX_TOKENS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLMMaxTokens = n
		}
	}
	if v := getEnv("OPENAI_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("OPENAI_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("EMBEDDING_MODEL", ""); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := getEnv("EMBEDDING_DIMENSIONS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDimensions = n
		}
	}

	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("ELASTICSEARCH_INDEX", ""); v != "" {
		cfg.ElasticsearchIndex = v
	}

	if v := getEnv("DEFAULT_LANGUAGE", ""); v != "" {
		cfg.DefaultLanguage = v
	}
	if v := getEnv("INIT_TABLE_DOCS", ""); v != "" {
		cfg.InitTableDocs = parseBool(v)
	}
	if v := getEnv("SCHEMA_TOP_K", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SchemaTopK = n
		}
	}
	if v := getEnv("VECTOR_TOP_K", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.VectorTopK = n
		}
	}
	if v := getEnv("MAX_RESULT_ROWS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxResultRows = n
		}
	}
	if v := getEnv("ENABLE_SQL_GUARD", ""); v != "" {
		cfg.EnableSQLGuard = parseBool(v)
	}
	if v := getEnv("ENABLE_DATA_MASKING", ""); v != "" {
		cfg.EnableDataMasking = parseBool(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = parseBool(v)
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
