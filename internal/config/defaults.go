package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = ""
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultDBHost    = "localhost"
	DefaultDBPort    = 5432
	DefaultDBUser    = "postgres"
	DefaultDBName    = "dvdrental"
	DefaultDBSSLMode = "disable"

	BackendPostgres      = "postgres"
	BackendBigQuery      = "bigquery"
	BackendPGVector      = "pgvector"
	BackendElasticsearch = "elasticsearch"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultBigQueryLocation = "US"
	DefaultQueryTimeout     = 60 * time.Second

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchIndex      = "unified_embeddings"

	DefaultLLMModel            = "gpt-4o-mini"
	DefaultAnthropicModel      = "claude-sonnet-4-6"
	DefaultLLMTemperature      = 0.5
	DefaultLLMMaxTokens        = 1024
	DefaultLLMTimeout          = 120 // seconds
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536

	DefaultLanguage         = "en"
	DefaultSchemaTopK       = 3
	DefaultVectorTopK       = 5
	MaxVectorTopK           = 50
	DefaultMaxResultRows    = 1000
	DefaultPromptResultRows = 50

	DefaultEmbedBatchSize = 100
	DefaultEmbedDelayMS   = 100

	DefaultMaxPromptLength = 2000

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8501",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
}

// DefaultTableDescriptions describes the dvdrental sample database.
var DefaultTableDescriptions = []TableDescription{
	{Name: "actor", Description: "contains actors data including first name and last name."},
	{Name: "film", Description: "contains films data such as title, release year, length, rating, etc."},
	{Name: "film_actor", Description: "contains the relationships between films and actors."},
	{Name: "category", Description: "contains film’s categories data."},
	{Name: "film_category", Description: "containing the relationships between films and categories."},
	{Name: "store", Description: "contains the store data including manager staff and address."},
	{Name: "inventory", Description: "stores inventory data."},
	{Name: "rental", Description: "stores rental data."},
	{Name: "payment", Description: "stores customer’s payments."},
	{Name: "staff", Description: "stores staff data."},
	{Name: "customer", Description: "stores customer’s data."},
	{Name: "address", Description: "stores address data for staff and customers."},
	{Name: "city", Description: "stores the city names."},
	{Name: "country", Description: "stores the country names."},
}
