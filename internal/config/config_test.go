package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cortexai/text2sql/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEXT2SQL_CONFIG", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueryBackend != config.BackendPostgres {
		t.Errorf("QueryBackend = %q", cfg.QueryBackend)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q", cfg.DefaultLanguage)
	}
	if !cfg.InitTableDocs {
		t.Error("InitTableDocs should default to true")
	}
	if len(cfg.TableDescriptions) != 14 || cfg.TableDescriptions[0].Name != "actor" {
		t.Errorf("unexpected table descriptions: %+v", cfg.TableDescriptions)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEXT2SQL_CONFIG", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASS", "s3cret")
	t.Setenv("DEFAULT_LANGUAGE", "ko")
	t.Setenv("INIT_TABLE_DOCS", "false")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("SCHEMA_TOP_K", "7")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBHost != "db.internal" || cfg.DBPassword != "s3cret" {
		t.Errorf("db overrides not applied: %+v", cfg)
	}
	if cfg.DefaultLanguage != "ko" || cfg.InitTableDocs {
		t.Errorf("pipeline overrides not applied")
	}
	if cfg.LLMProvider != config.ProviderAnthropic {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.SchemaTopK != 7 {
		t.Errorf("SchemaTopK = %d", cfg.SchemaTopK)
	}
}

func TestLoad_ModelDefaultFollowsProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{"", "", config.DefaultLLMModel},
		{"openai", "", config.DefaultLLMModel},
		{"anthropic", "", config.DefaultAnthropicModel},
		{"anthropic", "claude-haiku-4-5", "claude-haiku-4-5"},
		{"openai", "gpt-4.1", "gpt-4.1"},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			t.Setenv("TEXT2SQL_CONFIG", "")
			t.Setenv("LLM_PROVIDER", tt.provider)
			t.Setenv("LLM_MODEL", tt.model)

			cfg, err := config.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.LLMModel != tt.want {
				t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, tt.want)
			}
		})
	}
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"port": 9000,
		"table_descriptions": [{"name": "orders", "description": "customer orders"}],
		"prompt_templates": {"fr": {"intent": "i", "sql_system": "s", "sql_user": "u", "answer": "a"}}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEXT2SQL_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if len(cfg.TableDescriptions) != 1 || cfg.TableDescriptions[0].Name != "orders" {
		t.Errorf("TableDescriptions = %+v", cfg.TableDescriptions)
	}
	if _, ok := cfg.PromptTemplates["fr"]; !ok {
		t.Error("expected fr prompt templates")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{"unknown query backend", func(c *config.Config) { c.QueryBackend = "mysql" }, config.ErrUnknownBackend},
		{"unknown vector backend", func(c *config.Config) { c.VectorBackend = "faiss" }, config.ErrUnknownBackend},
		{"unknown provider", func(c *config.Config) { c.LLMProvider = "cohere" }, config.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEXT2SQL_CONFIG", "")
			cfg, err := config.Load()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "h", DBPort: 5433, DBUser: "u", DBPassword: "p@ss", DBName: "dvdrental", DBSSLMode: "disable"}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://u:p%40ss@h:5433/dvdrental") || !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("DSN = %q", dsn)
	}

	cfg.DatabaseURL = "postgres://override"
	if cfg.DSN() != "postgres://override" {
		t.Errorf("DatabaseURL should win")
	}
}
