// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.lectern/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Provider, model, embedder selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingestion: Chunking and concurrency knobs
//   - Retrieval: Top-K and relevance threshold
//   - Server: Listen address, CORS, rate limiting
//
// Security: Sensitive data (passwords) are never logged.
// Validation: Range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates the chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the retrieval top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidThreshold indicates the relevance threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid relevance threshold")

	// ErrInvalidConcurrency indicates the ingest concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidBatchSize indicates the embed batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid embed batch size")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports output truncation via OutputDimensionality,
	// which we use to match the pgvector column width.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector column in db/migrations.
	DefaultEmbedderDimension = 768
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "gemini-2.5-flash", "llama3.3", "gpt-4o")

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	EmbedBatchSize    int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`

	// Ingestion configuration
	ChunkSize         int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	IngestConcurrency int `mapstructure:"ingest_concurrency" json:"ingest_concurrency"`

	// Retrieval configuration
	RetrievalTopK      int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold" json:"relevance_threshold"`

	// Server configuration
	ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	TraceEnabled bool   `mapstructure:"trace_enabled" json:"trace_enabled"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".lectern")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	viper.SetDefault("embed_batch_size", 96)

	// Ingestion defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 100)
	viper.SetDefault("ingest_concurrency", 4)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("relevance_threshold", 0.7)

	// Server defaults
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("rate_limit_rps", 10.0)
	viper.SetDefault("rate_limit_burst", 20)
	viper.SetDefault("trust_proxy", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "lectern")
	viper.SetDefault("postgres_password", "lectern_dev_password")
	viper.SetDefault("postgres_db_name", "lectern")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Observability defaults
	viper.SetDefault("otlp_endpoint", "localhost:4318")
	viper.SetDefault("trace_enabled", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by Genkit plugins,
// not via Viper. Validation checks their presence based on the selected provider.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "LECTERN_PROVIDER")
	mustBind("model_name", "LECTERN_MODEL_NAME")
	mustBind("ollama_host", "LECTERN_OLLAMA_HOST")
	mustBind("embedder_model", "LECTERN_EMBEDDER_MODEL")
	mustBind("listen_addr", "LECTERN_LISTEN_ADDR")
	mustBind("cors_origins", "LECTERN_CORS_ORIGINS")
	mustBind("trust_proxy", "LECTERN_TRUST_PROXY")
	mustBind("otlp_endpoint", "LECTERN_OTLP_ENDPOINT")
	mustBind("trace_enabled", "LECTERN_TRACE_ENABLED")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real password content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets show the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
