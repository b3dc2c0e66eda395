package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation
	switch c.Provider {
	case "", ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		// Local provider, no key required
	default:
		return fmt.Errorf("%w: %q is not one of: gemini, ollama, openai", ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// 3. Embedding configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// pgvector supports up to 16000 dimensions per vector
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 16000 {
		return fmt.Errorf("%w: must be between 1 and 16000, got %d", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d", ErrInvalidBatchSize, c.EmbedBatchSize)
	}

	// 4. Chunking validation: overlap must leave forward progress
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.IngestConcurrency < 1 || c.IngestConcurrency > 64 {
		return fmt.Errorf("%w: must be between 1 and 64, got %d", ErrInvalidConcurrency, c.IngestConcurrency)
	}

	// 5. Retrieval validation
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidTopK, c.RetrievalTopK)
	}

	if c.RelevanceThreshold < 0.0 || c.RelevanceThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidThreshold, c.RelevanceThreshold)
	}

	// 6. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "lectern_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 7. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
