package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lecternhq/lectern/db"
	"github.com/lecternhq/lectern/internal/answer"
	"github.com/lecternhq/lectern/internal/chunk"
	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/course"
	"github.com/lecternhq/lectern/internal/embed"
	"github.com/lecternhq/lectern/internal/retrieve"
	"github.com/lecternhq/lectern/internal/session"
	"github.com/lecternhq/lectern/internal/translate"
	"github.com/lecternhq/lectern/internal/vector"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Splitter = chunk.New(
		chunk.WithSize(cfg.ChunkSize),
		chunk.WithOverlap(cfg.ChunkOverlap),
	)

	a.EmbedService = embed.New(embedder,
		embed.WithBatchSize(cfg.EmbedBatchSize),
		embed.WithDimension(cfg.EmbedderDimension),
		embed.WithLogger(logger),
	)

	a.VectorStore, err = vector.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	a.Retriever = retrieve.New(a.EmbedService, a.VectorStore, float32(cfg.RelevanceThreshold), logger)

	a.Composer = answer.New(g, cfg.FullModelName(), answer.WithLogger(logger))

	a.SessionStore, err = session.NewStore(pool)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	a.CourseStore, err = course.NewStore(pool)
	if err != nil {
		return nil, fmt.Errorf("creating course store: %w", err)
	}

	a.Translator, err = translate.New(g, pool, cfg.FullModelName(), translate.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating translator: %w", err)
	}

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization
// so the span processor is registered on Genkit's TracerProvider.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.TraceEnabled {
		return func() {}
	}

	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled", "endpoint", endpoint)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	switch provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
