// Package app wires the application together: configuration, database,
// Genkit provider plugins, the retrieval pipeline and the HTTP server.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

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

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Splitter     *chunk.Splitter
	EmbedService *embed.Service
	VectorStore  *vector.Store
	Retriever    *retrieve.Retriever
	Composer     *answer.Composer
	SessionStore *session.Store
	CourseStore  *course.Store
	Translator   *translate.Translator

	dbCleanup   func()
	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	return nil
}

// VerifySchema checks that the database vector column matches the configured
// embedder dimension. Run after Setup, before serving or ingesting.
func (a *App) VerifySchema(ctx context.Context) error {
	return a.VectorStore.CheckDimension(ctx, a.Config.EmbedderDimension)
}
