// Package translate renders course text into another language, caching
// completed translations in PostgreSQL so repeated requests skip the LLM.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrProvider indicates the translation model call failed.
	ErrProvider = errors.New("translation provider error")
	// ErrEmptyInput indicates there was nothing to translate.
	ErrEmptyInput = errors.New("empty input")
)

const systemPrompt = `You are a precise technical translator for a robotics
course. Translate the user's text into the requested language. Preserve
technical terms, equations, code and proper nouns. Return only the
translation with no commentary.`

// Querier is the subset of pgx operations the cache needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Translator translates text through a Genkit model with a database cache.
type Translator struct {
	g         *genkit.Genkit
	db        Querier
	modelName string
	logger    *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Translator.
func New(g *genkit.Genkit, db Querier, modelName string, opts ...Option) (*Translator, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	t := &Translator{
		g:         g,
		db:        db,
		modelName: modelName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// CacheKey derives the cache key for a source text and target language.
func CacheKey(text, targetLang string) string {
	sum := sha256.Sum256([]byte(text + targetLang))
	return hex.EncodeToString(sum[:])
}

const lookupSQL = `
	SELECT translated FROM translation_cache WHERE cache_key = $1`

const storeSQL = `
	INSERT INTO translation_cache (cache_key, target_lang, source_text, translated)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cache_key) DO NOTHING`

// Translate returns text in targetLang, serving from cache when possible.
// The second return value reports whether the result came from the cache.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, bool, error) {
	if text == "" || targetLang == "" {
		return "", false, ErrEmptyInput
	}

	key := CacheKey(text, targetLang)

	var cached string
	err := t.db.QueryRow(ctx, lookupSQL, key).Scan(&cached)
	if err == nil {
		t.logger.Debug("translation cache hit", "lang", targetLang)
		return cached, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("translation cache lookup: %w", err)
	}

	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(
			fmt.Sprintf("Target language: %s\n\n%s", targetLang, text)))),
	)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	translated := resp.Text()

	// A failed cache write must not fail the request.
	if _, err := t.db.Exec(ctx, storeSQL, key, targetLang, text, translated); err != nil {
		t.logger.Warn("translation cache write failed", "error", err)
	}

	return translated, false, nil
}
