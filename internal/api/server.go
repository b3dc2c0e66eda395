// Package api is the JSON HTTP surface of the course backend: chat over
// retrieved course material, semantic search, the course catalog, progress
// tracking and translation.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	SessionStore SessionStore // Required
	Retriever    Retriever    // Required
	Composer     Composer     // Required
	CourseStore  CourseStore  // Optional: nil disables the catalog API
	Translator   Translator   // Optional: nil disables the translation API
	Pool         *pgxpool.Pool
	CORSOrigins  []string
	TrustProxy   bool
	RateRPS      float64 // Token refill per IP per second (0 = default 10)
	RateBurst    int     // Rate limiter burst size per IP (0 = default 20)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SessionStore == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Composer == nil {
		return nil, errors.New("composer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
	ch := &chatHandler{
		sessions:  cfg.SessionStore,
		retriever: cfg.Retriever,
		composer:  cfg.Composer,
		logger:    logger,
	}
	srch := &searchHandler{retriever: cfg.Retriever, logger: logger}

	mux := http.NewServeMux()

	// Session CRUD
	mux.HandleFunc("GET /api/v1/sessions", sh.listSessions)
	mux.HandleFunc("POST /api/v1/sessions", sh.createSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.getSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.getMessages)

	// Chat
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", ch.send)

	// Semantic search over course content
	mux.HandleFunc("GET /api/v1/search", srch.search)

	// Course catalog, exercises and progress
	if cfg.CourseStore != nil {
		crs := &courseHandler{store: cfg.CourseStore, logger: logger}
		mux.HandleFunc("GET /api/v1/modules", crs.listModules)
		mux.HandleFunc("GET /api/v1/modules/{slug}", crs.getModule)
		mux.HandleFunc("GET /api/v1/modules/{slug}/weeks", crs.listWeeks)
		mux.HandleFunc("GET /api/v1/modules/{slug}/progress", crs.getProgress)
		mux.HandleFunc("GET /api/v1/weeks", crs.listAllWeeks)
		mux.HandleFunc("GET /api/v1/weeks/{id}", crs.getWeek)
		mux.HandleFunc("GET /api/v1/weeks/{id}/exercises", crs.listExercises)
		mux.HandleFunc("PUT /api/v1/weeks/{id}/progress", crs.setProgress)
		mux.HandleFunc("GET /api/v1/exercises", crs.findExercises)
		mux.HandleFunc("GET /api/v1/exercises/{id}", crs.getExercise)
		mux.HandleFunc("POST /api/v1/exercises/{id}/submissions", crs.submitAnswer)
		mux.HandleFunc("GET /api/v1/exercises/{id}/submissions", crs.listSubmissions)
	}

	// Translation
	if cfg.Translator != nil {
		th := &translateHandler{translator: cfg.Translator, logger: logger}
		mux.HandleFunc("POST /api/v1/translate", th.translateText)
	}

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack so orchestrators are never
	// rate limited.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
