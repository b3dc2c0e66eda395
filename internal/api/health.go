package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is a liveness probe. Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can reach its database. When a pool
// is available the response includes its connection stats.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
			})
			return
		}

		stats := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":           "ready",
			"pool_total_conns": stats.TotalConns(),
			"pool_idle_conns":  stats.IdleConns(),
			"pool_max_conns":   stats.MaxConns(),
			"pool_acquired":    stats.AcquiredConns(),
		})
	})
}
