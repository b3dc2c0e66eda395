package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lecternhq/lectern/db"
	"github.com/lecternhq/lectern/internal/config"
)

// runMigrate applies pending database migrations and exits.
func runMigrate(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("running migrations", "host", cfg.PostgresHost, "database", cfg.PostgresDBName)
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations complete")
	return nil
}
