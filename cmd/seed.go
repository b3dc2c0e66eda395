package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lecternhq/lectern/db"
	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/course"
)

// seedFile is the JSON layout accepted by `lectern seed -file`.
type seedFile struct {
	Modules []seedModule `json:"modules"`
}

type seedModule struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	Weeks       []seedWeek `json:"weeks"`
}

type seedWeek struct {
	Week      int            `json:"week"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	SourceURL string         `json:"source_url"`
	Exercises []seedExercise `json:"exercises"`
}

type seedExercise struct {
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
	Position int    `json:"position"`
}

// runSeed loads the course catalog from a JSON file. Every write is an
// upsert, so re-running with an updated file refreshes existing rows.
func runSeed(logger *slog.Logger) error {
	flags := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := flags.String("file", "", "course catalog JSON file")
	if err := flags.Parse(os.Args[2:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}
	if len(seed.Modules) == 0 {
		return errors.New("seed file contains no modules")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	store, err := course.NewStore(pool)
	if err != nil {
		return fmt.Errorf("creating course store: %w", err)
	}

	var modules, weeks, exercises int
	for _, sm := range seed.Modules {
		mod, err := store.UpsertModule(ctx, sm.Slug, sm.Title, sm.Description, sm.Position)
		if err != nil {
			return fmt.Errorf("seeding module %q: %w", sm.Slug, err)
		}
		modules++

		for _, sw := range sm.Weeks {
			week, err := store.UpsertWeek(ctx, mod.ID.String(), sw.Week, sw.Title, sw.Body, sw.SourceURL)
			if err != nil {
				return fmt.Errorf("seeding module %q week %d: %w", sm.Slug, sw.Week, err)
			}
			weeks++

			for _, se := range sw.Exercises {
				if _, err := store.UpsertExercise(ctx, week.ID.String(), se.Title, se.Prompt, se.Position); err != nil {
					return fmt.Errorf("seeding module %q week %d exercise %q: %w", sm.Slug, sw.Week, se.Title, err)
				}
				exercises++
			}
		}
	}

	logger.Info("seed complete",
		"file", *file,
		"modules", modules,
		"weeks", weeks,
		"exercises", exercises,
	)
	return nil
}
