package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lecternhq/lectern/internal/app"
	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/ingest"
)

// runIngest indexes course content from a sitemap or a markdown directory.
func runIngest(logger *slog.Logger) error {
	flags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	sitemapURL := flags.String("sitemap", "", "sitemap.xml URL to crawl")
	dir := flags.String("dir", "", "directory of markdown files to index")
	checkpointPath := flags.String("checkpoint", "", "resume file for interrupted runs")
	concurrency := flags.Int("concurrency", 0, "parallel document workers (0 = config default)")
	if err := flags.Parse(os.Args[2:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if (*sitemapURL == "") == (*dir == "") {
		return errors.New("exactly one of -sitemap or -dir is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.VerifySchema(ctx); err != nil {
		return fmt.Errorf("verifying schema: %w", err)
	}

	var src ingest.Source
	if *sitemapURL != "" {
		src = ingest.NewSitemapSource(*sitemapURL, nil)
	} else {
		src, err = ingest.NewDirSource(*dir)
		if err != nil {
			return fmt.Errorf("opening source directory: %w", err)
		}
	}

	workers := *concurrency
	if workers <= 0 {
		workers = cfg.IngestConcurrency
	}

	opts := []ingest.Option{
		ingest.WithConcurrency(workers),
		ingest.WithLogger(logger),
	}
	if *checkpointPath != "" {
		cp, err := ingest.OpenCheckpoint(*checkpointPath)
		if err != nil {
			return fmt.Errorf("opening checkpoint: %w", err)
		}
		defer func() {
			if closeErr := cp.Close(); closeErr != nil {
				logger.Warn("closing checkpoint", "error", closeErr)
			}
		}()
		opts = append(opts, ingest.WithCheckpoint(cp))
	}

	ingestor := ingest.New(a.Splitter, a.EmbedService, a.VectorStore, opts...)

	report, err := ingestor.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("ingesting from %s: %w", src.Name(), err)
	}

	logger.Info("ingestion complete",
		"source", report.Source,
		"added", report.DocsAdded,
		"skipped", report.DocsSkipped,
		"failed", report.DocsFailed,
		"chunks", report.ChunksWritten,
		"duration", report.Duration,
	)
	for _, f := range report.Failures {
		logger.Warn("document failed", "ref", f.Ref, "error", f.Err)
	}
	if report.DocsFailed > 0 {
		return fmt.Errorf("%d documents failed", report.DocsFailed)
	}
	return nil
}
