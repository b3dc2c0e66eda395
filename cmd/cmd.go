// Package cmd provides the lectern CLI commands.
//
// Commands:
//   - serve: HTTP API server for the course backend
//   - ingest: index course content from a sitemap or a markdown directory
//   - migrate: run database migrations and exit
//   - seed: load the course catalog from a JSON file
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lecternhq/lectern/internal/log"
)

// Execute is the main entry point for the lectern CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("LECTERN_LOG_JSON") != "",
	})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ingest":
		return runIngest(logger)
	case "migrate":
		return runMigrate(logger)
	case "seed":
		return runSeed(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Lectern - course content backend with retrieval-augmented chat")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lectern serve                    Start the HTTP API server")
	fmt.Println("  lectern ingest -sitemap URL      Index pages listed in a sitemap")
	fmt.Println("  lectern ingest -dir PATH         Index markdown files in a directory")
	fmt.Println("  lectern migrate                  Run database migrations and exit")
	fmt.Println("  lectern seed -file FILE          Load the course catalog from a JSON file")
	fmt.Println("  lectern --version                Show version information")
	fmt.Println("  lectern --help                   Show this help")
	fmt.Println()
	fmt.Println("Ingest flags:")
	fmt.Println("  -checkpoint PATH   Resume file for interrupted runs")
	fmt.Println("  -concurrency N     Parallel document workers (default from config)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (default provider)")
	fmt.Println("  DATABASE_URL       Overrides the configured PostgreSQL connection")
	fmt.Println("  DEBUG              Enable debug logging")
	fmt.Println("  LECTERN_LOG_JSON   Log in JSON format")
	fmt.Println()
	fmt.Println("Configuration is read from ~/.lectern/config.yaml and LECTERN_* variables.")
}
