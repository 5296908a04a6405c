package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/flexprice/autobill/internal/config"
	"github.com/flexprice/autobill/internal/logger"
	"github.com/flexprice/autobill/internal/postgres"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print pending migration SQL without executing it")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall migration timeout")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *dryRun {
		pending, err := db.Pending(ctx)
		if err != nil {
			logger.Fatalw("Failed to list pending migrations", "error", err)
		}
		logger.Infow("Dry run mode - printing pending migrations", "count", len(pending))
		for _, m := range pending {
			fmt.Printf("-- %s\n%s\n", m.Version, m.SQL)
		}
		return
	}

	logger.Info("Running database migrations...")
	applied, err := db.Migrate(ctx)
	if err != nil {
		logger.Fatalw("Failed to apply migrations", "error", err)
	}
	for _, m := range applied {
		logger.Infow("Applied migration", "version", m.Version)
	}

	logger.Infow("Migration completed successfully", "applied", len(applied))
}
