// Command drive-purge runs a single purge pass and exits. It finishes
// deletes whose blob removal failed and removes uploads that never
// committed, for use from cron when the server is not running.
package main

import (
	"context"
	"log"

	"drive-service/internal/app"
	"drive-service/internal/config"
	"drive-service/internal/repository/postgres"
	"drive-service/internal/storage"
	"drive-service/pkg/logger"
	"drive-service/pkg/metrics"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	m := metrics.New()

	db, err := postgres.New(ctx, &cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", logger.Err(err))
	}
	defer db.Close()

	blobs, err := storage.Open(ctx, &cfg.Blob, m)
	if err != nil {
		zlog.Fatal("failed to open blob store", logger.Err(err))
	}

	purger := app.NewPurger(postgres.NewBlockRepository(db), blobs, nil, m, zlog, app.PurgerConfig{
		Interval:    cfg.Purge.Interval,
		Grace:       cfg.Purge.Grace,
		BatchSize:   cfg.Purge.BatchSize,
		BlobTimeout: cfg.Blob.Timeout,
	})
	purger.RunOnce(ctx)

	zlog.Info("purge pass complete")
}
