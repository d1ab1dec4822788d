// Command backfill creates calendar events for stored grants that were
// never mirrored, in bounded batches.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/david/bdns-notifier/internal/calendar"
	"github.com/david/bdns-notifier/internal/config"
	"github.com/david/bdns-notifier/internal/store"
	"github.com/david/bdns-notifier/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	st := store.New(pool)

	cal, err := calendar.NewService(ctx, cfg.CalendarID, cfg.GoogleCredsJSON, cfg.GoogleCredsFile, logger)
	if err != nil {
		log.Fatalf("Calendar unavailable: %v", err)
	}

	mirrored, failed, err := syncer.NewMirror(cal, st, logger).Backfill(ctx, 50)
	if err != nil {
		log.Fatalf("Backfill failed after %d events: %v", mirrored, err)
	}
	log.Printf("Backfill done: %d events created, %d failures", mirrored, failed)
	log.Printf("Calendar: %s", cal.CalendarURL())
	if failed > 0 {
		os.Exit(2)
	}
}
