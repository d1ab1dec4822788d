// Command check_runs prints the recent sync run history.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bdns-notifier/internal/config"
	"github.com/david/bdns-notifier/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := store.New(pool).ListRecentRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Fetched", "New", "Persisted", "Mirrored", "Notified", "Duration", "Started At"})

	for _, run := range runs {
		duration := "Running..."
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			run.RunID[:8], run.Status,
			run.Fetched, run.NewItems, run.Persisted, run.Mirrored, run.Notified,
			duration, run.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
