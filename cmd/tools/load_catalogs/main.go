// Command load_catalogs pulls the region and purpose catalogs from the
// registry into the local database and seeds the area groupings.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bdns-notifier/internal/bdns"
	"github.com/david/bdns-notifier/internal/config"
	"github.com/david/bdns-notifier/internal/store"
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

	if err := store.ApplyMigrations(ctx, pool, logger); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	st := store.New(pool)

	client := bdns.New(cfg.BDNSBaseURL, &http.Client{Timeout: 30 * time.Second}, 0, logger)

	regions, err := client.Regions(ctx)
	if err != nil {
		log.Fatalf("Fetching regions failed: %v", err)
	}
	if err := st.UpsertRegions(ctx, regions); err != nil {
		log.Fatalf("Storing regions failed: %v", err)
	}
	log.Printf("Stored %d regions", len(regions))

	purposes, err := client.Purposes(ctx)
	if err != nil {
		log.Fatalf("Fetching purposes failed: %v", err)
	}
	if err := st.UpsertPurposes(ctx, purposes); err != nil {
		log.Fatalf("Storing purposes failed: %v", err)
	}
	log.Printf("Stored %d purposes", len(purposes))

	if err := st.EnsureAreas(ctx, store.DefaultAreas); err != nil {
		log.Fatalf("Seeding areas failed: %v", err)
	}

	ids, err := st.RegionIDsByCodePrefix(ctx, cfg.RegionPrefix)
	if err != nil {
		log.Fatalf("Resolving region prefix failed: %v", err)
	}
	log.Printf("Prefix %s resolves to %d region ids: %v", cfg.RegionPrefix, len(ids), ids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Code", "Name", "Kind"})
	for _, p := range purposes {
		t.AppendRow(table.Row{p.ID, p.Code, p.Name, "purpose"})
	}
	t.Render()
}
