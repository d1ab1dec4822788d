// Command setup_calendar creates the public mirror calendar and prints
// the id to configure as CALENDAR_ID.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/david/bdns-notifier/internal/calendar"
	"github.com/david/bdns-notifier/internal/config"
)

func main() {
	name := flag.String("name", "Convocatorias de Subvenciones I+D", "calendar name")
	description := flag.String("description",
		"Plazos de solicitud de convocatorias de investigación e innovación", "calendar description")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx := context.Background()
	cal, err := calendar.NewAdminService(ctx, cfg.GoogleCredsJSON, cfg.GoogleCredsFile, logger)
	if err != nil {
		log.Fatalf("Calendar unavailable: %v", err)
	}

	id, err := cal.CreateCalendar(ctx, *name, *description)
	if err != nil {
		log.Fatalf("Creating calendar failed: %v", err)
	}
	log.Printf("Calendar created: %s", id)
	log.Printf("Set CALENDAR_ID=%s and restart the server", id)
}
