package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/david/bdns-notifier/internal/api"
	"github.com/david/bdns-notifier/internal/bdns"
	"github.com/david/bdns-notifier/internal/calendar"
	"github.com/david/bdns-notifier/internal/config"
	"github.com/david/bdns-notifier/internal/mail"
	"github.com/david/bdns-notifier/internal/store"
	"github.com/david/bdns-notifier/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

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
	if err := st.EnsureAreas(ctx, store.DefaultAreas); err != nil {
		log.Fatalf("Seeding areas failed: %v", err)
	}

	client := bdns.New(cfg.BDNSBaseURL, &http.Client{Timeout: 30 * time.Second}, cfg.DetailRPS, logger)

	var events syncer.EventCreator
	if cfg.CalendarDisabled {
		logger.Warn("calendar mirroring disabled by configuration")
	} else {
		cal, err := calendar.NewService(ctx, cfg.CalendarID, cfg.GoogleCredsJSON, cfg.GoogleCredsFile, logger)
		if err != nil {
			log.Fatalf("Calendar mirroring unavailable (set CALENDAR_DISABLED=true to run without it): %v", err)
		}
		events = cal
	}

	mailer, err := mail.New(mail.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		From:        cfg.EmailFrom,
		FrontendURL: cfg.FrontendURL,
	}, logger)
	if err != nil {
		log.Fatalf("Invalid mail configuration: %v", err)
	}

	rules, err := syncer.LoadRules()
	if err != nil {
		log.Fatalf("Loading filter rules failed: %v", err)
	}

	pipeline := syncer.NewPipeline(
		client, st, st, st,
		syncer.NewMirror(events, st, logger),
		syncer.NewNotifier(st, st, mailer, logger),
		rules,
		syncer.Options{
			PurposeID:     cfg.PurposeID,
			RegionPrefix:  cfg.RegionPrefix,
			AdminType:     cfg.AdminType,
			PageSize:      cfg.PageSize,
			LookbackYears: cfg.LookbackYears,
		},
		logger,
	)

	scheduler := syncer.NewScheduler(pipeline, cfg.SyncHour, cfg.SyncMinute, logger)
	if cfg.SchedulerEnabled {
		go scheduler.Start(ctx)
	} else {
		logger.Warn("scheduler disabled, syncs run only on manual trigger")
	}

	srv := api.NewServer(scheduler, st)
	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
