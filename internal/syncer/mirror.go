package syncer

import (
	"context"
	"log/slog"

	"github.com/david/bdns-notifier/internal/metrics"
	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

// EventCreator creates one calendar event and returns its id.
type EventCreator interface {
	CreateEvent(ctx context.Context, g *models.Grant) (string, error)
}

// Mirror pushes grant deadlines into the calendar.
type Mirror struct {
	calendar EventCreator
	grants   store.GrantStore
	log      *slog.Logger
}

// NewMirror builds a Mirror. A nil calendar disables mirroring; the
// rest of the pipeline is unaffected.
func NewMirror(calendar EventCreator, grants store.GrantStore, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{calendar: calendar, grants: grants, log: log}
}

// MirrorGrants creates one event per unmirrored grant and stores the
// event id. A failure on one grant is counted and skipped so the other
// grants still get their events. Returns the number of events created
// and the number of failures.
func (m *Mirror) MirrorGrants(ctx context.Context, grants []models.Grant) (mirrored, failed int) {
	if m.calendar == nil {
		return 0, 0
	}

	for i := range grants {
		g := &grants[i]
		if !g.HasDeadline() || g.CalendarEventID != "" {
			continue
		}

		eventID, err := m.calendar.CreateEvent(ctx, g)
		if err != nil {
			m.log.Error("calendar mirror failed", "grant", g.ExternalID, "error", err)
			metrics.CalendarErrors.Inc()
			failed++
			continue
		}
		if err := m.grants.SetCalendarEvent(ctx, g.ID, eventID); err != nil {
			m.log.Error("storing calendar event id failed",
				"grant", g.ExternalID, "event", eventID, "error", err)
			failed++
			continue
		}
		g.CalendarEventID = eventID
		metrics.CalendarEvents.Inc()
		mirrored++
	}
	return mirrored, failed
}

// Backfill mirrors stored grants that never got an event, in bounded
// batches.
func (m *Mirror) Backfill(ctx context.Context, batchSize int) (mirrored, failed int, err error) {
	if m.calendar == nil {
		return 0, 0, nil
	}
	for {
		batch, err := m.grants.ListWithoutCalendarEvent(ctx, batchSize)
		if err != nil {
			return mirrored, failed, err
		}
		if len(batch) == 0 {
			return mirrored, failed, nil
		}
		ok, bad := m.MirrorGrants(ctx, batch)
		mirrored += ok
		failed += bad
		// Everything failing means retrying the same batch forever.
		if ok == 0 {
			return mirrored, failed, nil
		}
	}
}
