// Package metrics exposes Prometheus instrumentation for the sync
// pipeline and notification dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bdns_sync_runs_total",
		Help: "Completed sync runs by final status.",
	}, []string{"status"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bdns_sync_duration_seconds",
		Help:    "Wall time of one sync run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	GrantsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_grants_fetched_total",
		Help: "Listing rows fetched from the registry.",
	})

	GrantsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bdns_grants_filtered_total",
		Help: "Grants rejected by the qualification filter, by reason.",
	}, []string{"reason"})

	GrantsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_grants_persisted_total",
		Help: "New grants stored.",
	})

	CalendarEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_calendar_events_created_total",
		Help: "Calendar events created for grant deadlines.",
	})

	CalendarErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_calendar_errors_total",
		Help: "Failed calendar mirror attempts.",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_notifications_sent_total",
		Help: "Subscriber notifications delivered.",
	})

	NotificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdns_notification_errors_total",
		Help: "Failed notification deliveries.",
	})
)
