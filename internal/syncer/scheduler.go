package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/david/bdns-notifier/internal/models"
)

// ErrRunInProgress is returned by TriggerNow while a sync is running.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// Scheduler runs the pipeline once a day at a fixed local time and on
// manual triggers. Only one run executes at a time.
type Scheduler struct {
	pipeline *Pipeline
	hour     int
	minute   int
	trigger  chan struct{}
	running  atomic.Bool
	log      *slog.Logger
}

func NewScheduler(pipeline *Pipeline, hour, minute int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		pipeline: pipeline,
		hour:     hour,
		minute:   minute,
		trigger:  make(chan struct{}, 1),
		log:      log,
	}
}

// TriggerNow requests an immediate run. It fails when a run is active
// or already queued.
func (s *Scheduler) TriggerNow() error {
	if s.running.Load() {
		return ErrRunInProgress
	}
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrRunInProgress
	}
}

// Running reports whether a sync is currently executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Start blocks until ctx is cancelled, firing the pipeline at the
// scheduled time each day and on every accepted trigger.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started", "hour", s.hour, "minute", s.minute)
	for {
		timer := time.NewTimer(time.Until(s.nextRunAt(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped")
			return
		case <-timer.C:
			s.execute(ctx)
		case <-s.trigger:
			timer.Stop()
			s.execute(ctx)
		}
	}
}

// RunNow executes the pipeline synchronously, failing fast with
// ErrRunInProgress when another run holds the slot.
func (s *Scheduler) RunNow(ctx context.Context) (*models.SyncRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.pipeline.Run(ctx)
}

func (s *Scheduler) execute(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		s.log.Error("scheduled sync failed", "error", err)
	}
}

// nextRunAt is the next occurrence of the configured wall-clock time.
func (s *Scheduler) nextRunAt(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
