package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/david/bdns-notifier/internal/models"
)

const runCols = `run_id, status, fetched, new_items, persisted, mirrored,
	notified, error, started_at, finished_at`

func scanRun(scan func(dest ...any) error) (models.SyncRun, error) {
	var r models.SyncRun
	err := scan(&r.RunID, &r.Status, &r.Fetched, &r.NewItems, &r.Persisted,
		&r.Mirrored, &r.Notified, &r.Error, &r.StartedAt, &r.FinishedAt)
	return r, err
}

func (s *Store) StartRun(ctx context.Context, run *models.SyncRun) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_runs (run_id, status)
		VALUES ($1, 'running')
		RETURNING started_at
	`, run.RunID).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	run.Status = "running"
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *models.SyncRun) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE sync_runs SET
			status = $2, fetched = $3, new_items = $4, persisted = $5,
			mirrored = $6, notified = $7, error = $8, finished_at = NOW()
		WHERE run_id = $1
		RETURNING finished_at
	`, run.RunID, run.Status, run.Fetched, run.NewItems, run.Persisted,
		run.Mirrored, run.Notified, run.Error).Scan(&run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return nil
}

func (s *Store) LastRun(ctx context.Context) (*models.SyncRun, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM sync_runs ORDER BY started_at DESC LIMIT 1", runCols))
	r, err := scanRun(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching last run: %w", err)
	}
	return &r, nil
}

func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM sync_runs ORDER BY started_at DESC LIMIT $1", runCols), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []models.SyncRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
