package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/david/bdns-notifier/internal/models"
)

func (s *Store) UpsertRegions(ctx context.Context, regions []models.Region) error {
	batch := &pgx.Batch{}
	for _, r := range regions {
		batch.Queue(`
			INSERT INTO regions (id, code, name, kind)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET code = $2, name = $3, kind = $4
		`, r.ID, r.Code, r.Name, r.Kind)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting regions: %w", err)
	}
	return nil
}

func (s *Store) UpsertPurposes(ctx context.Context, purposes []models.Purpose) error {
	batch := &pgx.Batch{}
	for _, p := range purposes {
		batch.Queue(`
			INSERT INTO purposes (id, code, name, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET code = $2, name = $3, description = $4
		`, p.ID, p.Code, p.Name, p.Description)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting purposes: %w", err)
	}
	return nil
}

// EnsureAreas seeds the local area catalog without overwriting edits.
func (s *Store) EnsureAreas(ctx context.Context, areas []models.Area) error {
	batch := &pgx.Batch{}
	for _, a := range areas {
		batch.Queue(`
			INSERT INTO areas (name, description, purpose_ids)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
		`, a.Name, a.Description, a.PurposeIDs)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding areas: %w", err)
	}
	return nil
}

func (s *Store) ListRegions(ctx context.Context) ([]models.Region, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, code, name, kind, created_at FROM regions ORDER BY code, id")
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	defer rows.Close()

	var out []models.Region
	for rows.Next() {
		var r models.Region
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Kind, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning region: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListPurposes(ctx context.Context) ([]models.Purpose, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, code, name, description, created_at FROM purposes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing purposes: %w", err)
	}
	defer rows.Close()

	var out []models.Purpose
	for rows.Next() {
		var p models.Purpose
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning purpose: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RegionIDsByCodePrefix(ctx context.Context, prefix string) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id FROM regions WHERE code LIKE $1 || '%' ORDER BY id", prefix)
	if err != nil {
		return nil, fmt.Errorf("resolving region prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning region id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
