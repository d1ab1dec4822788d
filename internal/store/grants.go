package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/david/bdns-notifier/internal/models"
)

const grantCols = `id, external_id, title, description,
	publication_date, application_start, application_end,
	issuing_body, issuing_level1, issuing_level2, issuing_level3,
	call_type, instruments, sectors, budget,
	purpose_id, purpose_name, region_id, region_name, beneficiary_types,
	bdns_url, regulation_url, application_url,
	calendar_event_id, active, created_at, updated_at`

func scanGrant(scan func(dest ...any) error) (models.Grant, error) {
	var g models.Grant
	err := scan(
		&g.ID, &g.ExternalID, &g.Title, &g.Description,
		&g.PublicationDate, &g.ApplicationStart, &g.ApplicationEnd,
		&g.IssuingBody, &g.IssuingLevel1, &g.IssuingLevel2, &g.IssuingLevel3,
		&g.CallType, &g.Instruments, &g.Sectors, &g.Budget,
		&g.PurposeID, &g.PurposeName, &g.RegionID, &g.RegionName, &g.BeneficiaryTypes,
		&g.BDNSURL, &g.RegulationURL, &g.ApplicationURL,
		&g.CalendarEventID, &g.Active, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

func (s *Store) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM grants WHERE external_id = $1)", externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking grant %s: %w", externalID, err)
	}
	return exists, nil
}

// Insert stores the grant and fills its generated fields. A concurrent
// insert of the same external id resolves to the existing row, so the
// call is idempotent.
func (s *Store) Insert(ctx context.Context, g *models.Grant) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO grants (
			external_id, title, description,
			publication_date, application_start, application_end,
			issuing_body, issuing_level1, issuing_level2, issuing_level3,
			call_type, instruments, sectors, budget,
			purpose_id, purpose_name, region_id, region_name, beneficiary_types,
			bdns_url, regulation_url, application_url, active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23
		)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`,
		g.ExternalID, g.Title, g.Description,
		g.PublicationDate, g.ApplicationStart, g.ApplicationEnd,
		g.IssuingBody, g.IssuingLevel1, g.IssuingLevel2, g.IssuingLevel3,
		g.CallType, textArray(g.Instruments), textArray(g.Sectors), g.Budget,
		g.PurposeID, g.PurposeName, g.RegionID, g.RegionName, textArray(g.BeneficiaryTypes),
		g.BDNSURL, g.RegulationURL, g.ApplicationURL, g.Active,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, gerr := s.GetByExternalID(ctx, g.ExternalID)
		if gerr != nil {
			return fmt.Errorf("resolving conflicting grant %s: %w", g.ExternalID, gerr)
		}
		*g = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("inserting grant %s: %w", g.ExternalID, err)
	}
	return nil
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*models.Grant, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM grants WHERE external_id = $1", grantCols), externalID)
	g, err := scanGrant(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching grant %s: %w", externalID, err)
	}
	return &g, nil
}

func (s *Store) SetCalendarEvent(ctx context.Context, grantID int64, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE grants SET calendar_event_id = $1, updated_at = NOW() WHERE id = $2",
		eventID, grantID)
	if err != nil {
		return fmt.Errorf("setting calendar event for grant %d: %w", grantID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListWithoutCalendarEvent(ctx context.Context, limit int) ([]models.Grant, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM grants
		WHERE active AND calendar_event_id = '' AND application_end IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, grantCols), limit)
	if err != nil {
		return nil, fmt.Errorf("listing unmirrored grants: %w", err)
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE grants SET active = FALSE, updated_at = NOW()
		WHERE active AND application_end IS NOT NULL AND application_end < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivating expired grants: %w", err)
	}
	return tag.RowsAffected(), nil
}

// textArray keeps NOT NULL array columns happy when the slice is nil.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func intArray(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}
