package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/david/bdns-notifier/internal/models"
)

const subscriberCols = `id, email, name, active, confirmed, confirm_token,
	created_at, updated_at, last_seen_at`

func scanSubscriber(scan func(dest ...any) error) (models.Subscriber, error) {
	var s models.Subscriber
	var token *string
	err := scan(&s.ID, &s.Email, &s.Name, &s.Active, &s.Confirmed, &token,
		&s.CreatedAt, &s.UpdatedAt, &s.LastSeenAt)
	if token != nil {
		s.ConfirmToken = *token
	}
	return s, err
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	var token *string
	if sub.ConfirmToken != "" {
		token = &sub.ConfirmToken
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscribers (email, name, active, confirmed, confirm_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, strings.ToLower(sub.Email), sub.Name, sub.Active, sub.Confirmed, token).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating subscriber %s: %w", sub.Email, err)
	}
	return nil
}

func (s *Store) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM subscribers WHERE email = $1", subscriberCols),
		strings.ToLower(email))
	sub, err := scanSubscriber(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching subscriber by email: %w", err)
	}
	return &sub, nil
}

func (s *Store) GetSubscriberByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM subscribers WHERE confirm_token = $1", subscriberCols), token)
	sub, err := scanSubscriber(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching subscriber by token: %w", err)
	}
	return &sub, nil
}

func (s *Store) ConfirmSubscriber(ctx context.Context, subscriberID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscribers
		SET confirmed = TRUE, confirm_token = NULL, updated_at = NOW()
		WHERE id = $1
	`, subscriberID)
	if err != nil {
		return fmt.Errorf("confirming subscriber %d: %w", subscriberID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeactivateSubscriber(ctx context.Context, subscriberID int64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE subscribers SET active = FALSE, updated_at = NOW() WHERE id = $1", subscriberID)
	if err != nil {
		return fmt.Errorf("deactivating subscriber %d: %w", subscriberID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const subscriptionCols = `id, subscriber_id, region_ids, area_ids,
	min_budget, max_budget, beneficiary_types, notify_email, frequency, active,
	created_at, updated_at`

func scanSubscription(scan func(dest ...any) error) (models.Subscription, error) {
	var sub models.Subscription
	err := scan(&sub.ID, &sub.SubscriberID, &sub.RegionIDs, &sub.AreaIDs,
		&sub.MinBudget, &sub.MaxBudget, &sub.BeneficiaryTypes,
		&sub.NotifyEmail, &sub.Frequency, &sub.Active,
		&sub.CreatedAt, &sub.UpdatedAt)
	return sub, err
}

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (
			subscriber_id, region_ids, area_ids, min_budget, max_budget,
			beneficiary_types, notify_email, frequency, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`,
		sub.SubscriberID, intArray(sub.RegionIDs), intArray(sub.AreaIDs),
		sub.MinBudget, sub.MaxBudget, textArray(sub.BeneficiaryTypes),
		sub.NotifyEmail, sub.Frequency, sub.Active,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrActiveSubscriptionExists
	}
	if err != nil {
		return fmt.Errorf("creating subscription for subscriber %d: %w", sub.SubscriberID, err)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET
			region_ids = $1, area_ids = $2, min_budget = $3, max_budget = $4,
			beneficiary_types = $5, notify_email = $6, frequency = $7,
			updated_at = NOW()
		WHERE id = $8 AND active
	`,
		intArray(sub.RegionIDs), intArray(sub.AreaIDs), sub.MinBudget, sub.MaxBudget,
		textArray(sub.BeneficiaryTypes), sub.NotifyEmail, sub.Frequency, sub.ID)
	if err != nil {
		return fmt.Errorf("updating subscription %d: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CancelSubscription(ctx context.Context, subscriptionID int64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE subscriptions SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active",
		subscriptionID)
	if err != nil {
		return fmt.Errorf("cancelling subscription %d: %w", subscriptionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetActiveSubscription(ctx context.Context, subscriberID int64) (*models.Subscription, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM subscriptions WHERE subscriber_id = $1 AND active", subscriptionCols),
		subscriberID)
	sub, err := scanSubscription(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching active subscription of subscriber %d: %w", subscriberID, err)
	}
	return &sub, nil
}

func (s *Store) ListActiveEmail(ctx context.Context) ([]models.EmailSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			sub.id, sub.subscriber_id, sub.region_ids, sub.area_ids,
			sub.min_budget, sub.max_budget, sub.beneficiary_types,
			sub.notify_email, sub.frequency, sub.active,
			sub.created_at, sub.updated_at,
			s.id, s.email, s.name, s.active, s.confirmed,
			s.created_at, s.updated_at, s.last_seen_at
		FROM subscriptions sub
		JOIN subscribers s ON s.id = sub.subscriber_id
		WHERE sub.active AND sub.notify_email
		  AND s.active AND s.confirmed
		ORDER BY sub.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing active email subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.EmailSubscription
	for rows.Next() {
		var es models.EmailSubscription
		err := rows.Scan(
			&es.ID, &es.SubscriberID, &es.RegionIDs, &es.AreaIDs,
			&es.MinBudget, &es.MaxBudget, &es.BeneficiaryTypes,
			&es.NotifyEmail, &es.Frequency, &es.Subscription.Active,
			&es.CreatedAt, &es.UpdatedAt,
			&es.Subscriber.ID, &es.Subscriber.Email, &es.Subscriber.Name,
			&es.Subscriber.Active, &es.Subscriber.Confirmed,
			&es.Subscriber.CreatedAt, &es.Subscriber.UpdatedAt, &es.Subscriber.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning email subscription: %w", err)
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

func (s *Store) SentExists(ctx context.Context, subscriberID, grantID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE subscriber_id = $1 AND grant_id = $2 AND sent
		)
	`, subscriberID, grantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking notification ledger: %w", err)
	}
	return exists, nil
}

func (s *Store) RecordNotification(ctx context.Context, n *models.Notification) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (subscriber_id, grant_id, channel, sent, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, n.SubscriberID, n.GrantID, n.Channel, n.Sent, n.SentAt, n.Error).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
