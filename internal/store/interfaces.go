package store

import (
	"context"
	"errors"
	"time"

	"github.com/david/bdns-notifier/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrActiveSubscriptionExists is returned when a subscriber already has
// an active filter profile.
var ErrActiveSubscriptionExists = errors.New("subscriber already has an active subscription")

// GrantStore persists funding calls.
type GrantStore interface {
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	Insert(ctx context.Context, g *models.Grant) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Grant, error)
	SetCalendarEvent(ctx context.Context, grantID int64, eventID string) error
	// ListWithoutCalendarEvent returns active grants with a deadline that
	// have not been mirrored yet, oldest first.
	ListWithoutCalendarEvent(ctx context.Context, limit int) ([]models.Grant, error)
	// DeactivateExpired flags grants whose deadline passed before now.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// SubscriberStore persists notification recipients.
type SubscriberStore interface {
	CreateSubscriber(ctx context.Context, s *models.Subscriber) error
	GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	GetSubscriberByToken(ctx context.Context, token string) (*models.Subscriber, error)
	// ConfirmSubscriber marks the subscriber confirmed and clears the
	// single-use token.
	ConfirmSubscriber(ctx context.Context, subscriberID int64) error
	DeactivateSubscriber(ctx context.Context, subscriberID int64) error
}

// SubscriptionStore persists per-subscriber filter profiles.
type SubscriptionStore interface {
	// CreateSubscription fails with ErrActiveSubscriptionExists when the
	// subscriber already holds an active profile.
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	CancelSubscription(ctx context.Context, subscriptionID int64) error
	GetActiveSubscription(ctx context.Context, subscriberID int64) (*models.Subscription, error)
	// ListActiveEmail returns active email subscriptions of confirmed,
	// active subscribers.
	ListActiveEmail(ctx context.Context) ([]models.EmailSubscription, error)
}

// NotificationStore is the at-most-once dispatch ledger.
type NotificationStore interface {
	SentExists(ctx context.Context, subscriberID, grantID int64) (bool, error)
	RecordNotification(ctx context.Context, n *models.Notification) error
}

// CatalogStore persists the registry catalogs and local areas.
type CatalogStore interface {
	UpsertRegions(ctx context.Context, regions []models.Region) error
	UpsertPurposes(ctx context.Context, purposes []models.Purpose) error
	EnsureAreas(ctx context.Context, areas []models.Area) error
	ListRegions(ctx context.Context) ([]models.Region, error)
	ListPurposes(ctx context.Context) ([]models.Purpose, error)
	// RegionIDsByCodePrefix resolves catalog ids whose code starts with
	// the given prefix, e.g. "ES7" for the Canary Islands subtree.
	RegionIDsByCodePrefix(ctx context.Context, prefix string) ([]int, error)
}

// RunStore records pipeline executions.
type RunStore interface {
	StartRun(ctx context.Context, run *models.SyncRun) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
	LastRun(ctx context.Context) (*models.SyncRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}
