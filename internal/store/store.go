package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL implementation of every per-entity interface.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ GrantStore        = (*Store)(nil)
	_ SubscriberStore   = (*Store)(nil)
	_ SubscriptionStore = (*Store)(nil)
	_ NotificationStore = (*Store)(nil)
	_ CatalogStore      = (*Store)(nil)
	_ RunStore          = (*Store)(nil)
)
