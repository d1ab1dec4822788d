package models

import "time"

// Subscriber is a person receiving grant notifications.
type Subscriber struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"` // unique
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	Confirmed    bool       `json:"confirmed"`
	ConfirmToken string     `json:"-"` // single use, cleared on confirm
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSeenAt   *time.Time `json:"last_seen_at"`
}

// Subscription holds one subscriber's saved filter criteria.
// Nil slices and nil bounds mean "no constraint".
type Subscription struct {
	ID               int64     `json:"id"`
	SubscriberID     int64     `json:"subscriber_id"`
	RegionIDs        []int     `json:"region_ids"`
	AreaIDs          []int     `json:"area_ids"`
	MinBudget        *float64  `json:"min_budget"`
	MaxBudget        *float64  `json:"max_budget"`
	BeneficiaryTypes []string  `json:"beneficiary_types"`
	NotifyEmail      bool      `json:"notify_email"`
	Frequency        string    `json:"frequency"` // immediate, daily, weekly
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EmailSubscription is a subscription joined with its owning subscriber,
// as loaded by the notifier.
type EmailSubscription struct {
	Subscription
	Subscriber Subscriber `json:"subscriber"`
}

// Notification is one ledger entry for a (subscriber, grant) dispatch
// attempt. At most one row with Sent=true may exist per pair.
type Notification struct {
	ID           int64      `json:"id"`
	SubscriberID int64      `json:"subscriber_id"`
	GrantID      int64      `json:"grant_id"`
	Channel      string     `json:"channel"` // "email"
	Sent         bool       `json:"sent"`
	SentAt       *time.Time `json:"sent_at"`
	Error        string     `json:"error"`
	CreatedAt    time.Time  `json:"created_at"`
}
