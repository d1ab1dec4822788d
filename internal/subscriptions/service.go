// Package subscriptions manages the subscriber lifecycle: sign-up with
// double opt-in, filter profile updates and cancellation.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

// ErrInvalidToken is returned when a confirmation token matches no
// pending subscriber.
var ErrInvalidToken = errors.New("invalid or already used confirmation token")

// ErrInvalidEmail is returned for malformed addresses.
var ErrInvalidEmail = errors.New("invalid email address")

var validFrequencies = map[string]bool{
	"immediate": true,
	"daily":     true,
	"weekly":    true,
}

// ConfirmationMailer sends the double-opt-in message.
type ConfirmationMailer interface {
	SendConfirmation(sub *models.Subscriber) error
}

// Service wires subscriber and subscription persistence with the
// confirmation mail flow.
type Service struct {
	subscribers store.SubscriberStore
	subs        store.SubscriptionStore
	mailer      ConfirmationMailer
	log         *slog.Logger
}

func NewService(subscribers store.SubscriberStore, subs store.SubscriptionStore, mailer ConfirmationMailer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{subscribers: subscribers, subs: subs, mailer: mailer, log: log}
}

// Subscribe registers a filter profile for the given address. A new
// address gets a subscriber record with a single-use confirmation token
// and a confirmation mail. An address that already holds an active
// profile is rejected with store.ErrActiveSubscriptionExists.
func (s *Service) Subscribe(ctx context.Context, email, name string, profile models.Subscription) (*models.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !looksLikeEmail(email) {
		return nil, ErrInvalidEmail
	}
	if profile.Frequency == "" {
		profile.Frequency = "immediate"
	}
	if !validFrequencies[profile.Frequency] {
		return nil, fmt.Errorf("unknown frequency %q", profile.Frequency)
	}

	sub, err := s.subscribers.GetSubscriberByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sub = &models.Subscriber{
			Email:        email,
			Name:         strings.TrimSpace(name),
			Active:       true,
			ConfirmToken: uuid.NewString(),
		}
		if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	profile.SubscriberID = sub.ID
	profile.NotifyEmail = true
	profile.Active = true
	if err := s.subs.CreateSubscription(ctx, &profile); err != nil {
		return nil, err
	}

	if !sub.Confirmed && s.mailer != nil {
		if err := s.mailer.SendConfirmation(sub); err != nil {
			// The profile is stored; the token can be re-sent later.
			s.log.Error("sending confirmation failed", "email", sub.Email, "error", err)
		}
	}

	s.log.Info("subscription created", "email", sub.Email, "subscription", profile.ID)
	return sub, nil
}

// Confirm resolves a confirmation token and activates the subscriber.
// The token is cleared on success and cannot be used again.
func (s *Service) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	sub, err := s.subscribers.GetSubscriberByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if err := s.subscribers.ConfirmSubscriber(ctx, sub.ID); err != nil {
		return nil, err
	}
	sub.Confirmed = true
	sub.ConfirmToken = ""
	s.log.Info("subscriber confirmed", "email", sub.Email)
	return sub, nil
}

// UpdateProfile replaces the criteria of the subscriber's active
// profile.
func (s *Service) UpdateProfile(ctx context.Context, subscriberID int64, profile models.Subscription) (*models.Subscription, error) {
	current, err := s.subs.GetActiveSubscription(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	current.RegionIDs = profile.RegionIDs
	current.AreaIDs = profile.AreaIDs
	current.MinBudget = profile.MinBudget
	current.MaxBudget = profile.MaxBudget
	current.BeneficiaryTypes = profile.BeneficiaryTypes
	if profile.Frequency != "" {
		if !validFrequencies[profile.Frequency] {
			return nil, fmt.Errorf("unknown frequency %q", profile.Frequency)
		}
		current.Frequency = profile.Frequency
	}
	if err := s.subs.UpdateSubscription(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Cancel deactivates the subscriber's active profile. The subscriber
// record stays so the notification history keeps its references.
func (s *Service) Cancel(ctx context.Context, subscriberID int64) error {
	current, err := s.subs.GetActiveSubscription(ctx, subscriberID)
	if err != nil {
		return err
	}
	if err := s.subs.CancelSubscription(ctx, current.ID); err != nil {
		return err
	}
	s.log.Info("subscription cancelled", "subscriber", subscriberID)
	return nil
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}
