package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

type fakeStore struct {
	nextID      int64
	subscribers map[string]*models.Subscriber // by email
	profiles    map[int64]*models.Subscription
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subscribers: make(map[string]*models.Subscriber),
		profiles:    make(map[int64]*models.Subscription),
	}
}

func (f *fakeStore) CreateSubscriber(_ context.Context, s *models.Subscriber) error {
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = time.Now()
	stored := *s
	f.subscribers[s.Email] = &stored
	return nil
}

func (f *fakeStore) GetSubscriberByEmail(_ context.Context, email string) (*models.Subscriber, error) {
	s, ok := f.subscribers[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeStore) GetSubscriberByToken(_ context.Context, token string) (*models.Subscriber, error) {
	for _, s := range f.subscribers {
		if s.ConfirmToken != "" && s.ConfirmToken == token {
			out := *s
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ConfirmSubscriber(_ context.Context, id int64) error {
	for _, s := range f.subscribers {
		if s.ID == id {
			s.Confirmed = true
			s.ConfirmToken = ""
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) DeactivateSubscriber(_ context.Context, id int64) error {
	for _, s := range f.subscribers {
		if s.ID == id {
			s.Active = false
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	for _, p := range f.profiles {
		if p.SubscriberID == sub.SubscriberID && p.Active {
			return store.ErrActiveSubscriptionExists
		}
	}
	f.nextID++
	sub.ID = f.nextID
	stored := *sub
	f.profiles[sub.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateSubscription(_ context.Context, sub *models.Subscription) error {
	p, ok := f.profiles[sub.ID]
	if !ok || !p.Active {
		return store.ErrNotFound
	}
	*p = *sub
	return nil
}

func (f *fakeStore) CancelSubscription(_ context.Context, id int64) error {
	p, ok := f.profiles[id]
	if !ok || !p.Active {
		return store.ErrNotFound
	}
	p.Active = false
	return nil
}

func (f *fakeStore) GetActiveSubscription(_ context.Context, subscriberID int64) (*models.Subscription, error) {
	for _, p := range f.profiles {
		if p.SubscriberID == subscriberID && p.Active {
			out := *p
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListActiveEmail(context.Context) ([]models.EmailSubscription, error) {
	return nil, nil
}

type fakeMailer struct {
	confirmations []string // tokens
	fail          bool
}

func (m *fakeMailer) SendConfirmation(sub *models.Subscriber) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.confirmations = append(m.confirmations, sub.ConfirmToken)
	return nil
}

func TestSubscribeCreatesSubscriberAndSendsConfirmation(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{}
	svc := NewService(st, st, mailer, nil)

	sub, err := svc.Subscribe(context.Background(), "Ana@Example.org ", "Ana",
		models.Subscription{RegionIDs: []int{70}})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if sub.Email != "ana@example.org" {
		t.Errorf("email not normalized: %q", sub.Email)
	}
	if sub.Confirmed {
		t.Error("new subscriber must start unconfirmed")
	}
	if sub.ConfirmToken == "" {
		t.Error("expected a confirmation token")
	}
	if len(mailer.confirmations) != 1 || mailer.confirmations[0] != sub.ConfirmToken {
		t.Errorf("confirmation mail: got %v", mailer.confirmations)
	}

	profile, err := st.GetActiveSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("expected active profile: %v", err)
	}
	if !profile.NotifyEmail || profile.Frequency != "immediate" {
		t.Errorf("profile defaults wrong: %+v", profile)
	}
}

func TestSubscribeRejectsSecondActiveProfile(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, st, &fakeMailer{}, nil)

	if _, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{}); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	_, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{})
	if !errors.Is(err, store.ErrActiveSubscriptionExists) {
		t.Errorf("expected ErrActiveSubscriptionExists, got %v", err)
	}
}

func TestSubscribeValidatesInput(t *testing.T) {
	svc := NewService(newFakeStore(), newFakeStore(), nil, nil)

	if _, err := svc.Subscribe(context.Background(), "not-an-email", "", models.Subscription{}); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Subscribe(context.Background(), "a@b.c", "", models.Subscription{Frequency: "hourly"}); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestConfirmTokenIsSingleUse(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, st, &fakeMailer{}, nil)

	created, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), created.ConfirmToken)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ConfirmToken != "" {
		t.Errorf("confirm did not settle state: %+v", confirmed)
	}

	if _, err := svc.Confirm(context.Background(), created.ConfirmToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second use: expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Confirm(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty token: expected ErrInvalidToken, got %v", err)
	}
}

func TestSubscribeSurvivesConfirmationMailFailure(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, st, &fakeMailer{fail: true}, nil)

	sub, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := st.GetActiveSubscription(context.Background(), sub.ID); err != nil {
		t.Errorf("profile should persist despite mail failure: %v", err)
	}
}

func TestUpdateProfileReplacesCriteria(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, st, &fakeMailer{}, nil)

	sub, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{RegionIDs: []int{70}})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	min := 10000.0
	updated, err := svc.UpdateProfile(context.Background(), sub.ID, models.Subscription{
		RegionIDs: []int{70, 71},
		MinBudget: &min,
		Frequency: "weekly",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.RegionIDs) != 2 || updated.MinBudget == nil || updated.Frequency != "weekly" {
		t.Errorf("criteria not replaced: %+v", updated)
	}
}

func TestCancelThenResubscribe(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, st, &fakeMailer{}, nil)

	sub, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.Cancel(context.Background(), sub.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.Cancel(context.Background(), sub.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second cancel: expected ErrNotFound, got %v", err)
	}

	// A cancelled profile no longer blocks a fresh subscription.
	if _, err := svc.Subscribe(context.Background(), "ana@example.org", "", models.Subscription{}); err != nil {
		t.Errorf("resubscribe after cancel: %v", err)
	}
}
