package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/david/bdns-notifier/internal/bdns"
	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

// fakeClient serves canned listing pages and details. Listing queries
// with region ids get the regional set, the rest the national set.
type fakeClient struct {
	regional    []bdns.Summary
	national    []bdns.Summary
	details     map[string]*bdns.Detail
	detailErrs  map[string]error
	searchCalls int
	searchErr   error
}

func (c *fakeClient) Search(_ context.Context, params bdns.SearchParams) ([]bdns.Summary, int, error) {
	c.searchCalls++
	if c.searchErr != nil {
		return nil, 0, c.searchErr
	}
	src := c.national
	if len(params.RegionIDs) > 0 {
		src = c.regional
	}
	start := params.Page * params.PageSize
	if start >= len(src) {
		return nil, len(src), nil
	}
	end := start + params.PageSize
	if end > len(src) {
		end = len(src)
	}
	return src[start:end], len(src), nil
}

func (c *fakeClient) Detail(_ context.Context, externalID string) (*bdns.Detail, error) {
	if err := c.detailErrs[externalID]; err != nil {
		return nil, err
	}
	d, ok := c.details[externalID]
	if !ok {
		return nil, fmt.Errorf("no detail for %s", externalID)
	}
	return d, nil
}

// fakeStore is an in-memory implementation of the persistence
// interfaces the pipeline touches.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	grants   map[string]*models.Grant
	subs     []models.EmailSubscription
	ledger   []models.Notification
	runs     []*models.SyncRun
	prefixes map[string][]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		grants:   make(map[string]*models.Grant),
		prefixes: make(map[string][]int),
	}
}

func (f *fakeStore) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[externalID]
	return ok, nil
}

func (f *fakeStore) Insert(_ context.Context, g *models.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.grants[g.ExternalID]; ok {
		*g = *existing
		return nil
	}
	f.nextID++
	g.ID = f.nextID
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	stored := *g
	f.grants[g.ExternalID] = &stored
	return nil
}

func (f *fakeStore) GetByExternalID(_ context.Context, externalID string) (*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *g
	return &out, nil
}

func (f *fakeStore) SetCalendarEvent(_ context.Context, grantID int64, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.ID == grantID {
			g.CalendarEventID = eventID
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ListWithoutCalendarEvent(_ context.Context, limit int) ([]models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Grant
	for _, g := range f.grants {
		if g.Active && g.CalendarEventID == "" && g.ApplicationEnd != nil {
			out = append(out, *g)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, g := range f.grants {
		if g.Active && g.ApplicationEnd != nil && g.ApplicationEnd.Before(now) {
			g.Active = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateSubscription(context.Context, *models.Subscription) error { return nil }
func (f *fakeStore) UpdateSubscription(context.Context, *models.Subscription) error { return nil }
func (f *fakeStore) CancelSubscription(context.Context, int64) error                { return nil }
func (f *fakeStore) GetActiveSubscription(context.Context, int64) (*models.Subscription, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListActiveEmail(context.Context) ([]models.EmailSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.EmailSubscription(nil), f.subs...), nil
}

func (f *fakeStore) SentExists(_ context.Context, subscriberID, grantID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.ledger {
		if n.SubscriberID == subscriberID && n.GrantID == grantID && n.Sent {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	n.CreatedAt = time.Now()
	f.ledger = append(f.ledger, *n)
	return nil
}

func (f *fakeStore) UpsertRegions(context.Context, []models.Region) error   { return nil }
func (f *fakeStore) UpsertPurposes(context.Context, []models.Purpose) error { return nil }
func (f *fakeStore) EnsureAreas(context.Context, []models.Area) error       { return nil }
func (f *fakeStore) ListRegions(context.Context) ([]models.Region, error)   { return nil, nil }
func (f *fakeStore) ListPurposes(context.Context) ([]models.Purpose, error) { return nil, nil }

func (f *fakeStore) RegionIDsByCodePrefix(_ context.Context, prefix string) ([]int, error) {
	return f.prefixes[prefix], nil
}

func (f *fakeStore) StartRun(_ context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.Status = "running"
	run.StartedAt = time.Now()
	stored := *run
	f.runs = append(f.runs, &stored)
	return nil
}

func (f *fakeStore) FinishRun(_ context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	run.FinishedAt = &now
	for _, r := range f.runs {
		if r.RunID == run.RunID {
			*r = *run
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) LastRun(context.Context) (*models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return nil, store.ErrNotFound
	}
	out := *f.runs[len(f.runs)-1]
	return &out, nil
}

func (f *fakeStore) ListRecentRuns(context.Context, int) ([]models.SyncRun, error) {
	return nil, nil
}

// fakeCalendar records created events, failing for flagged grants.
type fakeCalendar struct {
	mu      sync.Mutex
	created []string
	failFor map[string]bool
}

func (c *fakeCalendar) CreateEvent(_ context.Context, g *models.Grant) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[g.ExternalID] {
		return "", fmt.Errorf("calendar unavailable")
	}
	c.created = append(c.created, g.ExternalID)
	return "evt-" + g.ExternalID, nil
}

// fakeMailer records deliveries, failing for flagged addresses. A
// verifyErr simulates an unreachable mail relay.
type fakeMailer struct {
	mu        sync.Mutex
	sent      []string // "email:externalID"
	failFor   map[string]bool
	verifyErr error
}

func (m *fakeMailer) Verify() error { return m.verifyErr }

func (m *fakeMailer) SendNewGrant(sub *models.Subscriber, g *models.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[sub.Email] {
		return fmt.Errorf("smtp rejected")
	}
	m.sent = append(m.sent, sub.Email+":"+g.ExternalID)
	return nil
}
