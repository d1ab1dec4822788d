package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/david/bdns-notifier/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestMatches(t *testing.T) {
	budget := 50000.0
	regionID := 70
	grant := &models.Grant{
		ID:               1,
		RegionID:         &regionID,
		Budget:           &budget,
		BeneficiaryTypes: []string{"PYME Y PERSONAS FÍSICAS", "UNIVERSIDADES"},
	}

	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{name: "no constraints match everything", sub: models.Subscription{}, want: true},
		{name: "region allowlist hit", sub: models.Subscription{RegionIDs: []int{70, 71}}, want: true},
		{name: "region allowlist miss", sub: models.Subscription{RegionIDs: []int{51}}, want: false},
		{name: "budget within bounds", sub: models.Subscription{MinBudget: floatPtr(10000), MaxBudget: floatPtr(100000)}, want: true},
		{name: "budget below minimum", sub: models.Subscription{MinBudget: floatPtr(60000)}, want: false},
		{name: "budget above maximum", sub: models.Subscription{MaxBudget: floatPtr(40000)}, want: false},
		{name: "beneficiary fragment matches case-insensitively", sub: models.Subscription{BeneficiaryTypes: []string{"pyme"}}, want: true},
		{name: "beneficiary miss", sub: models.Subscription{BeneficiaryTypes: []string{"AYUNTAMIENTOS"}}, want: false},
		{name: "area criteria are not evaluated yet", sub: models.Subscription{AreaIDs: []int{3}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(&tt.sub, grant); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMatchesBudgetConstraintNeedsBudget(t *testing.T) {
	grant := &models.Grant{ID: 1}
	sub := models.Subscription{MinBudget: floatPtr(1)}
	if Matches(&sub, grant) {
		t.Error("a budget bound must exclude grants without a budget")
	}
	sub = models.Subscription{RegionIDs: []int{70}}
	if Matches(&sub, grant) {
		t.Error("a region allowlist must exclude grants without a region")
	}
}

// Widening a budget window must never shrink the set of matched grants.
func TestMatchesBudgetWindowMonotonicity(t *testing.T) {
	grants := []*models.Grant{
		{ID: 1, Budget: floatPtr(10000)},
		{ID: 2, Budget: floatPtr(50000)},
		{ID: 3, Budget: floatPtr(100000)},
		{ID: 4}, // no budget
	}
	windows := []models.Subscription{
		{MinBudget: floatPtr(40000), MaxBudget: floatPtr(60000)},
		{MinBudget: floatPtr(20000), MaxBudget: floatPtr(100000)},
		{MinBudget: floatPtr(1), MaxBudget: floatPtr(1000000)},
		{}, // unbounded
	}

	matched := func(sub *models.Subscription) map[int64]bool {
		out := make(map[int64]bool)
		for _, g := range grants {
			if Matches(sub, g) {
				out[g.ID] = true
			}
		}
		return out
	}

	prev := matched(&windows[0])
	for i := 1; i < len(windows); i++ {
		cur := matched(&windows[i])
		for id := range prev {
			if !cur[id] {
				t.Errorf("window %d lost grant %d that the narrower window %d matched", i, id, i-1)
			}
		}
		prev = cur
	}
}

func TestNotifySMTPOutageAbortsStage(t *testing.T) {
	st := newFakeStore()
	st.subs = []models.EmailSubscription{
		subscriberWith(models.Subscription{ID: 1, SubscriberID: 10}, "ana@example.org"),
	}
	mailer := &fakeMailer{verifyErr: fmt.Errorf("535 authentication failed")}
	n := NewNotifier(st, st, mailer, nil)

	_, _, err := n.Notify(context.Background(), []models.Grant{{ID: 1, ExternalID: "g1"}})
	if err == nil {
		t.Fatal("expected an error for an unreachable mail transport")
	}
	if len(st.ledger) != 0 {
		t.Errorf("no ledger rows should be written before the transport check, got %d", len(st.ledger))
	}
	if len(mailer.sent) != 0 {
		t.Errorf("no deliveries should be attempted, got %v", mailer.sent)
	}
}

func TestNotifyAtMostOncePerPair(t *testing.T) {
	st := newFakeStore()
	st.subs = []models.EmailSubscription{
		subscriberWith(models.Subscription{ID: 1, SubscriberID: 10}, "ana@example.org"),
	}
	mailer := &fakeMailer{}
	n := NewNotifier(st, st, mailer, nil)
	grants := []models.Grant{{ID: 1, ExternalID: "g1", Title: "x"}}

	for i := 0; i < 2; i++ {
		if _, _, err := n.Notify(context.Background(), grants); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}

	if len(mailer.sent) != 1 {
		t.Errorf("expected a single delivery, got %v", mailer.sent)
	}
}

func TestNotifyDeliveryFailureIsRecordedAndIsolated(t *testing.T) {
	st := newFakeStore()
	st.subs = []models.EmailSubscription{
		subscriberWith(models.Subscription{ID: 1, SubscriberID: 10}, "down@example.org"),
		subscriberWith(models.Subscription{ID: 2, SubscriberID: 11}, "ana@example.org"),
	}
	mailer := &fakeMailer{failFor: map[string]bool{"down@example.org": true}}
	n := NewNotifier(st, st, mailer, nil)

	sent, failed, err := n.Notify(context.Background(), []models.Grant{{ID: 1, ExternalID: "g1"}})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sent != 1 || failed != 1 {
		t.Errorf("expected 1 delivery and 1 failure, got %d/%d", sent, failed)
	}

	var failures, successes int
	for _, rec := range st.ledger {
		if rec.Sent {
			successes++
			if rec.SentAt == nil {
				t.Error("sent record missing timestamp")
			}
		} else {
			failures++
			if rec.Error == "" {
				t.Error("failed record missing error")
			}
		}
	}
	if successes != 1 || failures != 1 {
		t.Errorf("ledger: expected 1 success and 1 failure, got %d/%d", successes, failures)
	}
}

func TestNotifyFailedDeliveryCanRetryLater(t *testing.T) {
	st := newFakeStore()
	st.subs = []models.EmailSubscription{
		subscriberWith(models.Subscription{ID: 1, SubscriberID: 10}, "ana@example.org"),
	}
	mailer := &fakeMailer{failFor: map[string]bool{"ana@example.org": true}}
	n := NewNotifier(st, st, mailer, nil)
	grants := []models.Grant{{ID: 1, ExternalID: "g1"}}

	if _, _, err := n.Notify(context.Background(), grants); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// Outage over: only delivered notifications block a redelivery.
	mailer.failFor = nil
	sent, _, err := n.Notify(context.Background(), grants)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected redelivery after failure, got %d", sent)
	}
	if len(mailer.sent) != 1 {
		t.Errorf("expected exactly one successful delivery, got %v", mailer.sent)
	}
}
