package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/david/bdns-notifier/internal/metrics"
	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

// GrantMailer sends new-grant notifications. Verify checks the mail
// transport before a dispatch loop starts.
type GrantMailer interface {
	Verify() error
	SendNewGrant(sub *models.Subscriber, g *models.Grant) error
}

// Matches reports whether a grant satisfies a subscription's filter
// criteria. Empty criteria never exclude: a subscription with no
// constraints matches every grant. Area criteria are accepted but not
// evaluated until the area-to-purpose mapping is populated.
func Matches(sub *models.Subscription, g *models.Grant) bool {
	if len(sub.RegionIDs) > 0 {
		if g.RegionID == nil {
			return false
		}
		found := false
		for _, id := range sub.RegionIDs {
			if id == *g.RegionID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if sub.MinBudget != nil && (g.Budget == nil || *g.Budget < *sub.MinBudget) {
		return false
	}
	if sub.MaxBudget != nil && (g.Budget == nil || *g.Budget > *sub.MaxBudget) {
		return false
	}

	if len(sub.BeneficiaryTypes) > 0 {
		found := false
	outer:
		for _, want := range sub.BeneficiaryTypes {
			for _, have := range g.BeneficiaryTypes {
				if strings.Contains(strings.ToLower(have), strings.ToLower(want)) {
					found = true
					break outer
				}
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Notifier dispatches email for newly ingested grants, keeping an
// at-most-once ledger per (subscriber, grant) pair.
type Notifier struct {
	subs   store.SubscriptionStore
	ledger store.NotificationStore
	mailer GrantMailer
	log    *slog.Logger
}

func NewNotifier(subs store.SubscriptionStore, ledger store.NotificationStore, mailer GrantMailer, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{subs: subs, ledger: ledger, mailer: mailer, log: log}
}

// Notify fans the new grants out to matching subscribers. A failed
// delivery is recorded and skipped; it never aborts the remaining
// pairs. An unreachable mail transport aborts the whole stage before
// any ledger row is written. Returns the delivered and failed counts.
func (n *Notifier) Notify(ctx context.Context, grants []models.Grant) (sent, failed int, err error) {
	if len(grants) == 0 {
		return 0, 0, nil
	}

	subs, err := n.subs.ListActiveEmail(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(subs) == 0 {
		return 0, 0, nil
	}

	if err := n.mailer.Verify(); err != nil {
		return 0, 0, fmt.Errorf("mail transport unavailable: %w", err)
	}

	for gi := range grants {
		g := &grants[gi]
		for si := range subs {
			sub := &subs[si]
			if !Matches(&sub.Subscription, g) {
				continue
			}

			already, err := n.ledger.SentExists(ctx, sub.SubscriberID, g.ID)
			if err != nil {
				return sent, failed, err
			}
			if already {
				continue
			}

			record := models.Notification{
				SubscriberID: sub.SubscriberID,
				GrantID:      g.ID,
				Channel:      "email",
			}
			if err := n.mailer.SendNewGrant(&sub.Subscriber, g); err != nil {
				n.log.Error("notification delivery failed",
					"subscriber", sub.Subscriber.Email, "grant", g.ExternalID, "error", err)
				metrics.NotificationErrors.Inc()
				record.Error = err.Error()
				failed++
			} else {
				now := time.Now().UTC()
				record.Sent = true
				record.SentAt = &now
				metrics.NotificationsSent.Inc()
				sent++
			}
			if err := n.ledger.RecordNotification(ctx, &record); err != nil {
				return sent, failed, err
			}
		}
	}
	return sent, failed, nil
}
