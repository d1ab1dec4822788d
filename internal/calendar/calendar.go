// Package calendar mirrors grant deadlines into a Google Calendar. Each
// grant with a deadline becomes one all-day event spanning the
// application window, carrying reminders and a description with the
// call's key facts.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/david/bdns-notifier/internal/models"
)

// ErrNoCredentials is returned by NewService when no Google service
// account credentials are configured.
var ErrNoCredentials = errors.New("no google credentials configured")

const (
	timeZone = "Europe/Madrid"
	// colorId 9 is the blue "blueberry" palette entry.
	eventColor = "9"
)

// Service wraps the Google Calendar API for one target calendar.
type Service struct {
	api        *calendarapi.Service
	calendarID string
	sanitizer  *bluemonday.Policy
	log        *slog.Logger
}

// NewService builds a calendar client from service account credentials.
// credentialsJSON takes precedence; credentialsFile is the fallback.
func NewService(ctx context.Context, calendarID, credentialsJSON, credentialsFile string, log *slog.Logger) (*Service, error) {
	if calendarID == "" {
		return nil, errors.New("calendar id is required")
	}
	return newService(ctx, calendarID, credentialsJSON, credentialsFile, log)
}

// NewAdminService builds a client bound to no particular calendar, for
// creating and configuring calendar resources.
func NewAdminService(ctx context.Context, credentialsJSON, credentialsFile string, log *slog.Logger) (*Service, error) {
	return newService(ctx, "", credentialsJSON, credentialsFile, log)
}

func newService(ctx context.Context, calendarID, credentialsJSON, credentialsFile string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	var opts []option.ClientOption
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	default:
		return nil, ErrNoCredentials
	}
	opts = append(opts, option.WithScopes(calendarapi.CalendarScope))

	api, err := calendarapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return &Service{
		api:        api,
		calendarID: calendarID,
		sanitizer:  bluemonday.StrictPolicy(),
		log:        log,
	}, nil
}

// CreateCalendar creates a new calendar resource with public read
// access and returns its id.
func (s *Service) CreateCalendar(ctx context.Context, name, description string) (string, error) {
	created, err := s.api.Calendars.Insert(newCalendarResource(name, description)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating calendar: %w", err)
	}
	if _, err := s.api.Acl.Insert(created.Id, publicReaderRule()).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("publishing calendar %s: %w", created.Id, err)
	}
	s.log.Info("created calendar", "id", created.Id, "name", name)
	return created.Id, nil
}

func newCalendarResource(name, description string) *calendarapi.Calendar {
	return &calendarapi.Calendar{
		Summary:     name,
		Description: description,
		TimeZone:    timeZone,
	}
}

// publicReaderRule grants read access to everyone, so the calendar can
// be embedded and subscribed to without an account.
func publicReaderRule() *calendarapi.AclRule {
	return &calendarapi.AclRule{
		Role:  "reader",
		Scope: &calendarapi.AclRuleScope{Type: "default"},
	}
}

// CreateEvent inserts the grant's deadline event and returns its id.
func (s *Service) CreateEvent(ctx context.Context, g *models.Grant) (string, error) {
	event, err := s.buildEvent(g)
	if err != nil {
		return "", err
	}
	created, err := s.api.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("inserting event for grant %s: %w", g.ExternalID, err)
	}
	s.log.Info("mirrored grant to calendar", "grant", g.ExternalID, "event", created.Id)
	return created.Id, nil
}

// UpdateEvent rewrites an existing event from current grant data.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, g *models.Grant) error {
	event, err := s.buildEvent(g)
	if err != nil {
		return err
	}
	if _, err := s.api.Events.Update(s.calendarID, eventID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes an event, tolerating already-deleted ones.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	err := s.api.Events.Delete(s.calendarID, eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("deleting event %s: %w", eventID, err)
	}
	return nil
}

// CalendarURL is the embeddable public view of the mirror calendar.
func (s *Service) CalendarURL() string {
	return fmt.Sprintf("https://calendar.google.com/calendar/embed?src=%s&ctz=%s", s.calendarID, timeZone)
}

// ICalURL is the public iCal feed of the mirror calendar.
func (s *Service) ICalURL() string {
	return fmt.Sprintf("https://calendar.google.com/calendar/ical/%s/public/basic.ics", s.calendarID)
}

func (s *Service) buildEvent(g *models.Grant) (*calendarapi.Event, error) {
	if g.ApplicationEnd == nil {
		return nil, fmt.Errorf("grant %s has no deadline to mirror", g.ExternalID)
	}
	from := g.ApplicationStart
	if from == nil {
		from = g.ApplicationEnd
	}

	start := from.Format("2006-01-02")
	end := g.ApplicationEnd.Format("2006-01-02")

	return &calendarapi.Event{
		Summary:     fmt.Sprintf("Cierre: %s", truncate(g.Title, 200)),
		Description: s.eventDescription(g),
		Start:       &calendarapi.EventDateTime{Date: start, TimeZone: timeZone},
		End:         &calendarapi.EventDateTime{Date: end, TimeZone: timeZone},
		ColorId:     eventColor,
		Reminders: &calendarapi.EventReminders{
			UseDefault: false,
			Overrides: []*calendarapi.EventReminder{
				{Method: "email", Minutes: 7 * 24 * 60},
				{Method: "email", Minutes: 3 * 24 * 60},
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 24 * 60},
				{Method: "popup", Minutes: 2 * 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}, nil
}

// eventDescription renders the plain-text event body. Registry text can
// carry stray markup, so every free-text field passes the sanitizer.
func (s *Service) eventDescription(g *models.Grant) string {
	var b strings.Builder

	if g.Description != "" {
		b.WriteString(s.sanitizer.Sanitize(g.Description))
		b.WriteString("\n\n")
	}
	if g.IssuingBody != "" {
		fmt.Fprintf(&b, "Órgano: %s\n", s.sanitizer.Sanitize(g.IssuingBody))
	}
	if g.RegionName != "" {
		fmt.Fprintf(&b, "Ámbito: %s\n", s.sanitizer.Sanitize(g.RegionName))
	}
	if g.Budget != nil {
		fmt.Fprintf(&b, "Presupuesto: %s\n", FormatBudget(*g.Budget))
	}
	if g.ApplicationStart != nil {
		fmt.Fprintf(&b, "Plazo: %s", g.ApplicationStart.Format("02/01/2006"))
		if g.ApplicationEnd != nil {
			fmt.Fprintf(&b, " a %s", g.ApplicationEnd.Format("02/01/2006"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if g.BDNSURL != "" {
		fmt.Fprintf(&b, "Ficha BDNS: %s\n", g.BDNSURL)
	}
	if g.RegulationURL != "" {
		fmt.Fprintf(&b, "Bases reguladoras: %s\n", g.RegulationURL)
	}
	if g.ApplicationURL != "" {
		fmt.Fprintf(&b, "Sede electrónica: %s\n", g.ApplicationURL)
	}

	return strings.TrimSpace(b.String())
}

// FormatBudget renders an amount in the Spanish convention, with dots
// for thousands and a comma before the cents.
func FormatBudget(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	parts := strings.SplitN(s, ".", 2)
	whole, cents := parts[0], parts[1]

	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return sign + grouped.String() + "," + cents + " €"
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
