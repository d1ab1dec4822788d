// Package mail sends subscriber-facing email over SMTP. Messages carry
// both a plain-text and an HTML part.
package mail

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/david/bdns-notifier/internal/calendar"
	"github.com/david/bdns-notifier/internal/models"
)

// Mailer delivers notification and confirmation email.
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
	log         *slog.Logger
}

// Config holds the SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

func New(cfg Config, log *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{
		dialer:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:        cfg.From,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		log:         log,
	}, nil
}

// Verify opens and closes an SMTP connection, surfacing auth and
// connectivity problems before a send loop starts.
func (m *Mailer) Verify() error {
	conn, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp connection to %s failed: %w", m.dialer.Host, err)
	}
	return conn.Close()
}

// SendNewGrant notifies one subscriber about a freshly ingested grant.
func (m *Mailer) SendNewGrant(sub *models.Subscriber, g *models.Grant) error {
	data := newGrantData(sub, g)

	var text, html bytes.Buffer
	if err := grantTextTmpl.Execute(&text, data); err != nil {
		return fmt.Errorf("rendering text body: %w", err)
	}
	if err := grantHTMLTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("rendering html body: %w", err)
	}

	subject := fmt.Sprintf("Nueva convocatoria: %s", truncate(g.Title, 120))
	if err := m.send(sub.Email, subject, text.String(), html.String()); err != nil {
		return fmt.Errorf("sending grant mail to %s: %w", sub.Email, err)
	}
	m.log.Info("sent grant notification", "to", sub.Email, "grant", g.ExternalID)
	return nil
}

// SendConfirmation sends the subscribe double-opt-in link.
func (m *Mailer) SendConfirmation(sub *models.Subscriber) error {
	data := confirmationData{
		Name:       sub.Name,
		ConfirmURL: fmt.Sprintf("%s/confirm?token=%s", m.frontendURL, sub.ConfirmToken),
	}

	var text, html bytes.Buffer
	if err := confirmTextTmpl.Execute(&text, data); err != nil {
		return fmt.Errorf("rendering text body: %w", err)
	}
	if err := confirmHTMLTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("rendering html body: %w", err)
	}

	if err := m.send(sub.Email, "Confirma tu suscripción", text.String(), html.String()); err != nil {
		return fmt.Errorf("sending confirmation to %s: %w", sub.Email, err)
	}
	m.log.Info("sent confirmation mail", "to", sub.Email)
	return nil
}

func (m *Mailer) send(to, subject, textBody, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

type grantData struct {
	Name        string
	Title       string
	IssuingBody string
	RegionName  string
	Budget      string
	Deadline    string
	Description string
	BDNSURL     string
}

func newGrantData(sub *models.Subscriber, g *models.Grant) grantData {
	d := grantData{
		Name:        sub.Name,
		Title:       g.Title,
		IssuingBody: g.IssuingBody,
		RegionName:  g.RegionName,
		Description: truncate(g.Description, 500),
		BDNSURL:     g.BDNSURL,
	}
	if d.Name == "" {
		d.Name = sub.Email
	}
	if g.Budget != nil {
		d.Budget = calendar.FormatBudget(*g.Budget)
	}
	if g.ApplicationEnd != nil {
		d.Deadline = g.ApplicationEnd.Format("02/01/2006")
	}
	return d
}

type confirmationData struct {
	Name       string
	ConfirmURL string
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
