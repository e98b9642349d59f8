// Package notify delivers reservation confirmations to clients and to the
// business contact address.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/turnos-booking/internal/model"
)

// DisplayLayout is how slot date-times are rendered in messages.
const DisplayLayout = "02-01-2006 15:04"

// MailConfig holds SMTP settings.  Username doubles as the sender address
// when From is empty.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Contact  string // business inbox copied on every confirmation
}

// Mailer sends confirmation emails over SMTP.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	contact string
	send    func(...*gomail.Message) error
}

// NewMailer builds a mailer.  Nothing is dialled until the first Send.
func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{dialer: d, from: from, contact: cfg.Contact, send: d.DialAndSend}
}

// Send delivers a plain text message to recipients.  Empty addresses are
// skipped; with none left Send is a no-op.
func (m *Mailer) Send(recipients []string, subject, body string) error {
	to := make([]string, 0, len(recipients))
	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" || seen[strings.ToLower(r)] {
			continue
		}
		seen[strings.ToLower(r)] = true
		to = append(to, r)
	}
	if len(to) == 0 {
		return nil
	}
	if m.from == "" {
		return errors.New("notify: no sender address configured")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.send(msg); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

// Notify emails the confirmation of res to the client, when an address was
// given, and to the business contact.
func (m *Mailer) Notify(ctx context.Context, res model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Send([]string{res.Email(), m.contact}, Subject(res), Body(res))
}

// Subject returns the subject line of a confirmation.
func Subject(res model.Reservation) string {
	return "Reservation confirmed for " + res.SlotAt.Format(DisplayLayout)
}

// Body returns the text of a confirmation.
func Body(res model.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", res.ClientName)
	fmt.Fprintf(&b, "Your reservation for %s on %s is confirmed.\n", res.ServiceType, res.SlotAt.Format(DisplayLayout))
	if res.DepositCents != nil && *res.DepositCents > 0 {
		fmt.Fprintf(&b, "Deposit received: %d.%02d\n", *res.DepositCents/100, *res.DepositCents%100)
	}
	b.WriteString("\nSee you soon.\n")
	return b.String()
}

// LogNotifier writes confirmations to the standard logger.  It is used when
// no SMTP credentials are configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, res model.Reservation) error {
	log.Printf("notify: reservation confirmed | ref=%s | client=%q | service=%q | email=%q",
		res.Reference(), res.ClientName, res.ServiceType, res.Email())
	return nil
}
