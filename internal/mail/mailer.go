// Package mail is the outbound email collaborator. Delivery is best-effort:
// callers log a returned error and continue, a send failure never rolls back
// the state transition that triggered it.
package mail

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"backend/internal/model"
)

// Mailer sends quote-related email to clients and staff.
type Mailer interface {
	SendQuote(quote *model.Quote, client *model.Client, portalURL string) error
	SendQuoteStatusNotification(quote *model.Quote, client *model.Client, change string, recipients []string) error
	SendApprovalNotification(to, subject, body string) error
}

// SMTPMailer delivers through a plain SMTP relay configured via SMTP_HOST,
// SMTP_PORT, SMTP_USER, SMTP_PASSWORD and MAIL_FROM.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer() *SMTPMailer {
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@localhost"
	}
	return &SMTPMailer{
		host:     os.Getenv("SMTP_HOST"),
		port:     port,
		username: os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     from,
	}
}

func (m *SMTPMailer) send(to []string, subject, body string) error {
	if m.host == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST empty)")
	}

	msg := strings.Builder{}
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, to, []byte(msg.String()))
}

func (m *SMTPMailer) SendQuote(quote *model.Quote, client *model.Client, portalURL string) error {
	subject := fmt.Sprintf("Quote %s - %s", quote.QuoteNumber, quote.Title)
	body := fmt.Sprintf(
		"Dear %s,\n\nPlease find your quote %s below.\n\n"+
			"Total: %s %s\nValid until: %s\n\nView and respond online:\n%s\n",
		client.Name, quote.QuoteNumber,
		quote.Currency, quote.TotalAmount.StringFixed(2),
		quote.ValidityDate.Format("2006-01-02"), portalURL,
	)
	return m.send([]string{client.Email}, subject, body)
}

func (m *SMTPMailer) SendQuoteStatusNotification(quote *model.Quote, client *model.Client, change string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Quote %s %s", quote.QuoteNumber, change)
	body := fmt.Sprintf(
		"Quote %s for %s is now %s.\nTotal: %s %s\n",
		quote.QuoteNumber, client.Name, change,
		quote.Currency, quote.TotalAmount.StringFixed(2),
	)
	return m.send(recipients, subject, body)
}

func (m *SMTPMailer) SendApprovalNotification(to, subject, body string) error {
	return m.send([]string{to}, subject, body)
}

// NoopMailer drops everything. Used in development and tests when no relay is
// configured.
type NoopMailer struct{}

func (NoopMailer) SendQuote(*model.Quote, *model.Client, string) error { return nil }
func (NoopMailer) SendQuoteStatusNotification(*model.Quote, *model.Client, string, []string) error {
	return nil
}
func (NoopMailer) SendApprovalNotification(string, string, string) error { return nil }
