// Package notify delivers moderation alerts to the store admins.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"toymart.io/intelligence/internal/core"
)

// SMTPMailer sends moderation alerts as plain-text mail.
type SMTPMailer struct {
	addr string // host:port
	auth smtp.Auth
	from string
	to   string
}

func NewSMTPMailer(addr, username, password, from, to string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{addr: addr, auth: auth, from: from, to: to}
}

func (m *SMTPMailer) SendModerationAlert(_ context.Context, alert core.ModerationAlert) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", m.to)
	fmt.Fprintf(&msg, "Subject: Review flagged: %s\r\n", alert.Reason)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "Review %s by %s was flagged.\r\n\r\n", alert.ReviewID, alert.UserName)
	fmt.Fprintf(&msg, "Reason: %s\r\n", alert.Reason)
	fmt.Fprintf(&msg, "Sentiment score: %.2f\r\n\r\n", alert.SentimentScore)
	fmt.Fprintf(&msg, "Comment:\r\n%s\r\n", alert.Comment)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{m.to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send moderation alert: %w", err)
	}
	return nil
}

// LogNotifier is the fallback sink when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) SendModerationAlert(_ context.Context, alert core.ModerationAlert) error {
	log.Printf("MODERATION ALERT: review %s by %s flagged (%s, score %.2f)",
		alert.ReviewID, alert.UserName, alert.Reason, alert.SentimentScore)
	return nil
}
