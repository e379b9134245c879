package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig carries relay coordinates.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends multipart magic-link mails through an authenticated
// STARTTLS relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = "noreply@poltr.info"
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendLoginLink(ctx context.Context, email, link string) error {
	return s.send(email, "Your Magic Link! - POLTR", "Login to POLTR", link, "15 minutes")
}

func (s *SMTPSender) SendRegistrationLink(ctx context.Context, email, link string) error {
	return s.send(email, "Confirm your registration - POLTR", "Confirm your account", link, "30 minutes")
}

func (s *SMTPSender) send(to, subject, action, link, expiry string) error {
	msg := buildMessage(s.cfg.From, to, subject, action, link, expiry)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

const mimeBoundary = "poltr-mail-boundary"

func buildMessage(from, to, subject, action, link, expiry string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\nClick the link below to %s:\r\n%s\r\n\r\n", subject, strings.ToLower(action), link)
	fmt.Fprintf(&b, "This link will expire in %s.\r\n", expiry)
	b.WriteString("If you didn't request this, you can safely ignore this email.\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "<html><body><h2>%s</h2>", subject)
	fmt.Fprintf(&b, "<p>Click the button below to %s:</p>", strings.ToLower(action))
	fmt.Fprintf(&b, `<p><a href=%q style="background-color: #0085ff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">%s</a></p>`, link, action)
	fmt.Fprintf(&b, "<p>Or copy and paste this link in your browser:</p><p>%s</p>", link)
	fmt.Fprintf(&b, "<p>This link will expire in %s.</p>", expiry)
	b.WriteString("<p>If you didn't request this, you can safely ignore this email.</p></body></html>\r\n\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}
