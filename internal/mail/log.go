package mail

import (
	"context"
	"log/slog"
)

// LogSender prints magic links instead of mailing them. Used when no SMTP
// relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendLoginLink(ctx context.Context, email, link string) error {
	s.logger.Info("magic link (dev mode, not mailed)", "purpose", "login", "email", email, "link", link)
	return nil
}

func (s *LogSender) SendRegistrationLink(ctx context.Context, email, link string) error {
	s.logger.Info("magic link (dev mode, not mailed)", "purpose", "registration", "email", email, "link", link)
	return nil
}
