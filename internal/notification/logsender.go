package notification

import (
	"context"
	"log/slog"

	"github.com/jkaninda/samsara/internal/domain"
)

// LogSender writes messages to the structured log. Useful as a default
// channel and in tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Type() string { return TypeLog }

func (s *LogSender) Send(ctx context.Context, ch *domain.NotificationChannel, msg *Message) error {
	attrs := []any{
		slog.String("channel", ch.Name),
		slog.String("kind", msg.Kind),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	}
	for k, v := range msg.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	s.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
