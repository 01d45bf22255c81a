package notify

import (
	"context"
	"log/slog"
)

// LogNotifier records messages in the log instead of sending them. It is the
// default when no mail backend is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	slog.Info("email not sent, no mail backend configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}
