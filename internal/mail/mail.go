// Package mail renders and delivers the emails the API sends (currently only
// the address verification email).
//
// Delivery sits behind the Mailer interface so services never know whether
// a message went out over SMTP or into the log during local development.
package mail

import (
	"context"
	"log/slog"
)

// Message is a single outbound email. HTML is the primary body; Text is the
// plain-text alternative for clients that don't render HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a message. Implementations must respect ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer "sends" email by logging it. Used when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("email (not sent, SMTP disabled)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
