// Package mail delivers customer notifications. The transport is chosen by
// configuration: an SMTP relay, a RabbitMQ exchange drained by a notification
// worker, or the log for local development.
package mail

import (
	"context"
	"log/slog"

	"github.com/eaglebank/platform/shared/config"
)

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the payload relayed over AMQP.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LogMailer writes messages to the logger instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "mail not delivered, log transport", "to", to, "subject", subject)
	m.logger.DebugContext(ctx, "mail body", "to", to, "body", body)
	return nil
}

// New builds the mailer selected by cfg.MailTransport. The returned close
// function releases transport resources and is always safe to call.
func New(cfg config.Config, logger *slog.Logger) (Mailer, func()) {
	switch cfg.MailTransport {
	case "smtp":
		return NewSMTPMailer(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}), func() {}
	case "amqp":
		mailer, err := DialAMQP(cfg.RabbitMQURL, cfg.MailExchange, cfg.MailFrom)
		if err != nil {
			logger.Warn("failed to connect to rabbitmq, falling back to log mailer", "error", err)
			return NewLogMailer(logger), func() {}
		}
		return mailer, mailer.Close
	default:
		return NewLogMailer(logger), func() {}
	}
}
