package mailer

import (
	"context"

	"go.uber.org/zap"
)

type logMailer struct {
	log *zap.Logger
}

// NewLog returns a Mailer that writes messages to the log instead of sending them.
// Config validation only allows it in development.
func NewLog(log *zap.Logger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("email (not sent)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text))
	return nil
}
