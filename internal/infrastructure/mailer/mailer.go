package mailer

import (
	"context"
	"fmt"

	"github.com/hd-notes/notes-api/internal/config"
	"go.uber.org/zap"
)

// Message is a single outbound email with a plain-text body and an HTML alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the Mailer selected by cfg.Mail.Driver.
func New(cfg *config.Config, log *zap.Logger) (Mailer, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return NewSMTP(cfg.SMTP, cfg.Mail, log)
	case "sendgrid":
		return NewSendGrid(cfg.SendGrid, cfg.Mail, log)
	case "log":
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s (supported: smtp, sendgrid, log)", cfg.Mail.Driver)
	}
}
