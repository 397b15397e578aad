package mailer

import (
	"context"
	"fmt"

	"github.com/hd-notes/notes-api/internal/config"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// sendClient is the part of *sendgrid.Client the mailer needs.
type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type sendGridMailer struct {
	client   sendClient
	fromName string
	fromAddr string
	log      *zap.Logger
}

// NewSendGrid creates a Mailer backed by the SendGrid v3 API.
func NewSendGrid(cfg config.SendGridConfig, from config.MailConfig, log *zap.Logger) (Mailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY is required")
	}
	if from.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}
	return &sendGridMailer{
		client:   sendgrid.NewSendClient(cfg.APIKey),
		fromName: from.FromName,
		fromAddr: from.FromAddress,
		log:      log,
	}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.fromName, m.fromAddr),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		m.log.Warn("sendgrid send failed", zap.Error(err))
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		m.log.Warn("sendgrid rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body))
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	m.log.Info("email sent", zap.Int("status", resp.StatusCode))
	return nil
}
