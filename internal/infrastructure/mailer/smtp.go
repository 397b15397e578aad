package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/hd-notes/notes-api/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type smtpMailer struct {
	client   *mail.Client
	fromName string
	fromAddr string
	log      *zap.Logger
}

// NewSMTP creates a Mailer that delivers through an SMTP relay.
func NewSMTP(cfg config.SMTPConfig, from config.MailConfig, log *zap.Logger) (Mailer, error) {
	if from.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "tls", "starttls":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	log.Info("smtp mailer initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption))

	return &smtpMailer{client: client, fromName: from.FromName, fromAddr: from.FromAddress, log: log}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	message, err := buildMsg(m.fromName, m.fromAddr, msg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.client.DialAndSendWithContext(ctx, message); err != nil {
		m.log.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", time.Since(start)))
		return fmt.Errorf("smtp send: %w", err)
	}
	m.log.Info("email sent", zap.Duration("send_duration", time.Since(start)))
	return nil
}

// buildMsg assembles a multipart/alternative message.
func buildMsg(fromName, fromAddr string, msg Message) (*mail.Msg, error) {
	message := mail.NewMsg()
	if err := message.FromFormat(fromName, fromAddr); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(msg.To); err != nil {
		return nil, fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(msg.Subject)
	message.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		message.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return message, nil
}
