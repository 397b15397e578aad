package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

const brand = "HD Notes"

type codeEmail struct {
	Brand   string
	Heading string
	Intro   string
	Code    string
	Minutes int
}

// CodeSender renders one-time code emails and hands them to a Mailer.
type CodeSender struct {
	mailer Mailer
	ttl    time.Duration
	html   *htmlTemplate.Template
	text   *textTemplate.Template
}

// NewCodeSender parses the embedded templates. ttl is only used for the expiry notice.
func NewCodeSender(m Mailer, ttl time.Duration) (*CodeSender, error) {
	html, err := htmlTemplate.ParseFS(templateFS, "templates/otp.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML templates: %w", err)
	}
	text, err := textTemplate.ParseFS(templateFS, "templates/otp.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	return &CodeSender{mailer: m, ttl: ttl, html: html, text: text}, nil
}

// SendCode delivers code to the given address.
func (s *CodeSender) SendCode(ctx context.Context, to, code string, purpose domain.Purpose) error {
	msg, err := s.render(to, code, purpose)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

func (s *CodeSender) render(to, code string, purpose domain.Purpose) (Message, error) {
	data := codeEmail{
		Brand:   brand,
		Heading: "Email Verification",
		Intro:   "Your OTP for email verification is:",
		Code:    code,
		Minutes: int(s.ttl.Round(time.Minute) / time.Minute),
	}
	subject := "Your OTP for HD Notes Verification"
	if purpose == domain.PurposeLogin {
		data.Heading = "Sign In"
		data.Intro = "Your OTP to sign in is:"
		subject = "Your OTP for HD Notes Sign In"
	}

	var html, text bytes.Buffer
	if err := s.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := s.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
