// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers verification and password reset codes.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"codeberg.org/coursemix/coursemix/internal/config"
	"codeberg.org/coursemix/coursemix/internal/i18n"
	"codeberg.org/coursemix/coursemix/internal/models"
	"github.com/wneessen/go-mail"
)

// ErrUnknownKind is returned for a code kind without an email template.
var ErrUnknownKind = errors.New("no email template for code kind")

// Sender delivers a one-time code to an address.
type Sender interface {
	SendCode(ctx context.Context, kind models.CodeKind, to, code string, ttl time.Duration) error
}

var templates = map[models.CodeKind]struct{ subject, body string }{
	models.VerificationCode: {"email_verification_subject", "email_verification_body"},
	models.ResetCode:        {"email_reset_subject", "email_reset_body"},
}

// Service sends mail via SMTP.
type Service struct {
	cfg *config.SMTPConfig
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &Service{cfg: cfg}, nil
}

// SendCode emails code to the recipient in the language of ctx.
func (s *Service) SendCode(ctx context.Context, kind models.CodeKind, to, code string, ttl time.Duration) error {
	msg, err := s.Compose(ctx, kind, to, code, ttl)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		return err
	}
	slog.Info("email_sent", "kind", kind, "to", to)
	return nil
}

// Compose builds the message for a code without sending it.
func (s *Service) Compose(ctx context.Context, kind models.CodeKind, to, code string, ttl time.Duration) (*mail.Msg, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	subject := i18n.T(ctx, tmpl.subject)
	body := i18n.TData(ctx, tmpl.body, map[string]any{
		"Code":    code,
		"Minutes": int(math.Ceil(ttl.Minutes())),
	})

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *Service) deliver(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS on 465, STARTTLS elsewhere
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// LogSender records that a code would have been sent. The code itself is
// never logged.
type LogSender struct{}

func (LogSender) SendCode(_ context.Context, kind models.CodeKind, to, _ string, ttl time.Duration) error {
	if _, ok := templates[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	slog.Warn("email_not_sent", "kind", kind, "to", to, "ttl", ttl, "reason", "smtp_disabled")
	return nil
}
