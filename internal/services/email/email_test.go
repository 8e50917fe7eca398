// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"codeberg.org/coursemix/coursemix/internal/config"
	"codeberg.org/coursemix/coursemix/internal/i18n"
	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.brocku.ca",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@coursemix.ca",
		FromName: "CourseMix",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig())

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func render(t *testing.T, svc *email.Service, ctx context.Context, kind models.CodeKind) string {
	t.Helper()
	msg, err := svc.Compose(ctx, kind, "student@brocku.ca", "482913", time.Hour)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestCompose_Verification(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := email.NewService(validSMTPConfig())
	require.NoError(t, err)

	raw := render(t, svc, context.Background(), models.VerificationCode)

	assert.Contains(t, raw, "Subject: Your CourseMix verification code")
	assert.Contains(t, raw, "student@brocku.ca")
	assert.Contains(t, raw, "noreply@coursemix.ca")
	assert.Contains(t, raw, "482913")
	assert.Contains(t, raw, "60 minutes")
}

func TestCompose_ResetFrench(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := email.NewService(validSMTPConfig())
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), language.French)
	raw := render(t, svc, ctx, models.ResetCode)

	assert.Contains(t, raw, "482913")
	assert.Contains(t, raw, "60 minutes")
}

func TestCompose_UnknownKind(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig())
	require.NoError(t, err)

	_, err = svc.Compose(context.Background(), models.CodeKind("invite"), "student@brocku.ca", "1", time.Hour)

	require.ErrorIs(t, err, email.ErrUnknownKind)
}

func TestCompose_InvalidRecipient(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig())
	require.NoError(t, err)

	_, err = svc.Compose(context.Background(), models.VerificationCode, "not an address", "1", time.Hour)

	require.Error(t, err)
}

func TestLogSender_NeverLogsCode(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	err := email.LogSender{}.SendCode(context.Background(), models.ResetCode, "user@brocku.ca", "001122", time.Hour)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "user@brocku.ca")
	assert.NotContains(t, buf.String(), "001122")
}
