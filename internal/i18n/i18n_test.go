// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/coursemix/coursemix/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	err := i18n.Init()
	require.NoError(t, err)
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "Invalid verification code", i18n.T(ctx, "error_invalid_code"))
}

func TestT_French(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.French)

	assert.Equal(t, "Code de vérification invalide", i18n.T(ctx, "error_invalid_code"))
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	assert.Equal(t, "Invalid or expired reset token", i18n.T(context.Background(), "error_invalid_token"))
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "email_verification_body", map[string]any{"Code": "482913", "Minutes": 60})
	assert.Contains(t, result, "482913")
	assert.Contains(t, result, "60 minutes")
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	require.NoError(t, i18n.Init())

	en := i18n.WithLocale(context.Background(), language.English)
	fr := i18n.WithLocale(context.Background(), language.French)

	for _, id := range []string{
		"error_code_used", "error_code_expired", "error_password_length",
		"msg_email_verified", "msg_password_reset", "email_reset_subject",
	} {
		assert.NotEqual(t, id, i18n.T(en, id), "missing English %s", id)
		assert.NotEqual(t, id, i18n.T(fr, id), "missing French %s", id)
		assert.NotEqual(t, i18n.T(en, id), i18n.T(fr, id), "untranslated %s", id)
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.French, "fr"},
		{language.French, "fr-CA"},
		{language.English, "de"},
		{language.English, ""},
		{language.English, "not a header;;"},
		{language.French, "fr-CA, en;q=0.9"},
		{language.English, "en-CA, fr;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			assert.Equal(t, tt.expected, i18n.MatchLanguage(tt.acceptLanguage))
		})
	}
}

func TestWithLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.French)

	assert.Equal(t, "fr", i18n.GetLocale(ctx))
}

func TestGetLocale_Default(t *testing.T) {
	assert.Equal(t, "en", i18n.GetLocale(context.Background()))
}
