// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"coursemix.ca", false},
		{"192.168.1.1", false},
		{"localhost.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "plain HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "plain HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost:8080",
		},
		{
			name: "manual TLS custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "coursemix.ca", Port: 8443},
				TLS:    TLSConfig{Mode: "manual"},
			},
			expected: "https://coursemix.ca:8443",
		},
		{
			name: "ACME mode forces port 443",
			cfg: &Config{
				Server: ServerConfig{Host: "coursemix.ca", Port: 8080},
				TLS:    TLSConfig{Mode: "acme"},
			},
			expected: "https://coursemix.ca",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Grades: GradesConfig{Iterations: 1000}}

	applyDefaults(cfg)

	assert.Equal(t, MinGradeIterations, cfg.Grades.Iterations)
	assert.Equal(t, time.Hour, cfg.Codes.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Codes.SendWindow)
}

func TestSMTPConfigEnabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.True(t, SMTPConfig{Host: "smtp.brocku.ca"}.Enabled())
}

func TestFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range Flags() {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "database-dsn", "tls-mode", "session-cookie-name",
		"smtp-host", "grade-encryption-secret", "grade-kdf-iterations",
		"code-ttl", "code-send-limit", "redis-url",
	} {
		assert.True(t, flagNames[name], "missing flag %s", name)
	}
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestNewFromCLI(t *testing.T) {
	unsetEnv(t, "GRADE_ENCRYPTION_SECRET")
	unsetEnv(t, "NEXT_PUBLIC_GRADE_ENCRYPTION_SECRET")
	unsetEnv(t, "REDIS_URL")
	unsetEnv(t, "SMTP_HOST")

	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "_coursemix", cfg.Session.CookieName)
			assert.Equal(t, MinGradeIterations, cfg.Grades.Iterations)
			assert.Equal(t, time.Hour, cfg.Codes.TTL)
			assert.Equal(t, 5, cfg.Codes.SendLimit)
			assert.False(t, cfg.SMTP.Enabled())
			assert.Empty(t, cfg.Redis.URL)

			return nil
		},
	}

	require.NoError(t, app.Run(context.Background(), []string{"test"}))
}

func TestNewFromCLI_GradeSecretFallback(t *testing.T) {
	unsetEnv(t, "GRADE_ENCRYPTION_SECRET")
	t.Setenv("NEXT_PUBLIC_GRADE_ENCRYPTION_SECRET", "legacy-secret")

	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)
			assert.Equal(t, "legacy-secret", cfg.Grades.Secret)
			return nil
		},
	}

	require.NoError(t, app.Run(context.Background(), []string{"test"}))
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)
			assert.Equal(t, "s3cret", cfg.Grades.Secret)
			assert.Equal(t, 20000, cfg.Grades.Iterations)
			assert.Equal(t, 30*time.Minute, cfg.Codes.TTL)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--log-level", "debug",
		"--database-dsn", "./data/test.db",
		"--grade-encryption-secret", "s3cret",
		"--grade-kdf-iterations", "20000",
		"--code-ttl", "30m",
	}
	require.NoError(t, app.Run(context.Background(), args))
}
