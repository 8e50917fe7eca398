// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session_test

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/coursemix/coursemix/internal/config"
	"codeberg.org/coursemix/coursemix/internal/services/session"
	"codeberg.org/coursemix/coursemix/internal/testutil"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	blockKey = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"

	studentID    = "5f0c7a43-3f6e-4a43-9d0e-2b8a4c1d7e11"
	studentEmail = "student@brocku.ca"
)

var loginAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sessionConfig(block string) *config.SessionConfig {
	return &config.SessionConfig{
		CookieName: "coursemix_session",
		MaxAge:     int((8 * time.Hour).Seconds()),
		HashKey:    hashKey,
		BlockKey:   block,
	}
}

func newManager(t *testing.T, cfg *config.SessionConfig, clock *testutil.Clock) *session.Manager {
	t.Helper()
	mgr, err := session.NewManager(cfg, false, session.WithClock(clock.Now))
	require.NoError(t, err)
	return mgr
}

func requestWith(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/grades", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

// encode signs data with hashKey the way another instance would.
func encode(t *testing.T, data session.Data) string {
	t.Helper()
	key, err := hex.DecodeString(hashKey)
	require.NoError(t, err)
	codec := securecookie.New(key, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	value, err := codec.Encode("coursemix_session", data)
	require.NoError(t, err)
	return value
}

func TestNewManager_Keys(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		block   string
		wantErr string
	}{
		{name: "hash only", hash: hashKey},
		{name: "hash and block", hash: hashKey, block: blockKey},
		{name: "generated hash", hash: ""},
		{name: "hash not hex", hash: "not-hex", wantErr: "invalid session hash key"},
		{name: "hash too short", hash: "0123456789abcdef", wantErr: "must be 32 bytes, got 8"},
		{name: "block not hex", hash: hashKey, block: "zz", wantErr: "invalid session block key"},
		{name: "block too short", hash: hashKey, block: "0123456789abcdef", wantErr: "must be 32 bytes, got 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sessionConfig(tt.block)
			cfg.HashKey = tt.hash

			mgr, err := session.NewManager(cfg, false)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, mgr)
		})
	}
}

func TestCookieAttributes(t *testing.T) {
	for _, secure := range []bool{false, true} {
		mgr, err := session.NewManager(sessionConfig(""), secure)
		require.NoError(t, err)

		login, err := mgr.Create(studentID, studentEmail)
		require.NoError(t, err)
		logout := mgr.Clear()

		for _, c := range []*http.Cookie{login, logout} {
			assert.Equal(t, "coursemix_session", c.Name)
			assert.Equal(t, "/", c.Path)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, secure, c.Secure)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		}
		assert.Equal(t, 8*60*60, login.MaxAge)
		assert.NotEmpty(t, login.Value)
		assert.Equal(t, -1, logout.MaxAge)
		assert.Empty(t, logout.Value)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	for name, block := range map[string]string{"signed": "", "encrypted": blockKey} {
		t.Run(name, func(t *testing.T) {
			clock := testutil.NewClock(loginAt)
			mgr := newManager(t, sessionConfig(block), clock)

			cookie, err := mgr.Create(studentID, studentEmail)
			require.NoError(t, err)
			if block != "" {
				assert.NotContains(t, cookie.Value, "student")
			}

			clock.Advance(7 * time.Hour)
			data, err := mgr.Parse(requestWith(cookie))

			require.NoError(t, err)
			require.NotNil(t, data)
			assert.Equal(t, studentID, data.UserID)
			assert.Equal(t, studentEmail, data.Email)
			assert.True(t, data.ExpiresAt.Equal(loginAt.Add(8*time.Hour)))
		})
	}
}

func TestParse_RejectedCookies(t *testing.T) {
	tests := []struct {
		name   string
		cookie func(t *testing.T, mgr *session.Manager, clock *testutil.Clock) *http.Cookie
	}{
		{
			name: "no cookie",
			cookie: func(*testing.T, *session.Manager, *testutil.Clock) *http.Cookie {
				return nil
			},
		},
		{
			name: "garbage",
			cookie: func(*testing.T, *session.Manager, *testutil.Clock) *http.Cookie {
				return &http.Cookie{Name: "coursemix_session", Value: "garbage"}
			},
		},
		{
			name: "tampered",
			cookie: func(t *testing.T, mgr *session.Manager, _ *testutil.Clock) *http.Cookie {
				c, err := mgr.Create(studentID, studentEmail)
				require.NoError(t, err)
				c.Value = c.Value[:len(c.Value)-5] + "XXXXX"
				return c
			},
		},
		{
			name: "signed with another key",
			cookie: func(t *testing.T, _ *session.Manager, _ *testutil.Clock) *http.Cookie {
				cfg := sessionConfig("")
				cfg.HashKey = blockKey
				other, err := session.NewManager(cfg, false)
				require.NoError(t, err)
				c, err := other.Create(studentID, studentEmail)
				require.NoError(t, err)
				return c
			},
		},
		{
			name: "expired",
			cookie: func(t *testing.T, mgr *session.Manager, clock *testutil.Clock) *http.Cookie {
				c, err := mgr.Create(studentID, studentEmail)
				require.NoError(t, err)
				clock.Advance(8 * time.Hour)
				return c
			},
		},
		{
			name: "no user",
			cookie: func(t *testing.T, _ *session.Manager, _ *testutil.Clock) *http.Cookie {
				return &http.Cookie{
					Name:  "coursemix_session",
					Value: encode(t, session.Data{Email: studentEmail, ExpiresAt: loginAt.Add(time.Hour)}),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := testutil.NewClock(loginAt)
			mgr := newManager(t, sessionConfig(""), clock)

			data, err := mgr.Parse(requestWith(tt.cookie(t, mgr, clock)))

			require.NoError(t, err)
			assert.Nil(t, data)
		})
	}
}

func TestParse_SharedHashKey(t *testing.T) {
	clock := testutil.NewClock(loginAt)
	mgr := newManager(t, sessionConfig(""), clock)
	value := encode(t, session.Data{UserID: studentID, Email: studentEmail, ExpiresAt: loginAt.Add(time.Minute)})

	data, err := mgr.Parse(requestWith(&http.Cookie{Name: "coursemix_session", Value: value}))

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, studentID, data.UserID)
}
