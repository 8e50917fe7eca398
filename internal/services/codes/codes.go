// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codes manages single-use verification and password reset codes.
//
// A code is issued to an email address, validated against what the user
// typed, and consumed exactly once. Reset codes gain an intermediate step:
// a verified code is exchanged for a random token, which is later redeemed
// together with the new password.
package codes

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/repository"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = time.Hour
	// TokenBytes is the number of random bytes in a reset token.
	TokenBytes = 32

	codeMin   = 100000
	codeRange = 900000
)

var (
	ErrMissingInput     = errors.New("email and code are required")
	ErrInvalidCode      = errors.New("invalid code")
	ErrAlreadyUsed      = errors.New("code has already been used")
	ErrExpired          = errors.New("code has expired")
	ErrInvalidToken     = errors.New("invalid or expired reset token")
	ErrNoPendingRequest = errors.New("no pending request for this email")
)

// Store is the persistence the manager needs. *repository.Repository
// satisfies it.
type Store interface {
	ListCodes(ctx context.Context, kind models.CodeKind, email string) ([]models.Code, error)
	LatestCode(ctx context.Context, kind models.CodeKind, email string) (*models.Code, error)
	ReplaceCode(ctx context.Context, kind models.CodeKind, email, code string, createdAt, expiresAt time.Time) (*models.Code, error)
	MarkCodeUsed(ctx context.Context, kind models.CodeKind, id int64, usedAt time.Time) (bool, error)
	AttachResetToken(ctx context.Context, id int64, token string) (bool, error)
	FindResetCodeByToken(ctx context.Context, email, token string) (*models.Code, error)
}

// Manager implements the code lifecycle on top of a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the lifetime of newly issued codes.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRandom replaces crypto/rand as the source for codes and tokens.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.random = r
	}
}

// NewManager creates a Manager.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue generates a fresh code for email and replaces any earlier ones.
// With resendOnly set, an earlier request must exist.
func (m *Manager) Issue(ctx context.Context, kind models.CodeKind, email string, resendOnly bool) (*models.Code, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrMissingInput
	}

	if resendOnly {
		if _, err := m.store.LatestCode(ctx, kind, email); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoPendingRequest
			}
			return nil, fmt.Errorf("looking up pending %s code: %w", kind, err)
		}
	}

	code, err := m.generateCode()
	if err != nil {
		return nil, err
	}

	now := m.now()
	record, err := m.store.ReplaceCode(ctx, kind, email, code, now, now.Add(m.ttl))
	if err != nil {
		return nil, fmt.Errorf("storing %s code: %w", kind, err)
	}

	slog.InfoContext(ctx, "code_issued", "kind", kind, "email", email, "resend", resendOnly)
	return record, nil
}

// ValidateCode checks a submitted code without changing any state.
// Among several unused matches the newest wins.
func (m *Manager) ValidateCode(ctx context.Context, kind models.CodeKind, email, code string) (*models.Code, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrMissingInput
	}

	records, err := m.store.ListCodes(ctx, kind, email)
	if err != nil {
		slog.ErrorContext(ctx, "code_lookup_failed", "kind", kind, "error", err)
		records = nil
	}

	var match, used *models.Code
	for i := range records {
		if records[i].Code != code {
			continue
		}
		if !records[i].Used {
			match = &records[i]
			break
		}
		if used == nil {
			used = &records[i]
		}
	}

	if match == nil {
		if used != nil {
			return nil, ErrAlreadyUsed
		}
		return nil, ErrInvalidCode
	}

	if match.Expired(m.now()) {
		return nil, ErrExpired
	}

	return match, nil
}

// ConsumeVerificationCode marks a validated verification code as used.
// It fails with ErrAlreadyUsed when another request consumed it first.
func (m *Manager) ConsumeVerificationCode(ctx context.Context, record *models.Code) error {
	ok, err := m.store.MarkCodeUsed(ctx, models.VerificationCode, record.ID, m.now())
	if err != nil {
		return fmt.Errorf("consuming verification code: %w", err)
	}
	if !ok {
		return ErrAlreadyUsed
	}
	record.Used = true
	slog.InfoContext(ctx, "email_verified", "email", record.Email)
	return nil
}

// IssueResetToken attaches a new random token to a validated reset code.
// The code stays unused until the token is redeemed.
func (m *Manager) IssueResetToken(ctx context.Context, record *models.Code) (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	token := hex.EncodeToString(buf)

	ok, err := m.store.AttachResetToken(ctx, record.ID, token)
	if err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	if !ok {
		return "", ErrAlreadyUsed
	}
	record.Token = &token
	slog.InfoContext(ctx, "reset_code_verified", "email", record.Email)
	return token, nil
}

// RedeemResetToken consumes the newest unused reset code carrying token.
// The caller updates the password after a successful redeem.
func (m *Manager) RedeemResetToken(ctx context.Context, email, token string) (*models.Code, error) {
	email = NormalizeEmail(email)
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return nil, ErrInvalidToken
	}

	record, err := m.store.FindResetCodeByToken(ctx, email, token)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.ErrorContext(ctx, "reset_token_lookup_failed", "error", err)
		}
		return nil, ErrInvalidToken
	}

	now := m.now()
	if record.Expired(now) {
		return nil, ErrExpired
	}

	ok, err := m.store.MarkCodeUsed(ctx, models.ResetCode, record.ID, now)
	if err != nil {
		return nil, fmt.Errorf("consuming reset code: %w", err)
	}
	if !ok {
		return nil, ErrInvalidToken
	}
	record.Used = true
	return record, nil
}

func (m *Manager) generateCode() (string, error) {
	n, err := rand.Int(m.random, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
