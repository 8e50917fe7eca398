// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth is the credential store: account creation, login and
// password replacement on top of the users table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/repository"
	"codeberg.org/coursemix/coursemix/internal/services/codes"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrNotVerified        = errors.New("email has not been verified")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo              *repository.Repository
	passwordValidator *PasswordValidator
	cost              int
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo *repository.Repository, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		passwordValidator: DefaultPasswordValidator(),
		cost:              bcrypt.DefaultCost,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidatePassword returns ErrWeakPassword-matching errors for unacceptable passwords.
func (s *Service) ValidatePassword(password string) error {
	return s.passwordValidator.Validate(password).Err()
}

// UserExists reports whether an account is registered for email.
func (s *Service) UserExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.repo.UserExists(ctx, codes.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}
	return exists, nil
}

// FindUser returns the account registered for email.
func (s *Service) FindUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, codes.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Register creates an account for an email whose verification code has
// been consumed.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = codes.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if err := s.ValidatePassword(password); err != nil {
		return nil, err
	}

	verified, err := s.repo.HasUsedCode(ctx, models.VerificationCode, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check verification: %w", err)
	}
	if !verified {
		return nil, ErrNotVerified
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, string(passwordHash), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", email)

	return user, nil
}

// Login authenticates a user and returns the user if successful
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = codes.NormalizeEmail(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// SetPassword replaces the password of a user.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	if err := s.ValidatePassword(password); err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, string(passwordHash), s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password_reset", "user_id", userID)
	return nil
}
