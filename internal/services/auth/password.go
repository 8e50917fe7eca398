// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// bcrypt rejects input longer than 72 bytes.
const maxPasswordBytes = 72

// PasswordValidator validates passwords against length limits.
type PasswordValidator struct {
	MinLength int
	MaxBytes  int
}

// DefaultPasswordValidator returns the validator used for registration and resets.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		MinLength: MinPasswordLength,
		MaxBytes:  maxPasswordBytes,
	}
}

// ValidationError represents a single password validation error
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError wraps multiple validation errors
type PasswordValidationError struct {
	Errors []ValidationError
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Is lets errors.Is(err, ErrWeakPassword) match any validation failure.
func (e *PasswordValidationError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Codes returns the machine-readable codes of all failures.
func (e *PasswordValidationError) Codes() []string {
	codes := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		codes[i] = err.Code
	}
	return codes
}

// ValidationResult holds all validation errors
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Err returns nil for a valid result and a *PasswordValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &PasswordValidationError{Errors: r.Errors}
}

// Validate checks a password against the configured limits.
func (v *PasswordValidator) Validate(password string) ValidationResult {
	var errors []ValidationError

	if utf8.RuneCountInString(password) < v.MinLength {
		errors = append(errors, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		})
	}

	if v.MaxBytes > 0 && len(password) > v.MaxBytes {
		errors = append(errors, ValidationError{
			Code:    "max_length",
			Message: fmt.Sprintf("Password must be at most %d bytes long.", v.MaxBytes),
		})
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}
