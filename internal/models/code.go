// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// CodeKind selects which code table a record lives in.
type CodeKind string

const (
	VerificationCode CodeKind = "verification"
	ResetCode        CodeKind = "reset"
)

// Table returns the table backing the kind, or "" for an unknown kind.
func (k CodeKind) Table() string {
	switch k {
	case VerificationCode:
		return "verification_codes"
	case ResetCode:
		return "reset_codes"
	default:
		return ""
	}
}

// Code is a single-use, time-boxed code sent to an email address.
// Token is only set on reset codes once the code itself has been verified.
type Code struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Code      string     `db:"code" json:"-"`
	Used      bool       `db:"used" json:"used"`
	Token     *string    `db:"token" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
}

// Expired reports whether the code expired before now.
func (c *Code) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
