// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package gradecipher

import (
	"crypto/sha256"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the lowest accepted PBKDF2 iteration count.
const MinIterations = 10000

// Environment variables consulted by EnvSecret, in order.
const (
	SecretEnv       = "GRADE_ENCRYPTION_SECRET"
	LegacySecretEnv = "NEXT_PUBLIC_GRADE_ENCRYPTION_SECRET"
)

// SecretSource returns the current server secret, or "" when unset.
type SecretSource func() string

// EnvSecret reads the secret from the environment.
func EnvSecret() string {
	if s := os.Getenv(SecretEnv); s != "" {
		return s
	}
	return os.Getenv(LegacySecretEnv)
}

// StaticSecret returns a source that always yields s.
func StaticSecret(s string) SecretSource {
	return func() string { return s }
}

// FirstSecret returns the first non-empty value among sources.
func FirstSecret(sources ...SecretSource) SecretSource {
	return func() string {
		for _, src := range sources {
			if s := src(); s != "" {
				return s
			}
		}
		return ""
	}
}

// KeyDeriver turns a user id and server secret into a 32-byte key.
type KeyDeriver interface {
	DeriveKey(userID, secret string) ([]byte, error)
}

// PBKDF2 derives keys with PBKDF2-HMAC-SHA256, using the user id as the
// password and the secret as the salt.
type PBKDF2 struct {
	Iterations int
}

// DeriveKey implements KeyDeriver.
func (p PBKDF2) DeriveKey(userID, secret string) ([]byte, error) {
	iter := p.Iterations
	if iter < MinIterations {
		iter = MinIterations
	}
	return pbkdf2.Key([]byte(userID), []byte(secret), iter, KeySize, sha256.New), nil
}
