// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package gradecipher encrypts single grade values with AES-256-GCM under a
// key derived per user from a server secret.
//
// The encoded form is hex(iv) ":" hex(ciphertext) ":" hex(tag) with a
// 16-byte IV and a 16-byte tag.
package gradecipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// IVSize is the nonce length in bytes.
	IVSize = 16
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize selects AES-256.
	KeySize = 32
)

var (
	ErrConfiguration  = errors.New("grade encryption secret is not configured")
	ErrFormat         = errors.New("invalid encrypted grade format")
	ErrAuthentication = errors.New("encrypted grade failed authentication")
	ErrMissingUserID  = errors.New("user id is required")
	ErrEmptyGrade     = errors.New("grade is empty")
)

// Cipher encrypts and decrypts grades. It holds no mutable state and is
// safe for concurrent use.
type Cipher struct {
	secret SecretSource
	kdf    KeyDeriver
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithKeyDeriver replaces the default PBKDF2 key derivation.
func WithKeyDeriver(kdf KeyDeriver) Option {
	return func(c *Cipher) {
		c.kdf = kdf
	}
}

// WithIterations sets the PBKDF2 iteration count. Values below
// MinIterations are raised to it.
func WithIterations(n int) Option {
	return func(c *Cipher) {
		c.kdf = PBKDF2{Iterations: n}
	}
}

// New creates a Cipher reading its secret from source on every call.
func New(source SecretSource, opts ...Option) *Cipher {
	c := &Cipher{
		secret: source,
		kdf:    PBKDF2{Iterations: MinIterations},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the secret source currently yields a secret.
func (c *Cipher) Configured() bool {
	return c.secret != nil && c.secret() != ""
}

// Encrypt seals plaintext for userID with a fresh random IV.
func (c *Cipher) Encrypt(plaintext, userID string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyGrade
	}
	aead, err := c.aead(userID)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext) + ":" + hex.EncodeToString(tag), nil
}

// Decrypt opens an encoded grade for userID.
func (c *Cipher) Decrypt(encoded, userID string) (string, error) {
	iv, ciphertext, tag, err := parse(encoded)
	if err != nil {
		return "", err
	}
	aead, err := c.aead(userID)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether s has the shape of an encoded grade.
func IsEncrypted(s string) bool {
	_, _, _, err := parse(s)
	return err == nil
}

func (c *Cipher) aead(userID string) (cipher.AEAD, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	secret := ""
	if c.secret != nil {
		secret = c.secret()
	}
	if secret == "" {
		return nil, ErrConfiguration
	}

	key, err := c.kdf.DeriveKey(userID, secret)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: derived key has %d bytes", ErrConfiguration, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

func parse(encoded string) (iv, ciphertext, tag []byte, err error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, nil, nil, ErrFormat
	}

	if iv, err = hex.DecodeString(parts[0]); err != nil || len(iv) != IVSize {
		return nil, nil, nil, fmt.Errorf("%w: bad iv", ErrFormat)
	}
	if ciphertext, err = hex.DecodeString(parts[1]); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: bad ciphertext", ErrFormat)
	}
	if tag, err = hex.DecodeString(parts[2]); err != nil || len(tag) != TagSize {
		return nil, nil, nil, fmt.Errorf("%w: bad tag", ErrFormat)
	}
	return iv, ciphertext, tag, nil
}
