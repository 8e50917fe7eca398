// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/coursemix/coursemix/internal/models"
	"github.com/vinovest/sqlx"
)

// ErrUnknownCodeKind is returned for a code kind without a backing table.
var ErrUnknownCodeKind = errors.New("unknown code kind")

func codeTable(kind models.CodeKind) (string, error) {
	table := kind.Table()
	if table == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCodeKind, kind)
	}
	return table, nil
}

// ListCodes returns every code issued to email, newest first.
func (r *Repository) ListCodes(ctx context.Context, kind models.CodeKind, email string) ([]models.Code, error) {
	table, err := codeTable(kind)
	if err != nil {
		return nil, err
	}

	var codes []models.Code
	query := `SELECT * FROM ` + table + ` WHERE email = ? ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &codes, query, email); err != nil {
		return nil, err
	}
	return codes, nil
}

// LatestCode returns the most recent code issued to email.
func (r *Repository) LatestCode(ctx context.Context, kind models.CodeKind, email string) (*models.Code, error) {
	table, err := codeTable(kind)
	if err != nil {
		return nil, err
	}

	var code models.Code
	query := `SELECT * FROM ` + table + ` WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &code, query, email); err != nil {
		return nil, wrapError(err)
	}
	return &code, nil
}

// ReplaceCode removes all codes for email and stores a new one, atomically.
func (r *Repository) ReplaceCode(ctx context.Context, kind models.CodeKind, email, code string, createdAt, expiresAt time.Time) (*models.Code, error) {
	table, err := codeTable(kind)
	if err != nil {
		return nil, err
	}

	record := &models.Code{
		Email:     email,
		Code:      code,
		CreatedAt: createdAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}

	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE email = ?`, email); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (email, code, used, created_at, expires_at) VALUES (?, ?, 0, ?, ?)`,
			record.Email, record.Code, record.CreatedAt, record.ExpiresAt)
		if err != nil {
			return err
		}
		record.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MarkCodeUsed flips used from false to true. It reports false when the
// code was already used or does not exist.
func (r *Repository) MarkCodeUsed(ctx context.Context, kind models.CodeKind, id int64, usedAt time.Time) (bool, error) {
	table, err := codeTable(kind)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET used = 1, used_at = ? WHERE id = ? AND used = 0`,
		usedAt.UTC(), id)
	if err != nil {
		return false, err
	}
	return affectedOne(res.RowsAffected())
}

// AttachResetToken stores token on an unused reset code. Any earlier token
// on the same code is overwritten.
func (r *Repository) AttachResetToken(ctx context.Context, id int64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reset_codes SET token = ? WHERE id = ? AND used = 0`,
		token, id)
	if err != nil {
		return false, err
	}
	return affectedOne(res.RowsAffected())
}

// FindResetCodeByToken returns the newest unused reset code for email
// carrying token.
func (r *Repository) FindResetCodeByToken(ctx context.Context, email, token string) (*models.Code, error) {
	var code models.Code
	err := r.db.GetContext(ctx, &code,
		`SELECT * FROM reset_codes WHERE email = ? AND token = ? AND used = 0 ORDER BY created_at DESC, id DESC LIMIT 1`,
		email, token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &code, nil
}

// HasUsedCode reports whether email has a consumed code of the given kind.
func (r *Repository) HasUsedCode(ctx context.Context, kind models.CodeKind, email string) (bool, error) {
	table, err := codeTable(kind)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE email = ? AND used = 1)`, email)
	return exists, err
}

func affectedOne(n int64, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
