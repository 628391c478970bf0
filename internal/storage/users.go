package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/core"
)

// CreateUser inserts a new account. The email must already be normalized to
// lower case by the caller. A duplicate email leaves the existing row
// untouched and returns core.ErrDuplicateEmail.
func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash)
	if isUniqueViolation(err) {
		return core.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "email", u.Email)
	return nil
}

// GetUser returns the account for email, or core.ErrNotFound.
func (r *Repository) GetUser(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT email, name, password_hash FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.Name, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash for email.
func (r *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// CreateResetToken stores a single-use password reset token.
func (r *Repository) CreateResetToken(ctx context.Context, token, email string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token, user_email, expires_at) VALUES (?, ?, ?)`,
		token, email, expiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken deletes the token and returns the email it belongs to.
// Unknown or expired tokens return core.ErrNotFound; expired tokens are
// removed on the way out.
func (r *Repository) ConsumeResetToken(ctx context.Context, token string, now time.Time) (string, error) {
	var email string
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var expiresAt string
		err := tx.QueryRowContext(ctx,
			`SELECT user_email, expires_at FROM password_reset_tokens WHERE token = ?`, token).
			Scan(&email, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select reset token: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM password_reset_tokens WHERE token = ?`, token); err != nil {
			return fmt.Errorf("delete reset token: %w", err)
		}

		exp, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil || now.After(exp) {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return email, nil
}
