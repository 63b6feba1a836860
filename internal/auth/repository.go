// Package auth handles email/password authentication, password resets and
// the admin checks guarding destructive operations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResetToken is the stored form of a password reset record.
type ResetToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Repository handles reset token persistence and password updates.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertResetToken invalidates all active reset tokens for the user and inserts a fresh one.
func (r *Repository) UpsertResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`UPDATE password_resets SET used_at = NOW()
		 WHERE user_id = $1 AND used_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("invalidate old reset tokens: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return tx.Commit(ctx)
}

// GetActiveResetToken returns the unused, non-expired reset record matching tokenHash.
func (r *Repository) GetActiveResetToken(ctx context.Context, tokenHash string) (*ResetToken, error) {
	t := &ResetToken{}
	err := r.db.QueryRow(ctx,
		`SELECT id::text, user_id::text, expires_at, used_at, created_at
		 FROM password_resets
		 WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		 ORDER BY created_at DESC
		 LIMIT 1`,
		tokenHash,
	).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("get active reset token: %w", err)
	}
	return t, nil
}

// ConsumeResetToken marks the reset record used and stores the new password
// hash in one transaction.
func (r *Repository) ConsumeResetToken(ctx context.Context, id, userID, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE password_resets SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidResetToken
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return tx.Commit(ctx)
}
