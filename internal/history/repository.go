// Package history records which songs a listener played.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one play of one song.
type Entry struct {
	ID       string    `json:"id"       example:"7f0c5b8e-9a43-4b0e-8c36-4f2a9d8f1b20"`
	UserID   string    `json:"userId"   example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	SongID   string    `json:"songId"   example:"0b7c2f0e-31c5-4d7e-a0d8-3c6f3f1f7a45"`
	PlayedAt time.Time `json:"playedAt"`
}

// Repository handles history persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new history Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Add appends a play to the user's history.
func (r *Repository) Add(ctx context.Context, userID, songID string) (*Entry, error) {
	e := &Entry{UserID: userID, SongID: songID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO history (user_id, song_id) VALUES ($1, $2) RETURNING id::text, played_at`,
		userID, songID,
	).Scan(&e.ID, &e.PlayedAt)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return e, nil
}

// ListByUser returns the user's plays, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []*Entry{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id::text, user_id::text, song_id, played_at
		 FROM history WHERE user_id = $1
		 ORDER BY played_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.SongID, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
