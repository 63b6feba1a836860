// Package playlist groups songs into named, ordered lists.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a playlist does not exist.
	ErrNotFound = errors.New("playlist not found")
	// ErrInvalidID is returned for malformed playlist ids.
	ErrInvalidID = errors.New("invalid playlist id")
	// ErrInvalidName is returned when a playlist name is blank.
	ErrInvalidName = errors.New("playlist name is required")
	// ErrInvalidSong is returned when a song id is malformed.
	ErrInvalidSong = errors.New("invalid song id")
)

// Playlist is a named, ordered list of song ids.
type Playlist struct {
	ID        string    `json:"id"        example:"3b1f7d2e-7a57-4a8e-9d2b-6c1f0c2f4b11"`
	Name      string    `json:"name"      example:"Morning run"`
	SongIDs   []string  `json:"songs"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const playlistSelect = `SELECT p.id::text, p.name, COALESCE(p.created_by::text, ''), p.created_at,
	COALESCE(array_agg(ps.song_id ORDER BY ps.position) FILTER (WHERE ps.song_id IS NOT NULL), '{}')
	FROM playlists p
	LEFT JOIN playlist_songs ps ON ps.playlist_id = p.id`

// Repository handles playlist persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new playlist Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts the playlist and its song positions in one transaction.
func (r *Repository) Create(ctx context.Context, name, createdBy string, songIDs []string) (*Playlist, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p := &Playlist{Name: name, CreatedBy: createdBy, SongIDs: songIDs}
	err = tx.QueryRow(ctx,
		`INSERT INTO playlists (name, created_by) VALUES ($1, NULLIF($2, '')::uuid)
		 RETURNING id::text, created_at`,
		name, createdBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert playlist: %w", err)
	}

	for i, songID := range songIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES ($1, $2, $3)`,
			p.ID, songID, i,
		); err != nil {
			return nil, fmt.Errorf("insert playlist song: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit playlist: %w", err)
	}
	return p, nil
}

// GetByID returns a playlist with its songs in order.
func (r *Repository) GetByID(ctx context.Context, id string) (*Playlist, error) {
	p, err := scanPlaylist(r.db.QueryRow(ctx,
		playlistSelect+` WHERE p.id = $1 GROUP BY p.id`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	return p, nil
}

// List returns all playlists, newest first.
func (r *Repository) List(ctx context.Context) ([]*Playlist, error) {
	rows, err := r.db.Query(ctx, playlistSelect+` GROUP BY p.id ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

func scanPlaylist(row pgx.Row) (*Playlist, error) {
	p := &Playlist{}
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt, &p.SongIDs); err != nil {
		return nil, err
	}
	return p, nil
}
