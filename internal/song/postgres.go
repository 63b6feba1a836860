package song

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const songColumns = `id::text, title, artist, audio_url, image_url, audio_public_id, image_public_id, created_at, updated_at`

// PostgresStore keeps songs in the songs table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// ValidID accepts canonical UUIDs.
func (r *PostgresStore) ValidID(id string) bool {
	return validUUID(id)
}

// Insert creates a song row and returns it.
func (r *PostgresStore) Insert(ctx context.Context, s *Song) (*Song, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO songs (title, artist, audio_url, image_url, audio_public_id, image_public_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+songColumns,
		s.Title, s.Artist, s.AudioURL, s.ImageURL, s.AudioPublicID, s.ImagePublicID,
	)
	created, err := scanSong(row)
	if err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}
	return created, nil
}

// FindByID fetches a song by its UUID.
func (r *PostgresStore) FindByID(ctx context.Context, id string) (*Song, error) {
	s, err := scanSong(r.db.QueryRow(ctx, `SELECT `+songColumns+` FROM songs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get song by id: %w", err)
	}
	return s, nil
}

// UpdateByID sets the provided fields and bumps updated_at.
func (r *PostgresStore) UpdateByID(ctx context.Context, id string, c Changes) (*Song, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if c.Title != nil {
		args = append(args, *c.Title)
		sets = append(sets, "title = $"+strconv.Itoa(len(args)))
	}
	if c.Artist != nil {
		args = append(args, *c.Artist)
		sets = append(sets, "artist = $"+strconv.Itoa(len(args)))
	}

	s, err := scanSong(r.db.QueryRow(ctx,
		`UPDATE songs SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+songColumns,
		args...,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update song: %w", err)
	}
	return s, nil
}

// DeleteByID removes the song row.
func (r *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns songs ordered by creation time, newest first.
func (r *PostgresStore) List(ctx context.Context, limit int) ([]*Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	songs := make([]*Song, 0)
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return songs, nil
}

func scanSong(row pgx.Row) (*Song, error) {
	s := &Song{}
	err := row.Scan(&s.ID, &s.Title, &s.Artist, &s.AudioURL, &s.ImageURL,
		&s.AudioPublicID, &s.ImagePublicID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func validUUID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}
