package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sdmusic/service/internal/song"
)

// resolveConcurrency bounds parallel song lookups for one playlist.
const resolveConcurrency = 8

// Store is the persistence contract the Service depends on.
type Store interface {
	Create(ctx context.Context, name, createdBy string, songIDs []string) (*Playlist, error)
	GetByID(ctx context.Context, id string) (*Playlist, error)
	List(ctx context.Context) ([]*Playlist, error)
}

// Songs resolves song ids to records.
type Songs interface {
	ValidID(id string) bool
	Get(ctx context.Context, id string) (*song.Song, error)
}

// Service contains playlist business logic.
type Service struct {
	repo  Store
	songs Songs
}

// NewService creates a new playlist Service.
func NewService(repo Store, songs Songs) *Service {
	return &Service{repo: repo, songs: songs}
}

// Create stores a playlist. Duplicate song ids keep their first position.
func (s *Service) Create(ctx context.Context, name, createdBy string, songIDs []string) (*Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	seen := make(map[string]bool, len(songIDs))
	ids := make([]string, 0, len(songIDs))
	for _, id := range songIDs {
		if !s.songs.ValidID(id) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSong, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return s.repo.Create(ctx, name, createdBy, ids)
}

// List returns every playlist, newest first.
func (s *Service) List(ctx context.Context) ([]*Playlist, error) {
	return s.repo.List(ctx)
}

// Songs returns the playlist's songs in order. Songs deleted since the
// playlist was built are skipped.
func (s *Service) Songs(ctx context.Context, playlistID string) ([]*song.Song, error) {
	if _, err := uuid.Parse(playlistID); err != nil {
		return nil, ErrInvalidID
	}
	p, err := s.repo.GetByID(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	resolved := make([]*song.Song, len(p.SongIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range p.SongIDs {
		i, id := i, id
		g.Go(func() error {
			found, err := s.songs.Get(gctx, id)
			if errors.Is(err, song.ErrNotFound) || errors.Is(err, song.ErrInvalidID) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve song %s: %w", id, err)
			}
			resolved[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	songs := make([]*song.Song, 0, len(resolved))
	for _, found := range resolved {
		if found != nil {
			songs = append(songs, found)
		}
	}
	return songs, nil
}
