package history

import (
	"context"
	"errors"

	"github.com/sdmusic/service/internal/song"
)

const (
	// DefaultLimit is the page size when the caller does not ask for one.
	DefaultLimit = 50
	// MaxLimit caps a single listing.
	MaxLimit = 200
)

// ErrForbidden is returned when a caller reads someone else's history.
var ErrForbidden = errors.New("forbidden")

// Store persists history entries.
type Store interface {
	Add(ctx context.Context, userID, songID string) (*Entry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error)
}

// Songs confirms that a played song exists.
type Songs interface {
	Get(ctx context.Context, id string) (*song.Song, error)
}

// Service contains listening-history business logic.
type Service struct {
	repo  Store
	songs Songs
}

// NewService creates a new history Service.
func NewService(repo Store, songs Songs) *Service {
	return &Service{repo: repo, songs: songs}
}

// Record stores a play for userID. The song must exist; song.ErrInvalidID and
// song.ErrNotFound pass through.
func (s *Service) Record(ctx context.Context, userID, songID string) (*Entry, error) {
	if _, err := s.songs.Get(ctx, songID); err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, userID, songID)
}

// List returns ownerID's history to a caller, who must be the owner or an admin.
func (s *Service) List(ctx context.Context, callerID string, callerIsAdmin bool, ownerID string, limit int) ([]*Entry, error) {
	if callerID != ownerID && !callerIsAdmin {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.repo.ListByUser(ctx, ownerID, limit)
}
