// Package song manages song metadata and the upload and deletion of the
// remote assets each song references.
package song

import (
	"context"
	"errors"
	"time"
)

// Defaults substituted for missing upload fields.
const (
	DefaultTitle  = "Untitled"
	DefaultArtist = "Unknown"
)

// Song is one persisted track. AudioURL and ImageURL are always both set.
type Song struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	AudioURL      string    `json:"audioUrl"`
	ImageURL      string    `json:"imageUrl"`
	AudioPublicID string    `json:"audioPublicId,omitempty"`
	ImagePublicID string    `json:"imagePublicId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Changes holds the mutable fields of a song. Nil fields are left untouched.
type Changes struct {
	Title  *string
	Artist *string
}

// Empty reports whether c would change nothing.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Artist == nil
}

var (
	// ErrNotFound is returned when a song does not exist.
	ErrNotFound = errors.New("song not found")
	// ErrInvalidID is returned for identifiers the store could never have issued.
	ErrInvalidID = errors.New("invalid song id")
	// ErrMissingAsset is returned when the audio or image buffer is absent.
	ErrMissingAsset = errors.New("audio file and cover image are required")
	// ErrUploadFailed wraps the error of whichever asset upload failed.
	ErrUploadFailed = errors.New("asset upload failed")
	// ErrUnauthorized is returned when a destructive call lacks a valid credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store persists song metadata.
type Store interface {
	// ValidID reports whether id has the shape of an identifier this store issues.
	ValidID(id string) bool
	// Insert stores s and returns the stored record with its id and timestamps.
	Insert(ctx context.Context, s *Song) (*Song, error)
	// FindByID returns ErrNotFound when no song has the id.
	FindByID(ctx context.Context, id string) (*Song, error)
	// UpdateByID applies c and returns the updated record, or ErrNotFound.
	UpdateByID(ctx context.Context, id string, c Changes) (*Song, error)
	// DeleteByID returns ErrNotFound when no song has the id.
	DeleteByID(ctx context.Context, id string) error
	// List returns songs newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*Song, error)
}

// Authorizer decides whether a credential may perform destructive operations.
type Authorizer interface {
	Authorized(ctx context.Context, credential string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, credential string) bool

// Authorized calls f.
func (f AuthorizerFunc) Authorized(ctx context.Context, credential string) bool {
	return f(ctx, credential)
}
