package song

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sdmusic/service/internal/logging"
	"github.com/sdmusic/service/internal/storage"
)

// HomeFeedSize is the number of songs returned by Latest on the home screen.
const HomeFeedSize = 10

// Config wires the collaborators of a Service.
type Config struct {
	Store      Store
	Objects    storage.Storage
	Authorizer Authorizer
	Logger     *slog.Logger

	AudioFolder string
	ImageFolder string
}

// File is one uploaded buffer and its client-supplied name and type.
type File struct {
	Data        []byte
	Filename    string
	ContentType string
}

// UploadInput is everything needed to create a song.
type UploadInput struct {
	Audio  File
	Image  File
	Title  string
	Artist string
}

// Service contains the business logic for songs.
type Service struct {
	store      Store
	objects    storage.Storage
	authorizer Authorizer
	logger     *slog.Logger

	audioFolder string
	imageFolder string
}

// NewService creates a new song Service.
func NewService(cfg Config) *Service {
	audioFolder := cfg.AudioFolder
	if audioFolder == "" {
		audioFolder = "songs"
	}
	imageFolder := cfg.ImageFolder
	if imageFolder == "" {
		imageFolder = "covers"
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = AuthorizerFunc(func(context.Context, string) bool { return false })
	}
	return &Service{
		store:       cfg.Store,
		objects:     cfg.Objects,
		authorizer:  authorizer,
		logger:      logging.WithComponent(cfg.Logger, "songs"),
		audioFolder: audioFolder,
		imageFolder: imageFolder,
	}
}

// Upload sends the audio and image to the object store concurrently and, once
// both have succeeded, persists one song referencing them. If either upload
// fails nothing is persisted. If persistence fails the two fresh assets are
// destroyed on a best-effort basis before the error is returned.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Song, error) {
	if len(in.Audio.Data) == 0 {
		return nil, fmt.Errorf("%w: audio file missing", ErrMissingAsset)
	}
	if len(in.Image.Data) == 0 {
		return nil, fmt.Errorf("%w: cover image missing", ErrMissingAsset)
	}

	var audio, image storage.Asset

	// Uploads outlive a disconnecting client; a failed insert cleans them up.
	uploadCtx := context.WithoutCancel(ctx)

	// A plain Group never cancels the sibling: Wait returns the first error
	// only after both uploads have settled.
	var g errgroup.Group
	g.Go(func() error {
		asset, err := s.objects.Upload(uploadCtx, storage.Object{
			Data:         in.Audio.Data,
			Folder:       s.audioFolder,
			ResourceType: storage.ResourceVideo,
			ContentType:  in.Audio.ContentType,
			Filename:     in.Audio.Filename,
		})
		if err != nil {
			return fmt.Errorf("%w: audio: %w", ErrUploadFailed, err)
		}
		audio = asset
		return nil
	})
	g.Go(func() error {
		asset, err := s.objects.Upload(uploadCtx, storage.Object{
			Data:         in.Image.Data,
			Folder:       s.imageFolder,
			ResourceType: storage.ResourceImage,
			ContentType:  in.Image.ContentType,
			Filename:     in.Image.Filename,
		})
		if err != nil {
			return fmt.Errorf("%w: image: %w", ErrUploadFailed, err)
		}
		image = asset
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created, err := s.store.Insert(ctx, &Song{
		Title:         orDefault(in.Title, DefaultTitle),
		Artist:        orDefault(in.Artist, DefaultArtist),
		AudioURL:      audio.SecureURL,
		ImageURL:      image.SecureURL,
		AudioPublicID: audio.PublicID,
		ImagePublicID: image.PublicID,
	})
	if err != nil {
		s.destroyAssets(context.WithoutCancel(ctx), audio.PublicID, image.PublicID)
		return nil, fmt.Errorf("persist song: %w", err)
	}

	s.logger.Info("song uploaded", "song_id", created.ID, "audio_id", audio.PublicID, "image_id", image.PublicID)
	return created, nil
}

// Delete removes a song and, best effort, its remote assets. The id shape is
// checked first, then the credential, then existence.
func (s *Service) Delete(ctx context.Context, id, credential string) error {
	if !s.store.ValidID(id) {
		return ErrInvalidID
	}
	if credential == "" || !s.authorizer.Authorized(ctx, credential) {
		return ErrUnauthorized
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.destroyAssets(ctx, existing.AudioPublicID, existing.ImagePublicID)

	// A concurrent delete may have won the race; the song is gone either way.
	if err := s.store.DeleteByID(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete song: %w", err)
	}

	s.logger.Info("song deleted", "song_id", id)
	return nil
}

// Get returns a single song.
func (s *Service) Get(ctx context.Context, id string) (*Song, error) {
	if !s.store.ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.store.FindByID(ctx, id)
}

// List returns every song, newest first.
func (s *Service) List(ctx context.Context) ([]*Song, error) {
	return s.store.List(ctx, 0)
}

// Latest returns the n newest songs.
func (s *Service) Latest(ctx context.Context, n int) ([]*Song, error) {
	if n <= 0 {
		n = HomeFeedSize
	}
	return s.store.List(ctx, n)
}

// Update changes the title and/or artist. Blank values are ignored.
func (s *Service) Update(ctx context.Context, id string, c Changes) (*Song, error) {
	if !s.store.ValidID(id) {
		return nil, ErrInvalidID
	}
	c.Title = trimmedOrNil(c.Title)
	c.Artist = trimmedOrNil(c.Artist)
	if c.Empty() {
		return s.store.FindByID(ctx, id)
	}
	return s.store.UpdateByID(ctx, id, c)
}

// ValidID reports whether id could name a song.
func (s *Service) ValidID(id string) bool {
	return s.store.ValidID(id)
}

// IsNotFound returns true when the error indicates a song was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// destroyAssets removes the given remote assets, logging failures.
func (s *Service) destroyAssets(ctx context.Context, audioID, imageID string) {
	for _, a := range []struct {
		id string
		rt storage.ResourceType
	}{
		{audioID, storage.ResourceVideo},
		{imageID, storage.ResourceImage},
	} {
		if a.id == "" {
			continue
		}
		if err := s.objects.Destroy(ctx, a.id, a.rt); err != nil {
			s.logger.Warn("remote asset cleanup failed", "public_id", a.id, "resource_type", a.rt, "error", err)
		}
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
