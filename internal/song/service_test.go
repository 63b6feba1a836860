package song

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sdmusic/service/internal/storage"
)

func newTestService(t *testing.T) (*Service, *memStore, *fakeObjects, *bytes.Buffer) {
	t.Helper()
	store := newMemStore()
	objects := newFakeObjects()
	var logs bytes.Buffer
	svc := NewService(Config{
		Store:      store,
		Objects:    objects,
		Authorizer: passwordAuthorizer(),
		Logger:     slog.New(slog.NewTextHandler(&logs, nil)),
	})
	return svc, store, objects, &logs
}

func validInput() UploadInput {
	return UploadInput{
		Audio: File{Data: []byte("A"), Filename: "track.mp3", ContentType: "audio/mpeg"},
		Image: File{Data: []byte("B"), Filename: "cover.png", ContentType: "image/png"},
		Title: "Song X",
	}
}

func TestUploadPersistsBothAssets(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()

	s, err := svc.Upload(ctx, validInput())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if s.Title != "Song X" || s.Artist != DefaultArtist {
		t.Fatalf("title/artist = %q/%q, want Song X/%s", s.Title, s.Artist, DefaultArtist)
	}
	if !strings.HasPrefix(s.AudioURL, "https://cdn.test/video/songs/") {
		t.Fatalf("AudioURL = %q", s.AudioURL)
	}
	if !strings.HasPrefix(s.ImageURL, "https://cdn.test/image/covers/") {
		t.Fatalf("ImageURL = %q", s.ImageURL)
	}
	if s.AudioURL != "https://cdn.test/"+s.AudioPublicID || s.ImageURL != "https://cdn.test/"+s.ImagePublicID {
		t.Fatalf("urls not derived from upload results: %+v", s)
	}
	if store.count() != 1 {
		t.Fatalf("stored songs = %d, want 1", store.count())
	}
	if objects.uploadCount() != 2 {
		t.Fatalf("uploads = %d, want 2", objects.uploadCount())
	}

	got, err := svc.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != *s {
		t.Fatalf("Get = %+v, want %+v", got, s)
	}
}

func TestUploadDefaults(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	in := validInput()
	in.Title = "   "

	s, err := svc.Upload(context.Background(), in)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s.Title != DefaultTitle || s.Artist != DefaultArtist {
		t.Fatalf("title/artist = %q/%q, want defaults", s.Title, s.Artist)
	}
}

func TestUploadMissingAssetMakesNoRemoteCall(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UploadInput)
	}{
		{name: "audio", mutate: func(in *UploadInput) { in.Audio = File{} }},
		{name: "image", mutate: func(in *UploadInput) { in.Image.Data = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, objects, _ := newTestService(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Upload(context.Background(), in)
			if !errors.Is(err, ErrMissingAsset) {
				t.Fatalf("err = %v, want ErrMissingAsset", err)
			}
			if objects.uploadCount() != 0 {
				t.Fatalf("uploads = %d, want 0", objects.uploadCount())
			}
			if store.inserts != 0 {
				t.Fatalf("inserts = %d, want 0", store.inserts)
			}
		})
	}
}

func TestUploadImageFailureStoresNothing(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	remoteErr := errors.New("cover rejected")
	objects.uploadErr[storage.ResourceImage] = remoteErr

	_, err := svc.Upload(context.Background(), validInput())
	if !errors.Is(err, ErrUploadFailed) || !errors.Is(err, remoteErr) {
		t.Fatalf("err = %v, want ErrUploadFailed wrapping %v", err, remoteErr)
	}
	if !strings.Contains(err.Error(), "image") {
		t.Fatalf("err = %q, want failing asset named", err)
	}
	if store.inserts != 0 || store.count() != 0 {
		t.Fatalf("inserts = %d, stored = %d, want none", store.inserts, store.count())
	}
	// The audio asset that did succeed is left in place.
	if calls := objects.destroyCalls(); len(calls) != 0 {
		t.Fatalf("destroy calls = %v, want none", calls)
	}
}

func TestUploadAwaitsSiblingWithoutCancelling(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	release := make(chan struct{})
	objects.gate[storage.ResourceVideo] = release
	objects.uploadErr[storage.ResourceImage] = errors.New("boom")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Upload(context.Background(), validInput())
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Upload returned before the audio upload settled: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		if !errors.Is(err, ErrUploadFailed) {
			t.Fatalf("err = %v, want ErrUploadFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Upload did not return after both uploads settled")
	}

	objects.mu.Lock()
	defer objects.mu.Unlock()
	if len(objects.finished) != 2 {
		t.Fatalf("finished uploads = %v, want both", objects.finished)
	}
	for _, ctxErr := range objects.ctxErrs {
		if ctxErr != nil {
			t.Fatalf("sibling upload saw cancelled context: %v", ctxErr)
		}
	}
	if store.count() != 0 {
		t.Fatalf("stored = %d, want 0", store.count())
	}
}

func TestUploadSurvivesRequestCancellation(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	release := make(chan struct{})
	objects.gate[storage.ResourceVideo] = release

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Upload(ctx, validInput())
		done <- err
	}()

	for objects.uploadCount() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Upload did not return")
	}

	objects.mu.Lock()
	defer objects.mu.Unlock()
	if len(objects.ctxErrs) != 2 {
		t.Fatalf("finished uploads = %d, want 2", len(objects.ctxErrs))
	}
	for _, ctxErr := range objects.ctxErrs {
		if ctxErr != nil {
			t.Fatalf("upload saw cancelled request context: %v", ctxErr)
		}
	}
	if store.count() != 1 {
		t.Fatalf("stored = %d, want 1", store.count())
	}
}

func TestUploadPersistFailureCompensates(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	store.insertErr = errors.New("connection reset")

	_, err := svc.Upload(context.Background(), validInput())
	if err == nil || !strings.Contains(err.Error(), "persist song") {
		t.Fatalf("err = %v, want persist failure", err)
	}

	calls := objects.destroyCalls()
	if len(calls) != 2 {
		t.Fatalf("destroy calls = %d, want 2", len(calls))
	}
	if calls[0].resourceType != storage.ResourceVideo || calls[1].resourceType != storage.ResourceImage {
		t.Fatalf("destroy calls = %+v", calls)
	}
}

func TestDeleteWrongCredentialTouchesNothing(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()
	s, err := svc.Upload(ctx, validInput())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	for _, cred := range []string{"", "wrong"} {
		if err := svc.Delete(ctx, s.ID, cred); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Delete(%q) err = %v, want ErrUnauthorized", cred, err)
		}
	}
	if store.count() != 1 {
		t.Fatalf("stored = %d, want 1", store.count())
	}
	if calls := objects.destroyCalls(); len(calls) != 0 {
		t.Fatalf("destroy calls = %v, want none", calls)
	}
}

func TestDeleteValidatesIDBeforeAuthorizing(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if err := svc.Delete(context.Background(), "not-an-id", "wrong"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, objects, _ := newTestService(t)

	if err := svc.Delete(context.Background(), "song-404", adminSecret); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls := objects.destroyCalls(); len(calls) != 0 {
		t.Fatalf("destroy calls = %v, want none", calls)
	}
}

func TestDeleteBestEffortCleanup(t *testing.T) {
	svc, store, objects, logs := newTestService(t)
	ctx := context.Background()
	s, err := svc.Upload(ctx, validInput())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	objects.destroyErr[storage.ResourceVideo] = errors.New("remote unavailable")

	if err := svc.Delete(ctx, s.ID, adminSecret); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	calls := objects.destroyCalls()
	if len(calls) != 2 {
		t.Fatalf("destroy calls = %d, want 2", len(calls))
	}
	if calls[0].publicID != s.AudioPublicID || calls[1].publicID != s.ImagePublicID {
		t.Fatalf("destroy calls = %+v, want audio then image", calls)
	}
	if store.deletes != 1 {
		t.Fatalf("deletes = %d, want 1", store.deletes)
	}
	if !strings.Contains(logs.String(), "remote asset cleanup failed") {
		t.Fatalf("cleanup failure not logged: %s", logs.String())
	}

	if _, err := svc.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}
}

// racingStore loses every delete to a concurrent caller.
type racingStore struct {
	*memStore
}

func (r racingStore) DeleteByID(ctx context.Context, id string) error {
	_ = r.memStore.DeleteByID(ctx, id)
	return ErrNotFound
}

func TestDeleteLosingRaceStillSucceeds(t *testing.T) {
	store := newMemStore()
	objects := newFakeObjects()
	svc := NewService(Config{Store: racingStore{store}, Objects: objects, Authorizer: passwordAuthorizer()})
	ctx := context.Background()

	s, err := svc.Upload(ctx, validInput())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := svc.Delete(ctx, s.ID, adminSecret); err != nil {
		t.Fatalf("Delete = %v, want nil when the row is already gone", err)
	}
	if store.count() != 0 {
		t.Fatalf("songs left = %d, want 0", store.count())
	}
}

func TestDeleteSkipsMissingRemoteIDs(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()
	s, err := store.Insert(ctx, &Song{Title: "legacy", Artist: "x", AudioURL: "a", ImageURL: "b", ImagePublicID: "image/covers/c.png"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := svc.Delete(ctx, s.ID, adminSecret); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if calls := objects.destroyCalls(); len(calls) != 1 || calls[0].resourceType != storage.ResourceImage {
		t.Fatalf("destroy calls = %+v, want only the image", calls)
	}
}

func TestListNewestFirst(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"t1", "t2", "t3"} {
		in := validInput()
		in.Title = title
		s, err := svc.Upload(ctx, in)
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		ids = append(ids, s.ID)
	}

	songs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(songs) != 3 {
		t.Fatalf("List = %d songs, want 3", len(songs))
	}
	want := []string{ids[2], ids[1], ids[0]}
	for i, s := range songs {
		if s.ID != want[i] {
			t.Fatalf("List[%d] = %s, want %s", i, s.ID, want[i])
		}
	}

	latest, err := svc.Latest(ctx, 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != ids[2] {
		t.Fatalf("Latest = %d songs, first %s", len(latest), latest[0].ID)
	}
}

func TestUpdate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	s, err := svc.Upload(ctx, validInput())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	artist := "  New Artist "
	blank := ""
	updated, err := svc.Update(ctx, s.ID, Changes{Title: &blank, Artist: &artist})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Song X" || updated.Artist != "New Artist" {
		t.Fatalf("updated = %q/%q", updated.Title, updated.Artist)
	}
	if updated.AudioURL != s.AudioURL || updated.ImageURL != s.ImageURL {
		t.Fatal("update touched asset urls")
	}

	if _, err := svc.Update(ctx, "song-999", Changes{Artist: &artist}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, "bogus", Changes{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
}
