package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sdmusic/service/internal/middleware"
	"github.com/sdmusic/service/internal/song"
	"github.com/sdmusic/service/internal/token"
)

const playlistID = "3b1f7d2e-7a57-4a8e-9d2b-6c1f0c2f4b11"

type memStore struct {
	mu        sync.Mutex
	playlists []*Playlist
}

func (m *memStore) Create(_ context.Context, name, createdBy string, songIDs []string) (*Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Playlist{ID: playlistID, Name: name, CreatedBy: createdBy, SongIDs: songIDs, CreatedAt: time.Now()}
	m.playlists = append([]*Playlist{p}, m.playlists...)
	return p, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.playlists {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) List(context.Context) ([]*Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Playlist(nil), m.playlists...), nil
}

type fakeSongs struct {
	songs  map[string]*song.Song
	getErr error
}

func (f *fakeSongs) ValidID(id string) bool { return strings.HasPrefix(id, "song-") }

func (f *fakeSongs) Get(_ context.Context, id string) (*song.Song, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if s, ok := f.songs[id]; ok {
		return s, nil
	}
	return nil, song.ErrNotFound
}

func newSongs(ids ...string) *fakeSongs {
	f := &fakeSongs{songs: make(map[string]*song.Song)}
	for _, id := range ids {
		f.songs[id] = &song.Song{ID: id, Title: "title " + id}
	}
	return f
}

func TestCreateValidatesAndDedupes(t *testing.T) {
	svc := NewService(&memStore{}, newSongs())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "   ", "u-1", nil); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("blank name err = %v", err)
	}
	if _, err := svc.Create(ctx, "Mix", "u-1", []string{"song-1", "bogus"}); !errors.Is(err, ErrInvalidSong) {
		t.Fatalf("bad song err = %v", err)
	}

	p, err := svc.Create(ctx, " Mix ", "u-1", []string{"song-2", "song-1", "song-2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "Mix" || strings.Join(p.SongIDs, ",") != "song-2,song-1" {
		t.Fatalf("playlist = %+v", p)
	}
}

func TestSongsKeepsOrderAndSkipsMissing(t *testing.T) {
	store := &memStore{}
	songs := newSongs("song-1", "song-3")
	svc := NewService(store, songs)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Mix", "u-1", []string{"song-3", "song-2", "song-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Songs(ctx, playlistID)
	if err != nil {
		t.Fatalf("Songs: %v", err)
	}
	if len(got) != 2 || got[0].ID != "song-3" || got[1].ID != "song-1" {
		t.Fatalf("songs = %+v", got)
	}

	if _, err := svc.Songs(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("invalid id err = %v", err)
	}
	if _, err := svc.Songs(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing playlist err = %v", err)
	}

	songs.getErr = errors.New("store down")
	if _, err := svc.Songs(ctx, playlistID); err == nil {
		t.Fatal("expected store failure to surface")
	}
}

func TestHandler(t *testing.T) {
	svc := NewService(&memStore{}, newSongs("song-1"))
	h := NewHandler(svc, nil)
	tokens := token.NewManager("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Get("/playlists", h.List)
	r.With(middleware.RequireAuth(tokens)).Post("/playlists", h.Create)
	r.Get("/playlists/{playlistId}/songs", h.Songs)

	raw, _ := tokens.Issue("u-1", "ann@example.com", "Ann", false)
	do := func(method, path, body string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if auth {
			req.Header.Set("Authorization", "Bearer "+raw)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodPost, "/playlists", `{"name":"Mix","songs":["song-1"]}`, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create = %d, want 401", rec.Code)
	}
	if rec := do(http.MethodPost, "/playlists", `{"name":""}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name = %d, want 400", rec.Code)
	}

	rec := do(http.MethodPost, "/playlists", `{"name":"Mix","songs":["song-1","song-9"]}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data Playlist `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.CreatedBy != "u-1" {
		t.Fatalf("createdBy = %q, want u-1", created.Data.CreatedBy)
	}

	if rec := do(http.MethodGet, "/playlists", "", false); rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}

	rec = do(http.MethodGet, "/playlists/"+playlistID+"/songs", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("songs = %d", rec.Code)
	}
	var listed struct {
		Data []song.Song `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Data) != 1 || listed.Data[0].ID != "song-1" {
		t.Fatalf("songs = %+v", listed.Data)
	}

	if rec := do(http.MethodGet, "/playlists/nope/songs", "", false); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", rec.Code)
	}
	if rec := do(http.MethodGet, "/playlists/00000000-0000-0000-0000-000000000000/songs", "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d, want 404", rec.Code)
	}
}
