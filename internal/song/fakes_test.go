package song

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sdmusic/service/internal/storage"
)

type memStore struct {
	mu        sync.Mutex
	songs     map[string]*Song
	seq       int
	now       time.Time
	insertErr error
	inserts   int
	deletes   int
}

func newMemStore() *memStore {
	return &memStore{
		songs: make(map[string]*Song),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) ValidID(id string) bool {
	return strings.HasPrefix(id, "song-")
}

func (m *memStore) Insert(_ context.Context, s *Song) (*Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.seq++
	m.now = m.now.Add(time.Second)
	stored := *s
	stored.ID = fmt.Sprintf("song-%d", m.seq)
	stored.CreatedAt = m.now
	stored.UpdatedAt = m.now
	m.songs[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *memStore) UpdateByID(_ context.Context, id string, c Changes) (*Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Title != nil {
		s.Title = *c.Title
	}
	if c.Artist != nil {
		s.Artist = *c.Artist
	}
	out := *s
	return &out, nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[id]; !ok {
		return ErrNotFound
	}
	m.deletes++
	delete(m.songs, id)
	return nil
}

func (m *memStore) List(_ context.Context, limit int) ([]*Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Song, 0, len(m.songs))
	for _, s := range m.songs {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.songs)
}

type destroyCall struct {
	publicID     string
	resourceType storage.ResourceType
}

type fakeObjects struct {
	mu         sync.Mutex
	uploads    []storage.Object
	destroys   []destroyCall
	uploadErr  map[storage.ResourceType]error
	destroyErr map[storage.ResourceType]error
	// gate, when set for a resource type, blocks that upload until closed.
	gate     map[storage.ResourceType]chan struct{}
	ctxErrs  []error
	finished []storage.ResourceType
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		uploadErr:  make(map[storage.ResourceType]error),
		destroyErr: make(map[storage.ResourceType]error),
		gate:       make(map[storage.ResourceType]chan struct{}),
	}
}

func (f *fakeObjects) Upload(ctx context.Context, obj storage.Object) (storage.Asset, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, obj)
	gate := f.gate[obj.ResourceType]
	err := f.uploadErr[obj.ResourceType]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.finished = append(f.finished, obj.ResourceType)
	f.mu.Unlock()

	if err != nil {
		return storage.Asset{}, err
	}
	id := storage.NewPublicID(obj.ResourceType, obj.Folder, obj.Filename)
	return storage.Asset{PublicID: id, SecureURL: "https://cdn.test/" + id}, nil
}

func (f *fakeObjects) Destroy(_ context.Context, publicID string, rt storage.ResourceType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, destroyCall{publicID: publicID, resourceType: rt})
	return f.destroyErr[rt]
}

func (f *fakeObjects) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeObjects) destroyCalls() []destroyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]destroyCall(nil), f.destroys...)
}

const adminSecret = "letmein"

func passwordAuthorizer() Authorizer {
	return AuthorizerFunc(func(_ context.Context, credential string) bool {
		return credential == adminSecret
	})
}
