package song

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
)

type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	hits   int
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Add(_ context.Context, key string, value []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *mapCache) has(key string, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return ok && bytes.Equal(v, value)
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := newMemStore()
	cache := newMapCache()
	store := NewCachedStore(inner, cache, nil)

	s, err := store.Insert(ctx, &Song{Title: "a", Artist: "b", AudioURL: "u1", ImageURL: "u2"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := store.FindByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Title != "a" || !got.CreatedAt.Equal(s.CreatedAt) {
			t.Fatalf("FindByID = %+v", got)
		}
	}
	if cache.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", cache.hits)
	}
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner := newMemStore()
	cache := newMapCache()
	store := NewCachedStore(inner, cache, nil)

	s, _ := store.Insert(ctx, &Song{Title: "a", Artist: "b", AudioURL: "u1", ImageURL: "u2"})
	if _, err := store.FindByID(ctx, s.ID); err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	title := "renamed"
	if _, err := store.UpdateByID(ctx, s.ID, Changes{Title: &title}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	got, err := store.FindByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "renamed" {
		t.Fatalf("stale read after update: %q", got.Title)
	}

	if err := store.DeleteByID(ctx, s.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if _, err := store.FindByID(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !cache.has(cacheKey(s.ID), tombstone) {
		t.Fatal("deleted song not tombstoned in cache")
	}
}

func TestCachedStoreFallsThroughOnCacheError(t *testing.T) {
	ctx := context.Background()
	inner := newMemStore()
	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	store := NewCachedStore(inner, cache, nil)

	s, _ := inner.Insert(ctx, &Song{Title: "a", Artist: "b", AudioURL: "u1", ImageURL: "u2"})
	got, err := store.FindByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("FindByID = %s, want %s", got.ID, s.ID)
	}
}

// pausingStore blocks its first FindByID between reading the row and
// returning it.
type pausingStore struct {
	*memStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(inner *memStore) *pausingStore {
	return &pausingStore{memStore: inner, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) FindByID(ctx context.Context, id string) (*Song, error) {
	s, err := p.memStore.FindByID(ctx, id)
	p.once.Do(func() {
		p.read <- struct{}{}
		<-p.release
	})
	return s, err
}

// readDuring starts a cached FindByID, runs write while the read is paused
// after loading the row, then lets the read finish.
func readDuring(t *testing.T, store *CachedStore, paused *pausingStore, id string, write func()) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := store.FindByID(context.Background(), id)
		done <- err
	}()
	<-paused.read
	write()
	close(paused.release)
	if err := <-done; err != nil {
		t.Fatalf("paused FindByID: %v", err)
	}
}

func TestCachedStoreDeleteDuringReadStaysDeleted(t *testing.T) {
	ctx := context.Background()
	inner := newMemStore()
	s, _ := inner.Insert(ctx, &Song{Title: "a", Artist: "b", AudioURL: "u1", ImageURL: "u2"})

	paused := newPausingStore(inner)
	store := NewCachedStore(paused, newMapCache(), nil)

	readDuring(t, store, paused, s.ID, func() {
		if err := store.DeleteByID(ctx, s.ID); err != nil {
			t.Errorf("DeleteByID: %v", err)
		}
	})

	if _, err := store.FindByID(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID after delete err = %v, want ErrNotFound", err)
	}
}

func TestCachedStoreUpdateDuringReadServesNewVersion(t *testing.T) {
	ctx := context.Background()
	inner := newMemStore()
	s, _ := inner.Insert(ctx, &Song{Title: "old", Artist: "b", AudioURL: "u1", ImageURL: "u2"})

	paused := newPausingStore(inner)
	store := NewCachedStore(paused, newMapCache(), nil)

	title := "new"
	readDuring(t, store, paused, s.ID, func() {
		if _, err := store.UpdateByID(ctx, s.ID, Changes{Title: &title}); err != nil {
			t.Errorf("UpdateByID: %v", err)
		}
	})

	got, err := store.FindByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "new" {
		t.Fatalf("title = %q, want new", got.Title)
	}
}
