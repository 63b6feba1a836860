package song

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
)

// tombstone marks a song written since the last fill. While it is present,
// reads bypass the cache and fills are refused, so a reader that loaded the
// row before a concurrent update or delete cannot cache the old version.
var tombstone = []byte("\x00tombstone")

// Cache is a byte-oriented key/value cache with its own expiry policy.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value unconditionally.
	Set(ctx context.Context, key string, value []byte) error
	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key string, value []byte) (bool, error)
}

// CachedStore serves FindByID from a cache and marks entries on writes. Cache
// failures are logged and fall through to the underlying Store.
type CachedStore struct {
	Store
	cache  Cache
	logger *slog.Logger
}

// NewCachedStore wraps store with cache.
func NewCachedStore(store Store, cache Cache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: cache, logger: logger}
}

func cacheKey(id string) string {
	return "song:" + id
}

// FindByID reads through the cache.
func (c *CachedStore) FindByID(ctx context.Context, id string) (*Song, error) {
	key := cacheKey(id)
	fill := true
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("song cache read failed", "song_id", id, "error", err)
	} else if ok {
		if bytes.Equal(raw, tombstone) {
			fill = false
		} else {
			var s Song
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, nil
			}
			c.logger.Warn("song cache entry corrupt", "song_id", id)
		}
	}

	s, err := c.Store.FindByID(ctx, id)
	if err != nil || !fill {
		return s, err
	}
	if raw, err := json.Marshal(s); err == nil {
		if _, err := c.cache.Add(ctx, key, raw); err != nil {
			c.logger.Warn("song cache write failed", "song_id", id, "error", err)
		}
	}
	return s, nil
}

// UpdateByID updates the store then tombstones the cached copy.
func (c *CachedStore) UpdateByID(ctx context.Context, id string, ch Changes) (*Song, error) {
	s, err := c.Store.UpdateByID(ctx, id, ch)
	c.invalidate(ctx, id)
	return s, err
}

// DeleteByID deletes from the store then tombstones the cached copy.
func (c *CachedStore) DeleteByID(ctx context.Context, id string) error {
	err := c.Store.DeleteByID(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedStore) invalidate(ctx context.Context, id string) {
	if err := c.cache.Set(ctx, cacheKey(id), tombstone); err != nil {
		c.logger.Warn("song cache invalidation failed", "song_id", id, "error", err)
	}
}
