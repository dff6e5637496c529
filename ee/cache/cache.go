package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ritmofit/agent/pkg/agent/types"
)

// keyPrefix namespaces cache entries so that ClearAll can wipe the cache
// without touching anything else a feature may have put in the same store.
const keyPrefix = "cache_"

// Cache is a time-boxed JSON cache over a key-value store. Freshness is the
// caller's policy: each Get carries its own max age, so one entry can serve a
// cheap "still fresh" check and a longer force-refresh bound at once. Entries
// older than the given max age are lazily deleted on read. Storage errors are
// logged and treated as a miss; callers never see them.
type Cache struct {
	slogger *slog.Logger
	store   types.GetterSetterDeleterIterator
	now     func() time.Time
}

type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
}

type cacheOption func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) cacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func New(slogger *slog.Logger, store types.GetterSetterDeleterIterator, opts ...cacheOption) *Cache {
	c := &Cache{
		slogger: slogger.With("component", "cache"),
		store:   store,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Set stores data under the namespaced key with the current write time.
func (c *Cache) Set(key string, data any) {
	rawData, err := json.Marshal(data)
	if err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not marshal data for cache",
			"cache_key", key,
			"err", err,
		)
		return
	}

	rawEntry, err := json.Marshal(cacheEntry{
		Data:      rawData,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not marshal cache entry",
			"cache_key", key,
			"err", err,
		)
		return
	}

	if err := c.store.Set(c.storeKey(key), rawEntry); err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not write cache entry",
			"cache_key", key,
			"err", err,
		)
	}
}

// Get unmarshals the entry for key into dest and reports a hit, provided the
// entry exists and is no older than maxAge. A stale entry is deleted and
// reported as a miss.
func (c *Cache) Get(key string, maxAge time.Duration, dest any) bool {
	entry, ok := c.readEntry(key)
	if !ok {
		return false
	}

	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age > maxAge {
		c.Remove(key)
		return false
	}

	if err := json.Unmarshal(entry.Data, dest); err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not unmarshal cached data",
			"cache_key", key,
			"err", err,
		)
		return false
	}

	return true
}

// Remove deletes the entry for key unconditionally.
func (c *Cache) Remove(key string) {
	if err := c.store.Delete(c.storeKey(key)); err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not delete cache entry",
			"cache_key", key,
			"err", err,
		)
	}
}

// ClearAll removes every cache entry, leaving non-namespaced keys in the
// underlying store untouched.
func (c *Cache) ClearAll() {
	if err := c.store.DeleteByPrefix([]byte(keyPrefix)); err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not clear cache",
			"err", err,
		)
	}
}

// Timestamp returns the stored write time for key without triggering
// eviction, so callers can reason about staleness on their own terms.
func (c *Cache) Timestamp(key string) (time.Time, bool) {
	entry, ok := c.readEntry(key)
	if !ok {
		return time.Time{}, false
	}

	return time.UnixMilli(entry.Timestamp), true
}

func (c *Cache) readEntry(key string) (cacheEntry, bool) {
	raw, err := c.store.Get(c.storeKey(key))
	if err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not read cache entry",
			"cache_key", key,
			"err", err,
		)
		return cacheEntry{}, false
	}

	if raw == nil {
		return cacheEntry{}, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.slogger.Log(context.TODO(), slog.LevelError,
			"could not unmarshal cache entry",
			"cache_key", key,
			"err", err,
		)
		return cacheEntry{}, false
	}

	return entry, true
}

func (c *Cache) storeKey(key string) []byte {
	return []byte(keyPrefix + key)
}
