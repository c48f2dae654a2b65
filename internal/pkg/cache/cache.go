// Package cache provides a time-bounded, per-key memo for content fetched from
// slow or rate-limited upstreams.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched payload is served without refetching.
const DefaultTTL = 5 * time.Minute

// Entry is one cached payload and the moment it was fetched.
type Entry struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
}

// Store holds cache entries. Implementations must replace entries wholesale.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
}

// FetchFunc loads a fresh payload from the upstream.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config configures a Cache.
type Config struct {
	TTL   time.Duration
	Store Store
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Cache memoizes the result of one upstream fetch under a fixed key.
// Concurrent misses are collapsed into a single upstream call.
type Cache[T any] struct {
	key   string
	ttl   time.Duration
	store Store
	fetch FetchFunc[T]
	now   func() time.Time
	group singleflight.Group
}

// New creates a cache for key. Zero config values fall back to DefaultTTL,
// an in-process MemoryStore and time.Now.
func New[T any](key string, fetch FetchFunc[T], cfg Config) *Cache[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache[T]{
		key:   key,
		ttl:   cfg.TTL,
		store: cfg.Store,
		fetch: fetch,
		now:   cfg.Now,
	}
}

// Key returns the resource key this cache guards.
func (c *Cache[T]) Key() string {
	return c.key
}

// Get returns the cached payload while it is fresh, otherwise fetches a new
// one. A failed fetch leaves the stored entry untouched and returns the error.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(ctx); ok {
		recordHit(c.key)
		return v, nil
	}

	recordMiss(c.key)
	return c.refresh(ctx)
}

// GetOrStale behaves like Get but, when the refresh fails and an older
// payload exists, returns that payload with stale set to true instead of
// the error.
func (c *Cache[T]) GetOrStale(ctx context.Context) (v T, stale bool, err error) {
	v, err = c.Get(ctx)
	if err == nil {
		return v, false, nil
	}

	entry, ok, loadErr := c.store.Load(ctx, c.key)
	if loadErr != nil || !ok {
		return v, false, err
	}

	var prior T
	if decodeErr := json.Unmarshal(entry.Payload, &prior); decodeErr != nil {
		return v, false, err
	}

	recordStale(c.key)
	ctxlog.FromContext(ctx).Warn("serving stale content after refresh failure",
		"key", c.key,
		"age", c.now().Sub(entry.FetchedAt).Round(time.Second),
		"error", err,
	)
	return prior, true, nil
}

// fresh returns the stored payload if it is younger than the TTL.
func (c *Cache[T]) fresh(ctx context.Context) (T, bool) {
	var v T

	entry, ok, err := c.store.Load(ctx, c.key)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("cache store load failed", "key", c.key, "error", err)
		return v, false
	}
	if !ok || c.now().Sub(entry.FetchedAt) >= c.ttl {
		return v, false
	}

	if err := json.Unmarshal(entry.Payload, &v); err != nil {
		ctxlog.FromContext(ctx).Warn("cache entry is corrupt, refetching", "key", c.key, "error", err)
		return v, false
	}
	return v, true
}

func (c *Cache[T]) refresh(ctx context.Context) (T, error) {
	logger := ctxlog.FromContext(ctx)
	// The first caller's cancellation must not fail everyone sharing its fetch.
	fetchCtx := context.WithoutCancel(ctx)

	res, err, shared := c.group.Do(c.key, func() (interface{}, error) {
		// Another caller may have refreshed between our miss and acquiring the flight.
		if v, ok := c.fresh(fetchCtx); ok {
			return v, nil
		}

		start := c.now()
		v, err := c.fetch(fetchCtx)
		if err != nil {
			recordRefreshFailure(c.key)
			return nil, fmt.Errorf("fetch %s: %w", c.key, err)
		}

		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.key, err)
		}

		entry := Entry{Key: c.key, Payload: payload, FetchedAt: c.now()}
		if err := c.store.Save(fetchCtx, entry); err != nil {
			logger.Warn("cache store save failed", "key", c.key, "error", err)
		}

		logger.Debug("cache refreshed",
			slog.String("key", c.key),
			slog.Int("bytes", len(payload)),
			slog.Duration("took", c.now().Sub(start)),
		)
		return v, nil
	})
	if shared {
		recordCoalesced(c.key)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
