package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a best-effort TTL key-value cache. Implementations never return
// errors: a failing backend behaves like an empty cache that drops writes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Cache counters, reported by CacheStats.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheErrors atomic.Int64
)

// NopStore is the cache used when caching is switched off.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool) {
	cacheMisses.Add(1)
	return nil, false
}

func (NopStore) Set(context.Context, string, []byte) {}

// NewStore builds the Store selected by cfg.CacheBackend.
// Unknown backends fall back to memory-only.
func NewStore(cfg Config) Store {
	switch cfg.CacheBackend {
	case CacheOff:
		slog.Info("cache: disabled")
		return NopStore{}
	case CacheRedis:
		return NewTieredCache(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval, cfg.RedisRetryInterval)
	default:
		return NewTieredCache("", cfg.CacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval, 0)
	}
}

// TieredCache implements L1 (memory) + L2 (Redis) caching.
// L1 is fast but lost on restart. L2 survives restarts and is shared
// between instances.
type TieredCache struct {
	l1              sync.Map // key → *cacheEntry
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration

	// L2 is connected lazily on first use.
	mu            sync.Mutex
	redisURL      string
	retryInterval time.Duration
	rdb           *redis.Client
	lastAttempt   time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewTieredCache sets up the 2-tier cache and starts the L1 cleanup loop.
// redisURL can be empty to disable L2. retryInterval controls whether a
// failed L2 connect is retried (after that interval) or disables L2 for
// the lifetime of the cache (0).
func NewTieredCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval, retryInterval time.Duration) *TieredCache {
	c := &TieredCache{
		ttl:             ttl,
		maxEntries:      maxEntries,
		cleanupInterval: cleanupInterval,
		redisURL:        redisURL,
		retryInterval:   retryInterval,
		stop:            make(chan struct{}),
	}
	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", redisURL != ""),
		slog.Int("max_entries", maxEntries),
	)

	go c.cleanupLoop()
	return c
}

// CacheKey builds a cache key from parts: namespace, kind, id.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// redisClient returns the L2 client, connecting on first use.
func (c *TieredCache) redisClient(ctx context.Context) *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb != nil || c.redisURL == "" {
		return c.rdb
	}
	if !c.lastAttempt.IsZero() {
		if c.retryInterval <= 0 || time.Since(c.lastAttempt) < c.retryInterval {
			return nil
		}
	}
	c.lastAttempt = time.Now()

	opts, err := redis.ParseURL(c.redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		c.redisURL = ""
		return nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cacheErrors.Add(1)
		slog.Warn("cache: redis unreachable, L2 disabled",
			slog.Any("error", err),
			slog.Duration("retry_in", c.retryInterval),
		)
		_ = rdb.Close()
		return nil
	}

	c.rdb = rdb
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return c.rdb
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			cacheHits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key) // expired
	}

	if rdb := c.redisClient(ctx); rdb != nil {
		data, err := rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cacheHits.Add(1)
			c.storeL1(key, data)
			return data, true
		case !errors.Is(err, redis.Nil):
			cacheErrors.Add(1)
			slog.Debug("cache: L2 get failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	cacheMisses.Add(1)
	return nil, false
}

// Set stores value in both L1 and L2.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte) {
	c.evictIfNeeded()
	c.storeL1(key, value)

	if rdb := c.redisClient(ctx); rdb != nil {
		if err := rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
			cacheErrors.Add(1)
			slog.Debug("cache: L2 set failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (c *TieredCache) storeL1(key string, data []byte) {
	c.l1.Store(key, &cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Close stops the cleanup loop and releases the L2 connection.
func (c *TieredCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.rdb != nil {
			err = c.rdb.Close()
			c.rdb = nil
		}
	})
	return err
}

// CacheStats returns current cache hit/miss/error counters.
func CacheStats() (hits, misses, errs int64) {
	return cacheHits.Load(), cacheMisses.Load(), cacheErrors.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then oldest entries if still over limit.
func (c *TieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	// Phase 1: remove expired
	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})
	if count < c.maxEntries {
		return
	}

	// Phase 2: remove oldest entries until under limit.
	// Earlier expiry = older entry, since expiry = createdAt + ttl.
	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *TieredCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}

// LoadJSON reads key from s and decodes it into T.
// Returns the zero value and false on miss or decode error.
func LoadJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var out T
	data, ok := s.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Debug("cache: corrupt entry", slog.String("key", key), slog.Any("error", err))
		var zero T
		return zero, false
	}
	return out, true
}

// StoreJSON marshals v and stores it under key.
func StoreJSON[T any](ctx context.Context, s Store, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("cache: marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.Set(ctx, key, data)
}
