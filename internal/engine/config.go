// Package engine holds the plumbing shared by the scrapers: outbound
// fetching with session cookies, embedded-JSON extraction, the TTL cache,
// kind-tagged errors and operational counters.
package engine

import (
	"net/http"
	"time"
)

// Cache backends selectable through Config.CacheBackend.
const (
	CacheOff    = "off"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	OriginBaseURL    string // page host, e.g. https://www.tiktok.com
	ShortLinkBaseURL string // short link host, e.g. https://vm.tiktok.com
	MirrorAPIURL     string // third-party image mirror used when a post has no image list
	OffloadURL       string // public base for generated media links

	CacheBackend         string // off | memory | redis
	CacheNamespace       string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RedisURL             string
	RedisRetryInterval   time.Duration // 0 = a failed connect disables L2 for the process

	FetchTimeout  time.Duration
	FetchMaxTries int
	OriginRPS     float64 // 0 = no outbound rate limit

	HTTPClient *http.Client
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OriginBaseURL:        "https://www.tiktok.com",
		ShortLinkBaseURL:     "https://vm.tiktok.com",
		MirrorAPIURL:         "https://tikwm.com/api/",
		OffloadURL:           "https://offload.tnktok.com",
		CacheBackend:         CacheMemory,
		CacheNamespace:       "tiktok",
		CacheTTL:             86400 * time.Second,
		CacheMaxEntries:      5000,
		CacheCleanupInterval: 5 * time.Minute,
		FetchTimeout:         15 * time.Second,
		FetchMaxTries:        2,
	}
}
