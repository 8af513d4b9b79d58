// go_fxtok serves embed-friendly media and status documents for TikTok posts.
//
// Routes under /generate redirect chat-preview clients to playable media,
// images, covers and avatars; /api/v1 serves Mastodon-shaped status and
// account documents built from the origin's server-rendered pages.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
	"github.com/anatolykoptev/go_fxtok/internal/server"
	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

var (
	version = "dev"
	port    = env.Str("PORT", "8080")
)

func main() {
	initLogger(env.Str("LOG_LEVEL", "info"))

	cfg := loadConfig()
	slog.Info("starting go_fxtok",
		slog.String("version", version),
		slog.String("port", port),
		slog.String("cache", cfg.CacheBackend),
	)

	store := engine.NewStore(cfg)
	if c, ok := store.(interface{ Close() error }); ok {
		defer c.Close()
	}

	fetcher := engine.NewFetcher(cfg, engine.NewSession())
	srv := server.New(
		server.Config{Addr: ":" + port, OffloadURL: cfg.OffloadURL},
		tiktok.NewScraper(cfg, fetcher, store),
		tiktok.NewResolver(fetcher),
		tiktok.NewMirror(fetcher, cfg.MirrorAPIURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func loadConfig() engine.Config {
	d := engine.DefaultConfig()

	backend := strings.ToLower(env.Str("CACHE_BACKEND", d.CacheBackend))
	// REDIS_ENABLED predates CACHE_BACKEND and still switches L2 on.
	if env.Str("REDIS_ENABLED", "") == "true" {
		backend = engine.CacheRedis
	}

	return engine.Config{
		OriginBaseURL:        env.Str("ORIGIN_BASE_URL", d.OriginBaseURL),
		ShortLinkBaseURL:     env.Str("SHORTLINK_BASE_URL", d.ShortLinkBaseURL),
		MirrorAPIURL:         env.Str("MIRROR_API_URL", d.MirrorAPIURL),
		OffloadURL:           env.Str("OFF_LOAD", d.OffloadURL),
		CacheBackend:         backend,
		CacheNamespace:       env.Str("CACHE_NAMESPACE", d.CacheNamespace),
		CacheTTL:             env.Duration("CACHE_TTL", d.CacheTTL),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", d.CacheMaxEntries),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", d.CacheCleanupInterval),
		RedisURL:             env.Str("REDIS_URL", "redis://127.0.0.1:6379/0"),
		RedisRetryInterval:   env.Duration("REDIS_RETRY_INTERVAL", 0),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", d.FetchTimeout),
		FetchMaxTries:        env.Int("FETCH_MAX_TRIES", d.FetchMaxTries),
		OriginRPS:            env.Float("ORIGIN_RPS", 0),
		HTTPClient: &http.Client{
			Timeout: env.Duration("FETCH_TIMEOUT", d.FetchTimeout),
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

func initLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
