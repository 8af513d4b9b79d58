// Package tiktok resolves posts and profiles from the origin's server-rendered
// pages and selects playable media for them.
package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

// Cache kinds, the middle segment of namespace:kind:id.
const (
	kindAweme = "aweme"
	kindVideo = "video"
	kindUser  = "user"
	kindPfp   = "pfp"
)

// Scope names one of the two top-level sections of the rehydration payload.
// It doubles as the cache kind of the scope's primary key.
type Scope string

const (
	ScopeVideo Scope = kindVideo
	ScopeUser  Scope = kindUser
)

const (
	rehydrationScriptID = "__UNIVERSAL_DATA_FOR_REHYDRATION__"
	liveScriptID        = "SIGI_STATE"

	statusNoContent      = 10204
	statusUserBanned     = 209002
	statusUserRestricted = 209004
)

// Video pages may be served from a shared cache up to a day old.
var videoCacheHint = &engine.CacheHint{TTL: 24 * time.Hour}

func (s Scope) payloadKey() string {
	return "webapp." + string(s) + "-detail"
}

// Scraper resolves scopes through the cache and the origin. It is safe for
// concurrent use; concurrent misses on the same id are not coalesced, both
// fetch and both write (last write wins).
type Scraper struct {
	fetcher   *engine.Fetcher
	cache     engine.Store
	namespace string
	origin    string
	shortLink string
}

// NewScraper creates a scraper. cache may be engine.NopStore{}.
func NewScraper(cfg engine.Config, fetcher *engine.Fetcher, cache engine.Store) *Scraper {
	ns := cfg.CacheNamespace
	if ns == "" {
		ns = "tiktok"
	}
	return &Scraper{
		fetcher:   fetcher,
		cache:     cache,
		namespace: ns,
		origin:    strings.TrimRight(cfg.OriginBaseURL, "/"),
		shortLink: strings.TrimRight(cfg.ShortLinkBaseURL, "/"),
	}
}

func (s *Scraper) key(kind, id string) string {
	return engine.CacheKey(s.namespace, kind, id)
}

func (s *Scraper) pageURL(id string, scope Scope) string {
	if scope == ScopeVideo {
		return s.origin + "/@i/video/" + id
	}
	return s.origin + "/@" + id
}

// resolveScope returns the raw JSON of the requested scope for id.
// Errors are either KindNotFound or an opaque KindFailure; the cause of a
// failure is logged and never returned to the caller.
func (s *Scraper) resolveScope(ctx context.Context, id string, scope Scope) (json.RawMessage, error) {
	engine.IncrScopeResolutions()
	primaryKey := s.key(string(scope), id)

	if cached, ok := s.cache.Get(ctx, primaryKey); ok {
		return cached, nil
	}

	var hint *engine.CacheHint
	if scope == ScopeVideo {
		hint = videoCacheHint
	}

	raw, err := s.fetchScope(ctx, id, scope, hint)
	if err != nil {
		if engine.KindOf(err) == engine.KindNotFound {
			engine.IncrScopeNotFound()
			return nil, err
		}
		engine.IncrScopeFailures()
		slog.Warn("scrape: resolve failed",
			slog.String("scope", string(scope)),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return nil, &engine.Error{
			Kind: engine.KindFailure,
			Msg:  fmt.Sprintf("could not parse %s data", scope),
			Err:  err,
		}
	}

	s.fanOut(ctx, scope, primaryKey, raw)
	return raw, nil
}

func (s *Scraper) fetchScope(ctx context.Context, id string, scope Scope, hint *engine.CacheHint) (json.RawMessage, error) {
	html, err := s.fetcher.FetchPage(ctx, s.pageURL(id, scope), hint)
	if err != nil {
		return nil, err
	}

	var payload rehydrationPayload
	if err := engine.ExtractJSON(html, rehydrationScriptID, &payload); err != nil {
		return nil, err
	}

	raw, ok := payload.DefaultScope[scope.payloadKey()]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, engine.Errorf(engine.KindNotFound, "could not find %s data", scope)
	}

	var status scopeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("%w: scope %s: %v", engine.ErrExtraction, scope, err)
	}
	if status.StatusCode == statusNoContent {
		return nil, engine.Errorf(engine.KindNotFound, "could not find %s data", scope)
	}
	return raw, nil
}

// fanOut writes the primary key and the secondary keys derived from it.
// Writes are sequential and best-effort; a failed secondary write never
// affects the result already resolved.
func (s *Scraper) fanOut(ctx context.Context, scope Scope, primaryKey string, raw json.RawMessage) {
	s.cache.Set(ctx, primaryKey, raw)

	switch scope {
	case ScopeVideo:
		var detail VideoDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			slog.Debug("scrape: fan-out skipped", slog.String("key", primaryKey), slog.Any("error", err))
			return
		}
		s.storePfp(ctx, &detail.ItemInfo.ItemStruct.Author)

	case ScopeUser:
		var detail UserDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			slog.Debug("scrape: fan-out skipped", slog.String("key", primaryKey), slog.Any("error", err))
			return
		}
		if detail.UserInfo == nil {
			return
		}
		user := &detail.UserInfo.User
		s.storePfp(ctx, user)

		// One alias copy so the profile is reachable by both id and handle.
		if idKey := s.key(kindUser, user.ID); user.ID != "" && idKey != primaryKey {
			s.cache.Set(ctx, idKey, raw)
		} else if user.UniqueID != "" {
			s.cache.Set(ctx, s.key(kindUser, user.UniqueID), raw)
		}
	}
}

func (s *Scraper) storePfp(ctx context.Context, user *DetailUser) {
	if user.ID != "" {
		engine.StoreJSON(ctx, s.cache, s.key(kindPfp, user.ID), user)
	}
	if user.UniqueID != "" {
		engine.StoreJSON(ctx, s.cache, s.key(kindPfp, user.UniqueID), user)
	}
}

// ScrapeVideoData resolves a post by its numeric id.
func (s *Scraper) ScrapeVideoData(ctx context.Context, awemeID string) (*ItemStruct, error) {
	raw, err := s.resolveScope(ctx, awemeID, ScopeVideo)
	if err != nil {
		return nil, err
	}
	var detail VideoDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not parse video data", Err: err}
	}
	return &detail.ItemInfo.ItemStruct, nil
}

// ScrapeUserData resolves a profile scope by handle or numeric id.
func (s *Scraper) ScrapeUserData(ctx context.Context, author string) (*UserDetail, error) {
	raw, err := s.resolveScope(ctx, author, ScopeUser)
	if err != nil {
		return nil, err
	}
	var detail UserDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not parse user data", Err: err}
	}
	return &detail, nil
}

// ScrapePfpData returns the identity block of an account, reading the pfp
// secondary key before falling back to a full profile resolution.
// Restricted and banned accounts yield KindRestricted.
func (s *Scraper) ScrapePfpData(ctx context.Context, author string) (*DetailUser, error) {
	if user, ok := engine.LoadJSON[DetailUser](ctx, s.cache, s.key(kindPfp, author)); ok {
		return &user, nil
	}

	detail, err := s.ScrapeUserData(ctx, author)
	if err != nil {
		return nil, err
	}
	if detail.StatusCode == statusUserRestricted || detail.StatusCode == statusUserBanned {
		return nil, engine.Errorf(engine.KindRestricted, "restricted")
	}
	if detail.UserInfo == nil {
		return nil, engine.Errorf(engine.KindNotFound, "could not find user data")
	}
	return &detail.UserInfo.User, nil
}

// ScrapeProfileData returns identity and stats of an account.
func (s *Scraper) ScrapeProfileData(ctx context.Context, author string) (*UserInfo, error) {
	detail, err := s.ScrapeUserData(ctx, author)
	if err != nil {
		return nil, err
	}
	if detail.StatusCode == statusUserRestricted || detail.StatusCode == statusUserBanned {
		return nil, engine.Errorf(engine.KindRestricted, "restricted")
	}
	if detail.UserInfo == nil {
		return nil, engine.Errorf(engine.KindNotFound, "could not find user data")
	}
	return detail.UserInfo, nil
}

// ScrapeLiveData reads the live room of an account from its live page.
// Live state changes by the minute, so nothing is cached. Every failure is
// collapsed into one opaque KindFailure.
func (s *Scraper) ScrapeLiveData(ctx context.Context, author string) (*LiveRoom, error) {
	engine.IncrLiveLookups()
	room, err := s.fetchLive(ctx, author)
	if err != nil {
		slog.Warn("scrape: live lookup failed", slog.String("author", author), slog.Any("error", err))
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not parse live data", Err: err}
	}
	return room, nil
}

func (s *Scraper) fetchLive(ctx context.Context, author string) (*LiveRoom, error) {
	html, err := s.fetcher.FetchPage(ctx, s.origin+"/@"+url.PathEscape(author)+"/live", nil)
	if err != nil {
		return nil, err
	}
	var payload livePayload
	if err := engine.ExtractJSON(html, liveScriptID, &payload); err != nil {
		return nil, err
	}
	if payload.LiveRoom == nil {
		return nil, errors.New("could not find live data")
	}
	return payload.LiveRoom, nil
}
