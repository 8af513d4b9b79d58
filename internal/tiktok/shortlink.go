package tiktok

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

const shortLinkUserAgent = "Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)"

var (
	// AwemeIDPattern matches a post id.
	AwemeIDPattern = regexp.MustCompile(`^\d{1,19}$`)

	awemeLinkPattern = regexp.MustCompile(`/@?([\w.]*)/(video|photo|live)/?(\d{19})?`)
)

// ValidAwemeID reports whether id is a well-formed post id.
func ValidAwemeID(id string) bool {
	return AwemeIDPattern.MatchString(id)
}

// AwemeLink is the parsed path of a canonical post URL.
type AwemeLink struct {
	Author string
	Kind   string // video, photo or live
	ID     string // empty for live links
}

// ParseAwemeLink extracts author, kind and id from a canonical post URL.
func ParseAwemeLink(u *url.URL) (AwemeLink, bool) {
	m := awemeLinkPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return AwemeLink{}, false
	}
	return AwemeLink{Author: m[1], Kind: m[2], ID: m[3]}, true
}

// GrabAwemeID resolves a short link id to the canonical post URL it
// redirects to. Resolved locations are cached under aweme:<shortID>.
func (s *Scraper) GrabAwemeID(ctx context.Context, shortID string) (*url.URL, error) {
	key := s.key(kindAweme, shortID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		if u, err := url.Parse(string(cached)); err == nil {
			return u, nil
		}
	}

	engine.IncrShortLinks()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.shortLink+"/"+url.PathEscape(shortID), nil)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not resolve short link", Err: err}
	}
	req.Header.Set("User-Agent", shortLinkUserAgent)

	resp, err := s.fetcher.DoNoRedirect(req)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not resolve short link", Err: err}
	}
	resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, engine.Errorf(engine.KindFailure, "no Location header found in response")
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "invalid short link target", Err: err}
	}

	s.cache.Set(ctx, key, []byte(location))
	return u, nil
}
