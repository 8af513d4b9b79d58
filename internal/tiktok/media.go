package tiktok

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

// Intent selects the rendition policy for a play request.
type Intent int

const (
	IntentDefault     Intent = iota // direct play address, no bitrate selection
	IntentHighQuality               // HEVC rendition
	IntentAutomated                 // size-capped, non-HEVC rendition for chat preview bots
)

func (i Intent) String() string {
	switch i {
	case IntentHighQuality:
		return "hq"
	case IntentAutomated:
		return "automated"
	default:
		return "default"
	}
}

const (
	playPathMarker = "/aweme/v1/play/"
	hevcMarker     = "h265"

	// Largest attachment an automated consumer accepts (20 MiB).
	maxAutomatedSize = 20 << 20

	automatedUASignature = "TelegramBot"

	resolveUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
)

// IntentFor derives the intent from the caller's User-Agent and query.
// An automated consumer gets the size-capped policy even when it asks for hq.
func IntentFor(userAgent string, query url.Values) Intent {
	if strings.Contains(userAgent, automatedUASignature) {
		return IntentAutomated
	}
	if query.Get("hq") == "true" || query.Get("quality") == "hq" {
		return IntentHighQuality
	}
	return IntentDefault
}

// SelectPlayURL picks the play URL for item under intent. Candidate lists are
// filtered by the play path marker, never taken by position.
func SelectPlayURL(item *ItemStruct, intent Intent) (string, error) {
	var candidates []string

	switch intent {
	case IntentHighQuality:
		for i := range item.Video.BitrateInfo {
			b := &item.Video.BitrateInfo[i]
			if strings.Contains(b.CodecType, hevcMarker) {
				if b.PlayAddr != nil {
					candidates = b.PlayAddr.URLList
				}
				break
			}
		}

	case IntentAutomated:
		var best *BitrateInfo
		for i := range item.Video.BitrateInfo {
			b := &item.Video.BitrateInfo[i]
			if b.PlayAddr == nil || strings.Contains(b.CodecType, hevcMarker) {
				continue
			}
			size := int64(b.PlayAddr.DataSize)
			if size <= 0 || size > maxAutomatedSize {
				continue
			}
			// Strictly greater keeps the first of equally sized renditions.
			if best == nil || size > int64(best.PlayAddr.DataSize) {
				best = b
			}
		}
		if best != nil {
			candidates = best.PlayAddr.URLList
		}

	default:
		if item.Video.PlayAddrStruct != nil {
			candidates = item.Video.PlayAddrStruct.URLList
		}
	}

	for _, u := range candidates {
		if strings.Contains(u, playPathMarker) {
			return u, nil
		}
	}
	return "", engine.Errorf(engine.KindNotFound, "could not find an aweme play URL")
}

// Resolution is the outcome of a redirect check: either a final Location or
// the upstream response itself, whose Body the caller must stream and close.
type Resolution struct {
	Location string
	Response *http.Response
}

// Resolver performs the single redirect hop that turns a play URL into a
// session-independent CDN location.
type Resolver struct {
	fetcher *engine.Fetcher
}

// NewResolver creates a resolver on top of fetcher's no-redirect client.
func NewResolver(fetcher *engine.Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve issues exactly one GET to playURL with redirects disabled and no
// session cookies. Session cookies can make the CDN answer with a signed page
// URL that requires login, so the request must stay anonymous.
func (r *Resolver) Resolve(ctx context.Context, playURL string) (*Resolution, error) {
	engine.IncrRedirectChecks()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playURL, nil)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "invalid play URL", Err: err}
	}
	req.Header.Set("User-Agent", resolveUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := r.fetcher.DoNoRedirect(req)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindFailure, Msg: "could not reach play URL", Err: err}
	}

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		loc := resp.Header.Get("Location")
		if loc == "" {
			loc = playURL
		}
		return &Resolution{Location: loc}, nil
	}
	return &Resolution{Response: resp}, nil
}
