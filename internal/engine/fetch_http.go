package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Fixed browser identity for origin page requests.
const (
	PageAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	PageUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"
)

// CacheHint becomes the request's "Cache-Control: max-age" directive: a
// shared cache in front of the origin may answer with a stored copy up to
// TTL old instead of forwarding the request. Nil sends no directive.
type CacheHint struct {
	TTL time.Duration
}

// Fetcher issues outbound requests. Page fetches carry the fixed header set
// and the shared Session; raw requests (Do, DoNoRedirect) carry neither.
type Fetcher struct {
	client   *http.Client
	noFollow *http.Client
	session  *Session
	limiter  *rate.Limiter
	maxTries uint
}

// NewFetcher creates a fetcher bound to session.
func NewFetcher(cfg Config, session *Session) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = newFetchClient(cfg.FetchTimeout)
	}
	headerTimeout := client.Timeout
	if headerTimeout <= 0 {
		headerTimeout = cfg.FetchTimeout
	}
	// Media bodies are streamed to callers and may take longer than any
	// fetch timeout, so only the connect and header phases are bounded.
	noFollow := &http.Client{
		Transport: streamTransport(client.Transport, headerTimeout),
		Jar:       nil,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	f := &Fetcher{
		client:   client,
		noFollow: noFollow,
		session:  session,
		maxTries: 1,
	}
	if cfg.FetchMaxTries > 1 {
		f.maxTries = uint(cfg.FetchMaxTries)
	}
	if cfg.OriginRPS > 0 {
		burst := int(cfg.OriginRPS)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.OriginRPS), burst)
	}
	return f
}

// newFetchClient creates an HTTP client with proper settings for web scraping.
func newFetchClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// streamTransport derives a transport from rt whose response headers must
// arrive within timeout. The body is left unbounded.
func streamTransport(rt http.RoundTripper, timeout time.Duration) http.RoundTripper {
	var t *http.Transport
	switch base := rt.(type) {
	case nil:
		t = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		t = base.Clone()
	default:
		return rt
	}
	if timeout > 0 {
		t.ResponseHeaderTimeout = timeout
	}
	if t.TLSHandshakeTimeout == 0 {
		t.TLSHandshakeTimeout = 15 * time.Second
	}
	return t
}

// Session returns the cookie context this fetcher reads and updates.
func (f *Fetcher) Session() *Session { return f.session }

// FetchPage GETs pageURL with the browser header set and session cookies,
// merges response cookies back into the session and returns the body.
// Transient statuses and network errors are retried; any other status is
// returned as-is and left for the caller to interpret.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string, hint *CacheHint) (string, error) {
	metrics.PageFetches.Add(1)

	operation := func() (string, error) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return "", backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("Accept", PageAccept)
		req.Header.Set("User-Agent", PageUserAgent)
		req.Header.Set("Accept-Encoding", "gzip")
		if cookie := f.session.Header(); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
		if hint != nil && hint.TTL > 0 {
			req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(hint.TTL.Seconds())))
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if isRetryable(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		defer resp.Body.Close()

		f.session.Merge(resp)

		if IsRetryableStatus(resp.StatusCode) {
			return "", &httpStatusError{StatusCode: resp.StatusCode}
		}

		body, err := readResponseBody(resp)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(body), nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(f.maxTries),
	)
	if err != nil {
		metrics.PageFetchErrors.Add(1)
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return body, nil
}

// Do sends req without session cookies, following redirects.
func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}

// DoNoRedirect sends req without session cookies and returns the first
// response as-is, including 3xx responses.
func (f *Fetcher) DoNoRedirect(req *http.Request) (*http.Response, error) {
	return f.noFollow.Do(req)
}

// readResponseBody reads the response body, handling gzip decompression if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(resp.Body)
}
