package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

// Mirror queries a third-party mirror API for the image list of a post.
// It is only consulted when the first-party item has no images.
type Mirror struct {
	fetcher *engine.Fetcher
	apiURL  string
}

// NewMirror creates a mirror client for apiURL.
func NewMirror(fetcher *engine.Fetcher, apiURL string) *Mirror {
	return &Mirror{fetcher: fetcher, apiURL: apiURL}
}

type mirrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Images []string `json:"images"`
	} `json:"data"`
}

// Images returns the mirror's image URLs for awemeID, possibly empty.
func (m *Mirror) Images(ctx context.Context, awemeID string) ([]string, error) {
	engine.IncrMirrorRequests()

	form := url.Values{}
	form.Set("url", awemeID)
	form.Set("count", "12")
	form.Set("cursor", "0")
	form.Set("web", "1")
	form.Set("hd", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("mirror request: %w", err)
	}
	for k, v := range engine.ChromeHeaders() {
		req.Header.Set(k, v)
	}
	// Let the transport negotiate and decode compression itself.
	req.Header.Del("Accept-Encoding")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := m.fetcher.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror status %d", resp.StatusCode)
	}

	var out mirrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("mirror decode: %w", err)
	}
	if out.Data == nil {
		return nil, nil
	}
	return out.Data.Images, nil
}
