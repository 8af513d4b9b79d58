package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

const testID = "7311111111111111111"

type fakeScraper struct {
	mu      sync.Mutex
	calls   int
	items   map[string]*tiktok.ItemStruct
	users   map[string]*tiktok.UserInfo
	links   map[string]string
	live    map[string]*tiktok.LiveRoom
	failure error
}

func (f *fakeScraper) record() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.failure
}

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeScraper) ScrapeVideoData(_ context.Context, id string) (*tiktok.ItemStruct, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, engine.Errorf(engine.KindNotFound, "could not find video data")
}

func (f *fakeScraper) ScrapePfpData(ctx context.Context, author string) (*tiktok.DetailUser, error) {
	info, err := f.ScrapeProfileData(ctx, author)
	if err != nil {
		return nil, err
	}
	return &info.User, nil
}

func (f *fakeScraper) ScrapeProfileData(_ context.Context, author string) (*tiktok.UserInfo, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	if author == "locked" {
		return nil, engine.Errorf(engine.KindRestricted, "restricted")
	}
	if info, ok := f.users[author]; ok {
		return info, nil
	}
	return nil, engine.Errorf(engine.KindNotFound, "could not find user data")
}

func (f *fakeScraper) GrabAwemeID(_ context.Context, shortID string) (*url.URL, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	loc, ok := f.links[shortID]
	if !ok {
		return nil, engine.Errorf(engine.KindFailure, "no Location header found in response")
	}
	return url.Parse(loc)
}

func (f *fakeScraper) ScrapeLiveData(_ context.Context, author string) (*tiktok.LiveRoom, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	if room, ok := f.live[author]; ok {
		return room, nil
	}
	return nil, engine.Errorf(engine.KindFailure, "could not parse live data")
}

type fakeResolver struct {
	location string
	body     string
	err      error
	resolved []string
}

func (f *fakeResolver) Resolve(_ context.Context, playURL string) (*tiktok.Resolution, error) {
	f.resolved = append(f.resolved, playURL)
	if f.err != nil {
		return nil, f.err
	}
	if f.location != "" {
		return &tiktok.Resolution{Location: f.location}, nil
	}
	return &tiktok.Resolution{Response: &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"video/mp4"}, "Content-Length": {"9"}},
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}}, nil
}

type fakeMirror struct {
	images []string
	err    error
}

func (f *fakeMirror) Images(context.Context, string) ([]string, error) { return f.images, f.err }

func fixtureItem() *tiktok.ItemStruct {
	return &tiktok.ItemStruct{
		ID:     testID,
		Desc:   "clip",
		Author: tiktok.DetailUser{ID: "6800", UniqueID: "abc", Nickname: "Abc"},
		Video: tiktok.Video{
			Cover:       "https://p16.example/cover.jpeg",
			OriginCover: "https://p16.example/origin.jpeg",
			PlayAddr:    "https://v16.example/play.mp4",
			PlayAddrStruct: &tiktok.PlayAddr{URLList: []string{
				"https://v16.example/tos/x",
				"https://www.example.com/aweme/v1/play/?id=default",
			}},
			BitrateInfo: []tiktok.BitrateInfo{
				{CodecType: "h265_hvc1", PlayAddr: &tiktok.PlayAddr{DataSize: 3 << 20, URLList: []string{"https://www.example.com/aweme/v1/play/?id=h265"}}},
				{CodecType: "h264", PlayAddr: &tiktok.PlayAddr{DataSize: 5 << 20, URLList: []string{"https://www.example.com/aweme/v1/play/?id=h264"}}},
			},
		},
	}
}

func imageItem(n int) *tiktok.ItemStruct {
	item := fixtureItem()
	item.Video.PlayAddr = ""
	item.ImagePost = &tiktok.ImagePost{}
	for i := 0; i < n; i++ {
		var im tiktok.Image
		im.ImageURL.URLList = []string{"https://p16.example/img" + string(rune('0'+i)) + ".jpeg"}
		item.ImagePost.Images = append(item.ImagePost.Images, im)
	}
	return item
}

type harness struct {
	scraper  *fakeScraper
	resolver *fakeResolver
	mirror   *fakeMirror
	handler  http.Handler
}

func newHarness() *harness {
	h := &harness{
		scraper: &fakeScraper{
			items: map[string]*tiktok.ItemStruct{testID: fixtureItem(), "2": imageItem(3), "3": fixtureItem()},
			users: map[string]*tiktok.UserInfo{"abc": {
				User:  tiktok.DetailUser{ID: "6800", UniqueID: "abc", Nickname: "Abc", AvatarLarger: "https://p16.example/large.jpeg"},
				Stats: tiktok.UserStats{FollowerCount: 1500, HeartCount: 20, VideoCount: 3},
			}},
			links: map[string]string{"ZMabc": "https://www.tiktok.com/@abc/video/" + testID + "?_r=1"},
		},
		resolver: &fakeResolver{location: "https://cdn.example/final.mp4"},
		mirror:   &fakeMirror{images: []string{"https://mirror.example/1.jpeg"}},
	}
	h.handler = New(Config{OffloadURL: "https://offload.example"}, h.scraper, h.resolver, h.mirror).Handler()
	return h
}

func (h *harness) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestVideoValidationBeforeNetwork(t *testing.T) {
	h := newHarness()
	for _, target := range []string{"/generate/video/abc", "/generate/video/12345678901234567890", "/generate/video/.mp4"} {
		rec := h.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, noCacheControl, rec.Header().Get("Cache-Control"))
	}
	assert.Zero(t, h.scraper.callCount())
}

func TestExtensionOnlyOnVideoRoute(t *testing.T) {
	h := newHarness()
	for _, target := range []string{
		"/generate/cover/" + testID + ".whatever",
		"/generate/image/2.x",
		"/generate/image/2.jpeg/1",
	} {
		rec := h.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, h.scraper.callCount())

	rec := h.get(t, "/generate/video/"+testID+".mp4")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestVideoRedirect(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/generate/video/"+testID+".mp4")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://cdn.example/final.mp4", rec.Header().Get("Location"))
	assert.Equal(t, []string{"https://www.example.com/aweme/v1/play/?id=default"}, h.resolver.resolved)
}

func TestVideoIntents(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		ua      string
		wantURL string
	}{
		{"hq", "/generate/video/" + testID + "?hq=true", "Mozilla/5.0", "https://www.example.com/aweme/v1/play/?id=h265"},
		{"quality", "/generate/video/" + testID + "?quality=hq", "Mozilla/5.0", "https://www.example.com/aweme/v1/play/?id=h265"},
		{"telegram", "/generate/video/" + testID + "?hq=true", "TelegramBot (like TwitterBot)", "https://www.example.com/aweme/v1/play/?id=h264"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			rec := h.get(t, tt.target, "User-Agent", tt.ua)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, []string{tt.wantURL}, h.resolver.resolved)
		})
	}
}

func TestVideoStreamsBody(t *testing.T) {
	h := newHarness()
	h.resolver.location = ""
	h.resolver.body = "mp4-bytes"

	rec := h.get(t, "/generate/video/"+testID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4-bytes", rec.Body.String())
}

func TestVideoFailuresAreOpaque500(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/generate/video/999")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, noCacheControl, rec.Header().Get("Cache-Control"))

	h.scraper.items["4"] = &tiktok.ItemStruct{}
	rec = h.get(t, "/generate/video/4")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "could not find an aweme play URL", rec.Body.String())

	h.resolver.err = engine.Errorf(engine.KindFailure, "could not reach play URL")
	rec = h.get(t, "/generate/video/"+testID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestImageByIndex(t *testing.T) {
	h := newHarness()
	tests := []struct {
		target   string
		code     int
		location string
	}{
		{"/generate/image/2", http.StatusFound, "https://p16.example/img0.jpeg"},
		{"/generate/image/2?index=2", http.StatusFound, "https://p16.example/img2.jpeg"},
		{"/generate/image/2?index=3", http.StatusNotFound, ""},
		{"/generate/image/2?index=-1", http.StatusNotFound, ""},
		{"/generate/image/2?index=two", http.StatusBadRequest, ""},
		{"/generate/image/" + testID, http.StatusNotFound, ""},
		{"/generate/image/x1", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rec := h.get(t, tt.target)
		assert.Equal(t, tt.code, rec.Code, tt.target)
		assert.Equal(t, tt.location, rec.Header().Get("Location"), tt.target)
	}
}

func TestImageByCount(t *testing.T) {
	h := newHarness()
	tests := []struct {
		target   string
		code     int
		location string
	}{
		{"/generate/image/2/1", http.StatusFound, "https://p16.example/img0.jpeg"},
		{"/generate/image/2/3", http.StatusFound, "https://p16.example/img2.jpeg"},
		{"/generate/image/2/4", http.StatusNotFound, ""},
		{"/generate/image/2/0", http.StatusBadRequest, ""},
		{"/generate/image/2/x", http.StatusBadRequest, ""},
		// no first-party images: mirror fallback
		{"/generate/image/" + testID + "/1", http.StatusFound, "https://mirror.example/1.jpeg"},
		{"/generate/image/" + testID + "/2", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := h.get(t, tt.target)
		assert.Equal(t, tt.code, rec.Code, tt.target)
		assert.Equal(t, tt.location, rec.Header().Get("Location"), tt.target)
	}

	h.mirror.err = errors.New("mirror down")
	rec := h.get(t, "/generate/image/"+testID+"/1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mirror down")
}

func TestPfp(t *testing.T) {
	h := newHarness()

	rec := h.get(t, "/generate/pfp/abc")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://p16.example/large.jpeg", rec.Header().Get("Location"))

	rec = h.get(t, "/generate/pfp/locked")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://pldrs.tnktok.com/restricted.png", rec.Header().Get("Location"))

	rec = h.get(t, "/generate/pfp/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, noCacheControl, rec.Header().Get("Cache-Control"))
}

func TestCover(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/generate/cover/"+testID)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://p16.example/origin.jpeg", rec.Header().Get("Location"))

	h.scraper.failure = engine.Errorf(engine.KindFailure, "could not parse video data")
	rec = h.get(t, "/generate/cover/"+testID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "could not parse video data", rec.Body.String())
}

func TestAlternate(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/generate/alternate?unique_id=abc&nickname=Abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Zero(t, h.scraper.callCount())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Abc (@abc)", doc["author_name"])
}

func TestShortLink(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/generate/short/ZMabc?hq=true")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/generate/video/"+testID+"?hq=true", rec.Header().Get("Location"))

	rec = h.get(t, "/generate/short/ZMnone")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatus(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/api/v1/statuses/"+testID+"hq")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, activityContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=0", rec.Header().Get("Cache-Control"))

	var doc struct {
		ID    string `json:"id"`
		Media []struct {
			URL string `json:"url"`
		} `json:"media_attachments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, testID, doc.ID)
	require.Len(t, doc.Media, 1)
	assert.Equal(t, "https://offload.example/generate/video/"+testID+"?hq=true", doc.Media[0].URL)

	rec = h.get(t, "/api/v1/statuses/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = h.get(t, "/api/v1/statuses/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccount(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/api/v1/accounts/abc")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Username string `json:"username"`
		Fields   []struct {
			Value string `json:"value"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "abc", doc.Username)
	require.Len(t, doc.Fields, 1)
	assert.Equal(t, "👥 1.5K ❤️ 20 🎥 3", doc.Fields[0].Value)

	rec = h.get(t, "/api/v1/accounts/locked")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLive(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/api/v1/live/abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, noCacheControl, rec.Header().Get("Cache-Control"))

	var doc struct {
		UserInfo struct {
			User struct {
				RoomID string `json:"roomId"`
			} `json:"user"`
			LiveRoom struct {
				Title string `json:"title"`
				Stats struct {
					UserCount int `json:"userCount"`
				} `json:"liveRoomStats"`
			} `json:"liveRoom"`
		} `json:"liveRoomUserInfo"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "7400", doc.UserInfo.User.RoomID)
	assert.Equal(t, "late stream", doc.UserInfo.LiveRoom.Title)
	assert.Equal(t, 42, doc.UserInfo.LiveRoom.Stats.UserCount)

	rec = h.get(t, "/api/v1/live/nobody")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"could not parse live data"}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness()
	rec := h.get(t, "/health")
	assert.Equal(t, "ok", rec.Body.String())

	rec = h.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scope_resolutions ")
}
