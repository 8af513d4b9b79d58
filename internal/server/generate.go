package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anatolykoptev/go_fxtok/internal/embed"
	"github.com/anatolykoptev/go_fxtok/internal/engine"
	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

// awemeParam reads and validates a post id path parameter.
func awemeParam(c echo.Context, name string) (string, error) {
	return checkAwemeID(c.Param(name))
}

// videoParam is awemeParam for the video route, where players may append
// an extension such as ".mp4" to the id.
func videoParam(c echo.Context) (string, error) {
	id, _, _ := strings.Cut(c.Param("videoId"), ".")
	return checkAwemeID(id)
}

func checkAwemeID(id string) (string, error) {
	if id == "" {
		return "", invalid("Missing video ID")
	}
	if !tiktok.ValidAwemeID(id) {
		return "", invalid("Invalid video ID")
	}
	return id, nil
}

// video redirects to, or streams, the selected rendition of a post.
// Every failure past validation is an opaque 500.
func (s *Server) video(c echo.Context) error {
	id, err := videoParam(c)
	if err != nil {
		return failText(c, http.StatusBadRequest, err)
	}
	ctx := detached(c)

	item, err := s.scraper.ScrapeVideoData(ctx, id)
	if err != nil {
		return failText(c, http.StatusInternalServerError, err)
	}

	intent := tiktok.IntentFor(c.Request().UserAgent(), c.QueryParams())
	playURL, err := tiktok.SelectPlayURL(item, intent)
	if err != nil {
		return failText(c, http.StatusInternalServerError, err)
	}

	res, err := s.resolver.Resolve(ctx, playURL)
	if err != nil {
		slog.Warn("server: play URL resolve failed", slog.String("id", id), slog.Any("error", err))
		return failText(c, http.StatusInternalServerError, err)
	}
	if res.Response == nil {
		return c.Redirect(http.StatusFound, res.Location)
	}

	resp := res.Response
	defer resp.Body.Close()
	for _, h := range []string{echo.HeaderContentLength, "Accept-Ranges", "Content-Range", "Last-Modified", "ETag"} {
		if v := resp.Header.Get(h); v != "" {
			c.Response().Header().Set(h, v)
		}
	}
	return c.Stream(resp.StatusCode, resp.Header.Get(echo.HeaderContentType), resp.Body)
}

// imageByIndex redirects to the zero-based ?index image of an image post.
func (s *Server) imageByIndex(c echo.Context) error {
	id, err := awemeParam(c, "videoId")
	if err != nil {
		return failText(c, http.StatusBadRequest, err)
	}
	index := 0
	if raw := c.QueryParam("index"); raw != "" {
		if index, err = strconv.Atoi(raw); err != nil {
			return failText(c, http.StatusBadRequest, invalid("Invalid image index"))
		}
	}

	item, err := s.scraper.ScrapeVideoData(detached(c), id)
	if err != nil {
		return failText(c, statusFor(err), err)
	}
	if !item.HasImages() || index < 0 || index >= len(item.ImagePost.Images) {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Image not found"))
	}
	return s.redirectImage(c, item.ImagePost.Images[index].URL())
}

// imageByCount redirects to the one-based image of a post, asking the
// mirror when the post has no first-party image list.
func (s *Server) imageByCount(c echo.Context) error {
	id, err := awemeParam(c, "videoId")
	if err != nil {
		return failText(c, http.StatusBadRequest, err)
	}
	count, err := strconv.Atoi(c.Param("imageCount"))
	if err != nil || count < 1 {
		return failText(c, http.StatusBadRequest, invalid("Invalid image count"))
	}
	index := count - 1
	ctx := detached(c)

	item, err := s.scraper.ScrapeVideoData(ctx, id)
	if err != nil {
		return failText(c, statusFor(err), err)
	}

	if item.HasImages() {
		if index >= len(item.ImagePost.Images) {
			return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Image index out of range"))
		}
		return s.redirectImage(c, item.ImagePost.Images[index].URL())
	}

	images, err := s.mirror.Images(ctx, id)
	if err != nil {
		slog.Warn("server: mirror lookup failed", slog.String("id", id), slog.Any("error", err))
		return failText(c, http.StatusInternalServerError, engine.Errorf(engine.KindFailure, "could not fetch images"))
	}
	if index >= len(images) || images[index] == "" {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Image not found"))
	}
	return c.Redirect(http.StatusFound, images[index])
}

func (s *Server) redirectImage(c echo.Context, u string) error {
	if u == "" {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Image not found"))
	}
	return c.Redirect(http.StatusFound, u)
}

// pfp redirects to the best available avatar. Restricted accounts get a
// fixed placeholder instead of an error.
func (s *Server) pfp(c echo.Context) error {
	author := c.Param("author")
	if author == "" {
		return failText(c, http.StatusBadRequest, invalid("Missing author"))
	}

	user, err := s.scraper.ScrapePfpData(detached(c), author)
	if err != nil {
		if engine.KindOf(err) == engine.KindRestricted {
			return c.Redirect(http.StatusFound, restrictedAvatar)
		}
		return failText(c, statusFor(err), err)
	}
	avatar := user.Avatar()
	if avatar == "" {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Avatar not found"))
	}
	return c.Redirect(http.StatusFound, avatar)
}

// cover redirects to the full-size cover of a post.
func (s *Server) cover(c echo.Context) error {
	id, err := awemeParam(c, "videoId")
	if err != nil {
		return failText(c, http.StatusBadRequest, err)
	}

	item, err := s.scraper.ScrapeVideoData(detached(c), id)
	if err != nil {
		return failText(c, statusFor(err), err)
	}
	if item.Video.Cover == "" || item.Video.OriginCover == "" {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "Cover not found"))
	}
	return c.Redirect(http.StatusFound, item.Video.OriginCover)
}

func (s *Server) alternate(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(http.StatusOK, embed.Alternate(c.QueryParams()))
}

// short resolves a short link and hands over to the video route.
func (s *Server) short(c echo.Context) error {
	shortID := c.Param("shortId")
	if shortID == "" {
		return failText(c, http.StatusBadRequest, invalid("Missing short link"))
	}

	target, err := s.scraper.GrabAwemeID(detached(c), shortID)
	if err != nil {
		return failText(c, statusFor(err), err)
	}
	link, ok := tiktok.ParseAwemeLink(target)
	if !ok || link.ID == "" {
		return failText(c, http.StatusNotFound, engine.Errorf(engine.KindNotFound, "could not find a video id"))
	}

	dest := "/generate/video/" + link.ID
	if q := c.Request().URL.RawQuery; q != "" {
		dest += "?" + q
	}
	return c.Redirect(http.StatusFound, dest)
}
