package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anatolykoptev/go_fxtok/internal/embed"
	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

const activityContentType = "application/activity+json; charset=utf-8"

// status serves the activity document of a post. The id parameter may
// carry inline flags: "hq" links the hq rendition, "desc" keeps the text.
func (s *Server) status(c echo.Context) error {
	id, hq, desc := embed.StatusParam(c.Param("videoId"))
	if !tiktok.ValidAwemeID(id) {
		return failJSON(c, http.StatusBadRequest, invalid("Invalid video ID"))
	}

	item, err := s.scraper.ScrapeVideoData(detached(c), id)
	if err != nil {
		return failJSON(c, statusFor(err), err)
	}

	opts := s.embed
	opts.HQ = hq || c.QueryParam("hq") == "true"
	opts.ForceDescription = desc
	return s.activityJSON(c, embed.Activity(item, id, opts))
}

// account serves the account document of a profile.
func (s *Server) account(c echo.Context) error {
	author := c.Param("author")
	if author == "" {
		return failJSON(c, http.StatusBadRequest, invalid("Missing author"))
	}

	info, err := s.scraper.ScrapeProfileData(detached(c), author)
	if err != nil {
		return failJSON(c, statusFor(err), err)
	}
	return s.activityJSON(c, embed.AccountFor(info, s.embed))
}

// live serves the live room of an account as read from its live page.
// The room changes by the minute, so the response is never cached.
func (s *Server) live(c echo.Context) error {
	author := c.Param("author")
	if author == "" {
		return failJSON(c, http.StatusBadRequest, invalid("Missing author"))
	}

	room, err := s.scraper.ScrapeLiveData(detached(c), author)
	if err != nil {
		return failJSON(c, statusFor(err), err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, noCacheControl)
	return c.JSON(http.StatusOK, room)
}

func (s *Server) activityJSON(c echo.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return failJSON(c, http.StatusInternalServerError, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=0")
	return c.Blob(http.StatusOK, activityContentType, data)
}
