package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anatolykoptev/go_fxtok/internal/engine"
)

const (
	noCacheControl   = "no-cache, no-store, must-revalidate"
	restrictedAvatar = "https://pldrs.tnktok.com/restricted.png"
)

func statusFor(err error) int {
	switch engine.KindOf(err) {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindNotFound, engine.KindRestricted:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// failText writes err as plain text with caching disabled, so transient
// failures are never kept by intermediaries.
func failText(c echo.Context, code int, err error) error {
	c.Response().Header().Set(echo.HeaderCacheControl, noCacheControl)
	return c.String(code, err.Error())
}

func failJSON(c echo.Context, code int, err error) error {
	c.Response().Header().Set(echo.HeaderCacheControl, noCacheControl)
	return c.JSON(code, map[string]string{"error": err.Error()})
}

func invalid(msg string) error {
	return engine.Errorf(engine.KindValidation, "%s", msg)
}
