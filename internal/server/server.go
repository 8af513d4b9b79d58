// Package server exposes the generate and status routes over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anatolykoptev/go_fxtok/internal/embed"
	"github.com/anatolykoptev/go_fxtok/internal/engine"
	"github.com/anatolykoptev/go_fxtok/internal/tiktok"
)

type (
	// Scraper is the subset of tiktok.Scraper the routes depend on.
	Scraper interface {
		ScrapeVideoData(ctx context.Context, awemeID string) (*tiktok.ItemStruct, error)
		ScrapePfpData(ctx context.Context, author string) (*tiktok.DetailUser, error)
		ScrapeProfileData(ctx context.Context, author string) (*tiktok.UserInfo, error)
		GrabAwemeID(ctx context.Context, shortID string) (*url.URL, error)
		ScrapeLiveData(ctx context.Context, author string) (*tiktok.LiveRoom, error)
	}

	Resolver interface {
		Resolve(ctx context.Context, playURL string) (*tiktok.Resolution, error)
	}

	Mirror interface {
		Images(ctx context.Context, awemeID string) ([]string, error)
	}

	Config struct {
		Addr       string
		OffloadURL string
	}

	// Server is a thin wrapper around the echo router. Handlers detach from
	// client cancellation so a started resolution always runs to completion.
	Server struct {
		config   Config
		ec       *echo.Echo
		scraper  Scraper
		resolver Resolver
		mirror   Mirror
		embed    embed.Options
	}
)

// New constructs the router with every route registered.
func New(config Config, scraper Scraper, resolver Resolver, mirror Mirror) *Server {
	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.OnAddRouteHandler = func(_ string, route echo.Route, _ echo.HandlerFunc, _ []echo.MiddlewareFunc) {
		slog.Debug("server: route registered", slog.String("method", route.Method), slog.String("path", route.Path))
	}

	s := &Server{
		config:   config,
		ec:       ec,
		scraper:  scraper,
		resolver: resolver,
		mirror:   mirror,
		embed:    embed.Options{OffloadURL: config.OffloadURL},
	}

	ec.Use(middleware.Recover())
	ec.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	ec.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			slog.LogAttrs(context.Background(), level, "http: request",
				slog.String("id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ua", v.UserAgent),
			)
			return nil
		},
	}))

	gen := ec.Group("/generate")
	gen.GET("/video/:videoId", s.video)
	gen.GET("/image/:videoId", s.imageByIndex)
	gen.GET("/image/:videoId/:imageCount", s.imageByCount)
	gen.GET("/pfp/:author", s.pfp)
	gen.GET("/cover/:videoId", s.cover)
	gen.GET("/alternate", s.alternate)
	gen.GET("/short/:shortId", s.short)

	api := ec.Group("/api/v1")
	api.GET("/statuses/:videoId", s.status)
	api.GET("/accounts/:author", s.account)
	api.GET("/live/:author", s.live)

	ec.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	ec.GET("/metrics", func(c echo.Context) error { return c.String(http.StatusOK, engine.FormatMetrics()) })

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.ec }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", slog.String("addr", s.config.Addr))
		errCh <- s.ec.Start(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ec.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// detached returns the request context stripped of client cancellation.
func detached(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}
