// Package httpserver exposes the session manager over HTTP with tokens
// carried in cookies.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 5 * time.Second

// Sessions is the session API served over HTTP.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*models.AuthPayload, error)
	Refresh(ctx context.Context, bearer string) (*models.AuthPayload, error)
	SignOut(ctx context.Context, userID, bearer string) error
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	address  string
	echo     *echo.Echo
	sessions Sessions
	tokens   TokenParser
	extract  TokenExtractor
	cookies  cookieFactory
	pinger   Pinger
	logger   logging.Logger
}

// NewHTTPServer wires routes. metrics may be nil to skip GET /metrics.
func NewHTTPServer(cfg *config.Config, l logging.Logger, sessions Sessions, tokens TokenParser, pinger Pinger, metrics http.Handler) *HTTPServer {
	s := &HTTPServer{
		address:  cfg.EndpointAddrHTTP,
		sessions: sessions,
		tokens:   tokens,
		extract:  NewTokenExtractor(cfg.TokenSource),
		cookies:  newCookieFactory(cfg),
		pinger:   pinger,
		logger:   l.With("module", "http_server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug(c.Request().Context(), "request",
				"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	g := e.Group("/auth")
	g.POST("/login", s.login)
	g.POST("/refresh", s.refresh)
	g.POST("/signOut", s.signOut, s.requireAccessToken)

	e.GET("/healthz", s.health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	s.echo = e
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
