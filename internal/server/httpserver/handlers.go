package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/labstack/echo/v4"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expiry"`
	RefreshExpiry int64     `json:"refresh_expiry"`
}

func (s *HTTPServer) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	payload, err := s.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respondSession(c, payload)
}

// refresh takes the bearer from the refresh cookie, falling back to the
// JSON body.
func (s *HTTPServer) refresh(c echo.Context) error {
	bearer := refreshBearer(c)

	payload, err := s.sessions.Refresh(c.Request().Context(), bearer)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respondSession(c, payload)
}

func (s *HTTPServer) signOut(c echo.Context) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
	}

	if err := s.sessions.SignOut(c.Request().Context(), claims.UserID(), refreshBearer(c)); err != nil {
		return s.fail(c, err)
	}

	for _, ck := range s.cookies.cleared() {
		c.SetCookie(ck)
	}
	return c.JSON(http.StatusOK, true)
}

func (s *HTTPServer) health(c echo.Context) error {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request().Context()); err != nil {
			s.logger.Warn(c.Request().Context(), "health check failed", "error", err)
			return c.String(http.StatusServiceUnavailable, "unavailable")
		}
	}
	return c.String(http.StatusOK, "ok")
}

func (s *HTTPServer) respondSession(c echo.Context, p *models.AuthPayload) error {
	for _, ck := range s.cookies.session(p) {
		c.SetCookie(ck)
	}
	return c.JSON(http.StatusOK, sessionResp{
		AccessToken:   p.AccessToken,
		AccessExpiry:  p.AccessExpiry,
		RefreshExpiry: p.RefreshExpiry,
	})
}

func refreshBearer(c echo.Context) string {
	if ck, err := c.Cookie(common.RefreshTokenCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

// fail maps session errors to status codes. Internal details are logged,
// not returned.
func (s *HTTPServer) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrMissingToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrInvalidUser):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	default:
		s.logger.Error(c.Request().Context(), "request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
