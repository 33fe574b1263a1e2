package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

// requireAccessToken rejects requests without a valid access token and
// stores its claims on the echo context.
func (s *HTTPServer) requireAccessToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := s.extract(c.Request())
		if token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

func claimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	return claims, ok
}
