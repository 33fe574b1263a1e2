package httpserver

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/config"
)

// TokenExtractor pulls an access token out of a request; "" when absent.
type TokenExtractor func(r *http.Request) string

// HeaderExtractor reads "Authorization: Bearer <token>", then the
// access_token header.
func HeaderExtractor(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.Header.Get(common.AccessTokenHeaderName)
}

// CookieExtractor reads the access token cookie.
func CookieExtractor(r *http.Request) string {
	c, err := r.Cookie(common.AccessTokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// AnyExtractor tries the header first, then the cookie.
func AnyExtractor(r *http.Request) string {
	if t := HeaderExtractor(r); t != "" {
		return t
	}
	return CookieExtractor(r)
}

// NewTokenExtractor returns the extractor for a config.TokenSource value.
func NewTokenExtractor(source string) TokenExtractor {
	switch source {
	case config.TokenSourceHeader:
		return HeaderExtractor
	case config.TokenSourceCookie:
		return CookieExtractor
	default:
		return AnyExtractor
	}
}
