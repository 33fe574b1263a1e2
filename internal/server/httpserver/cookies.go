package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/models"
)

type cookieFactory struct {
	domain string
	secure bool
	loc    *time.Location
}

func newCookieFactory(cfg *config.Config) cookieFactory {
	return cookieFactory{
		domain: cfg.CookieDomain(),
		secure: cfg.CookieSecure(),
		loc:    cfg.Location(),
	}
}

func (f cookieFactory) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   f.domain,
		Expires:  expires.In(f.loc),
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// session returns the access and refresh cookies for p.
func (f cookieFactory) session(p *models.AuthPayload) []*http.Cookie {
	return []*http.Cookie{
		f.cookie(common.AccessTokenCookieName, p.AccessToken, p.AccessExpiry),
		f.cookie(common.RefreshTokenCookieName, p.RefreshToken, time.Unix(p.RefreshExpiry, 0)),
	}
}

// cleared returns expired cookies that make the browser drop both tokens.
func (f cookieFactory) cleared() []*http.Cookie {
	out := make([]*http.Cookie, 0, 2)
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := f.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		out = append(out, c)
	}
	return out
}
