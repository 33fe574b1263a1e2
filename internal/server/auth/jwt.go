// Package auth holds the session primitives: access-token signing, password
// and refresh-token hashing, and credential verification.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims. Subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// AccessTokenIssuer signs and verifies HS256 access tokens.
type AccessTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

// NewAccessTokenIssuer returns an issuer producing tokens valid for ttl.
// Expiry times are reported in loc (UTC when nil).
func NewAccessTokenIssuer(secret []byte, issuer string, ttl time.Duration, loc *time.Location) *AccessTokenIssuer {
	if loc == nil {
		loc = time.UTC
	}
	return &AccessTokenIssuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		loc:    loc,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (i *AccessTokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for user and returns it with its expiry.
func (i *AccessTokenIssuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt.In(i.loc), nil
}

// Parse verifies signature, algorithm and expiry of tokenString.
// It returns common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for everything else.
func (i *AccessTokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
