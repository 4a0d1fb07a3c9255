package auth

import (
	"errors"
	"net/http"
	"time"

	"git.coderun.dev/coderun/coderun/src/config"
)

const TokenCookieName = "CodeRunToken"

var ErrNoToken = errors.New("no token cookie")

// NewTokenCookie stores the API token for later requests. The cookie expires
// together with the token.
func (s *Sealer) NewTokenCookie(token string, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:  TokenCookieName,
		Value: s.Seal(token),
		Path:  "/",

		Domain:  config.Config.Auth.CookieDomain,
		Expires: TokenExpiry(token, now, config.Config.Auth.DefaultTokenLifetime),

		Secure:   config.Config.Auth.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteTokenCookie() *http.Cookie {
	return &http.Cookie{
		Name:   TokenCookieName,
		Value:  "",
		Path:   "/",
		Domain: config.Config.Auth.CookieDomain,
		MaxAge: -1,
	}
}

// TokenFromRequest returns the API token stored in the request's cookie.
// ErrNoToken means the user is logged out; ErrInvalidToken means the cookie
// was tampered with or sealed under a different key and should be cleared.
func (s *Sealer) TokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoToken
	}
	return s.Open(cookie.Value)
}
