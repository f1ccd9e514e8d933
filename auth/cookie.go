package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie carrying the JWT.
const CookieName = "polizas_token"

// SetTokenCookie writes the JWT as an HttpOnly cookie living as long as the
// session. domain may be empty.
func SetTokenCookie(w http.ResponseWriter, token, domain string, ttl time.Duration, secure bool) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
	if domain != "" {
		c.Domain = domain
	}
	http.SetCookie(w, c)
}

// ClearTokenCookie removes the session cookie, matching the Domain attribute
// used when it was set.
func ClearTokenCookie(w http.ResponseWriter, domain string) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if domain != "" {
		c.Domain = domain
	}
	http.SetCookie(w, c)
}
