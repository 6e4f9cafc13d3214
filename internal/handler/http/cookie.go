package http

import (
	"net/http"
	"time"
)

// Refresh token cookie attributes.
const (
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/api/auth"
)

// refreshCookies writes and clears the refresh token cookie. The refresh
// token only ever travels in this cookie, never in a JSON body.
type refreshCookies struct {
	secure bool
	maxAge time.Duration
}

func (c refreshCookies) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c refreshCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshToken returns the refresh token cookie of r, or "" if absent.
func refreshToken(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
