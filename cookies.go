package tenantauth

import (
	"net/http"
	"time"
)

// RefreshCookie builds the cookie that carries a Refresh token to the client.
//
// The cookie is HttpOnly on path "/". With Cookie.Secure it is also Secure
// with SameSite=None so that cross-site frontends can send it; otherwise it
// uses SameSite=Lax.
func (e *Engine) RefreshCookie(token string, expiresAt time.Time) *http.Cookie {
	c := e.baseCookie()
	c.Value = token
	c.Expires = expiresAt
	if ttl := int(expiresAt.Sub(e.now()).Seconds()); ttl > 0 {
		c.MaxAge = ttl
	}
	return c
}

// ClearRefreshCookie returns a cookie with the same name, path and flags as
// RefreshCookie that instructs the client to delete it.
func (e *Engine) ClearRefreshCookie() *http.Cookie {
	c := e.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// RefreshCookieName is the name used by RefreshCookie.
func (e *Engine) RefreshCookieName() string {
	return e.config.Cookie.Name
}

func (e *Engine) baseCookie() *http.Cookie {
	c := &http.Cookie{
		Name:     e.config.Cookie.Name,
		Path:     "/",
		Domain:   e.config.Cookie.Domain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if e.config.Cookie.Secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
