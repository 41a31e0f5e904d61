package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/trust"
)

// setTokenCookies writes the access and refresh cookies for a token pair.
func setTokenCookies(c *gin.Context, pair *auth.TokenPair, cookieCfg config.CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(trust.CookieAccessToken, pair.AccessToken,
		cookieMaxAge(pair.AccessExpiresAt), "/", cookieCfg.Domain, cookieCfg.Secure, true)
	c.SetCookie(trust.CookieRefreshToken, pair.RefreshToken,
		cookieMaxAge(pair.RefreshExpiresAt), "/", cookieCfg.Domain, cookieCfg.Secure, true)
}

// clearTokenCookies expires both token cookies.
func clearTokenCookies(c *gin.Context, cookieCfg config.CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(trust.CookieAccessToken, "", -1, "/", cookieCfg.Domain, cookieCfg.Secure, true)
	c.SetCookie(trust.CookieRefreshToken, "", -1, "/", cookieCfg.Domain, cookieCfg.Secure, true)
}

// cookieMaxAge converts an absolute expiry into a cookie max age.
func cookieMaxAge(expiresAt time.Time) int {
	seconds := int(time.Until(expiresAt).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
