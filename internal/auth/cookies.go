package auth

import (
	"net/http"
	"time"
)

// Cookie names for the three carried tokens.
const (
	CookieMFATicket    = "mfa_ticket"
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetTicketCookie carries the pending-MFA ticket. Rotation overwrites it.
func SetTicketCookie(w http.ResponseWriter, ticket string, maxAge time.Duration, config CookieConfig) {
	setCookie(w, CookieMFATicket, ticket, maxAge, config)
}

// SetSessionCookies sets both session token cookies.
func SetSessionCookies(w http.ResponseWriter, access, refresh string, accessMaxAge, refreshMaxAge time.Duration, config CookieConfig) {
	setCookie(w, CookieAccessToken, access, accessMaxAge, config)
	setCookie(w, CookieRefreshToken, refresh, refreshMaxAge, config)
}

// ClearTicketCookie removes the pending-MFA ticket cookie.
func ClearTicketCookie(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, CookieMFATicket, config)
}

// ClearSessionCookies removes both session token cookies.
func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	clearCookie(w, CookieAccessToken, config)
	clearCookie(w, CookieRefreshToken, config)
}

// GetCookie returns the named cookie's value, or "" if absent.
func GetCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true, // never readable from JavaScript
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

func clearCookie(w http.ResponseWriter, name string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
