package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// RateLimiter gates attempts per route and identifier. Window reports the
// fixed window length so throttled responses can carry a Retry-After hint.
type RateLimiter interface {
	Allow(ctx context.Context, route, identifier string) error
	Window() time.Duration
}

// writeRateLimited answers a throttled request, hinting when the window
// rolls over.
func writeRateLimited(w http.ResponseWriter, limiter RateLimiter) {
	if window := limiter.Window(); window > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	}
	pkghttp.WriteRateLimitError(w)
}

// AuthServiceInterface defines the interface for the password login stage
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, lane string, reqCtx services.RequestContext) (*services.LoginResult, error)
}

// SessionServiceInterface defines session refresh
type SessionServiceInterface interface {
	Refresh(ctx context.Context, refreshToken string) (*services.SessionTokens, error)
}

// AuthHandler handles login, refresh, and logout
type AuthHandler struct {
	service      AuthServiceInterface
	sessions     SessionServiceInterface
	limiter      RateLimiter
	ipConfig     *pkghttp.IPConfig
	cookieCfg    auth.CookieConfig
	ticketExpiry time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, sessions SessionServiceInterface, limiter RateLimiter, ipConfig *pkghttp.IPConfig, cookieCfg auth.CookieConfig, ticketExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		service:      service,
		sessions:     sessions,
		limiter:      limiter,
		ipConfig:     ipConfig,
		cookieCfg:    cookieCfg,
		ticketExpiry: ticketExpiry,
	}
}

// requestContext pulls attribution fields off the request
func requestContext(r *http.Request, ipConfig *pkghttp.IPConfig) services.RequestContext {
	return services.RequestContext{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Login handles POST /auth/login. Success either sets session cookies
// (MFA disabled) or sets the pending-MFA ticket cookie and tells the client
// which factor to present.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "login", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.Lane, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.MFARequired {
		auth.SetTicketCookie(w, result.Ticket, h.ticketExpiry, h.cookieCfg)
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			MFARequired:      true,
			Method:           result.Method,
			AvailableMethods: result.AvailableMethods,
		})
		return
	}

	auth.SetSessionCookies(w, result.Tokens.AccessToken, result.Tokens.RefreshToken,
		result.Tokens.AccessExpiry, result.Tokens.RefreshExpiry, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Redirect: redirectPath(result.Tokens)})
}

// Refresh handles POST /auth/refresh using the refresh token cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := auth.GetCookie(r, auth.CookieRefreshToken)
	if refreshToken == "" {
		pkghttp.WriteAuthError(w, "Missing refresh token")
		return
	}

	tokens, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		auth.ClearSessionCookies(w, h.cookieCfg)
		writeServiceError(w, err)
		return
	}

	auth.SetSessionCookies(w, tokens.AccessToken, tokens.RefreshToken,
		tokens.AccessExpiry, tokens.RefreshExpiry, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Session refreshed"})
}

// Logout handles POST /auth/logout by dropping the session cookies. The
// short access token lifetime bounds how long the signed token stays live.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookies(w, h.cookieCfg)
	auth.ClearTicketCookie(w, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// redirectPath falls back to the root when the service left the landing
// path unset.
func redirectPath(tokens *services.SessionTokens) string {
	if tokens.Redirect == "" {
		return "/"
	}
	return tokens.Redirect
}
