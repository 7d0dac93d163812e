package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// RecoveryServiceInterface defines recovery code operations
type RecoveryServiceInterface interface {
	Generate(ctx context.Context, accountID string, reqCtx services.RequestContext) ([]string, error)
	Consume(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
}

// RecoveryHandler handles recovery code redemption and generation
type RecoveryHandler struct {
	service   RecoveryServiceInterface
	limiter   RateLimiter
	ipConfig  *pkghttp.IPConfig
	cookieCfg auth.CookieConfig
}

// NewRecoveryHandler creates a new RecoveryHandler
func NewRecoveryHandler(service RecoveryServiceInterface, limiter RateLimiter, ipConfig *pkghttp.IPConfig, cookieCfg auth.CookieConfig) *RecoveryHandler {
	return &RecoveryHandler{
		service:   service,
		limiter:   limiter,
		ipConfig:  ipConfig,
		cookieCfg: cookieCfg,
	}
}

// Consume handles POST /auth/recovery/consume. Any valid ticket plus a
// live recovery code yields a session; the code burns on use.
func (h *RecoveryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req RecoveryConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	ticket := auth.GetCookie(r, auth.CookieMFATicket)
	if ticket == "" {
		pkghttp.WriteAuthError(w, "Invalid MFA ticket")
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "mfa_recovery_consume", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	tokens, err := h.service.Consume(r.Context(), ticket, req.Code, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.ClearTicketCookie(w, h.cookieCfg)
	auth.SetSessionCookies(w, tokens.AccessToken, tokens.RefreshToken,
		tokens.AccessExpiry, tokens.RefreshExpiry, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{Redirect: redirectPath(tokens)})
}

// Generate handles POST /auth/recovery/generate. The route is mounted
// behind session auth plus an owner role check; a fresh batch invalidates
// every previously issued code.
func (h *RecoveryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteAuthError(w, "Authentication required")
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "mfa_recovery_generate", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	codes, err := h.service.Generate(r.Context(), claims.AccountID, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RecoveryCodesResponse{Codes: codes})
}
