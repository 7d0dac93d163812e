package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// MFAServiceInterface defines the second-factor verification operations
type MFAServiceInterface interface {
	RequestEmailCode(ctx context.Context, ticket string, reqCtx services.RequestContext) (string, error)
	VerifyEmail(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
	VerifyTOTP(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
	VerifyPasskey(ctx context.Context, ticket string, assertion json.RawMessage, reqCtx services.RequestContext) (*services.SessionTokens, error)
	SetupTOTP(ctx context.Context, accountID string, reqCtx services.RequestContext) (*services.TOTPSetupResult, error)
	ConfirmTOTP(ctx context.Context, accountID, code string, reqCtx services.RequestContext) error
	RegisterPasskey(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx services.RequestContext) error
}

// MFAHandler handles the second stage of login plus TOTP enrollment
type MFAHandler struct {
	service      MFAServiceInterface
	limiter      RateLimiter
	ipConfig     *pkghttp.IPConfig
	cookieCfg    auth.CookieConfig
	ticketExpiry time.Duration
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface, limiter RateLimiter, ipConfig *pkghttp.IPConfig, cookieCfg auth.CookieConfig, ticketExpiry time.Duration) *MFAHandler {
	return &MFAHandler{
		service:      service,
		limiter:      limiter,
		ipConfig:     ipConfig,
		cookieCfg:    cookieCfg,
		ticketExpiry: ticketExpiry,
	}
}

// ticket reads the pending-MFA ticket cookie; an empty value is reported
// to the client identically to a bad ticket.
func (h *MFAHandler) ticket(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticket := auth.GetCookie(r, auth.CookieMFATicket)
	if ticket == "" {
		pkghttp.WriteAuthError(w, "Invalid MFA ticket")
		return "", false
	}
	return ticket, true
}

// finishSession swaps the spent ticket cookie for session cookies.
func (h *MFAHandler) finishSession(w http.ResponseWriter, tokens *services.SessionTokens) {
	auth.ClearTicketCookie(w, h.cookieCfg)
	auth.SetSessionCookies(w, tokens.AccessToken, tokens.RefreshToken,
		tokens.AccessExpiry, tokens.RefreshExpiry, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{Redirect: redirectPath(tokens)})
}

// RequestEmailCode handles POST /auth/mfa/email/request. The ticket rotates
// to the email method and the response replaces the ticket cookie.
func (h *MFAHandler) RequestEmailCode(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.ticket(w, r)
	if !ok {
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "mfa_email_request", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	newTicket, err := h.service.RequestEmailCode(r.Context(), ticket, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.SetTicketCookie(w, newTicket, h.ticketExpiry, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		MFARequired: true,
		Method:      "email",
	})
}

// VerifyEmail handles POST /auth/mfa/email/verify
func (h *MFAHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.verifyWithCode(w, r, "mfa_email_verify", h.service.VerifyEmail)
}

// VerifyTOTP handles POST /auth/mfa/totp/verify
func (h *MFAHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	h.verifyWithCode(w, r, "mfa_totp_verify", h.service.VerifyTOTP)
}

func (h *MFAHandler) verifyWithCode(w http.ResponseWriter, r *http.Request, route string, verify func(context.Context, string, string, services.RequestContext) (*services.SessionTokens, error)) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	ticket, ok := h.ticket(w, r)
	if !ok {
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), route, reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	tokens, err := verify(r.Context(), ticket, req.Code, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.finishSession(w, tokens)
}

// VerifyPasskey handles POST /auth/mfa/passkey/verify
func (h *MFAHandler) VerifyPasskey(w http.ResponseWriter, r *http.Request) {
	var req VerifyPasskeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	ticket, ok := h.ticket(w, r)
	if !ok {
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "mfa_passkey_verify", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	tokens, err := h.service.VerifyPasskey(r.Context(), ticket, req.Assertion, reqCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.finishSession(w, tokens)
}

// SetupTOTP handles POST /auth/mfa/setup/totp (authenticated)
func (h *MFAHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteAuthError(w, "Authentication required")
		return
	}

	result, err := h.service.SetupTOTP(r.Context(), claims.AccountID, requestContext(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TOTPSetupResponse{QRCode: result.QRCodeDataURL})
}

// ConfirmTOTP handles POST /auth/mfa/setup/totp/verify (authenticated)
func (h *MFAHandler) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteAuthError(w, "Authentication required")
		return
	}

	var req ConfirmTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.service.ConfirmTOTP(r.Context(), claims.AccountID, req.Code, requestContext(r, h.ipConfig)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "MFA enabled"})
}

// RegisterPasskey handles POST /auth/mfa/setup/passkey (authenticated)
func (h *MFAHandler) RegisterPasskey(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteAuthError(w, "Authentication required")
		return
	}

	var req RegisterPasskeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	credential := models.PasskeyCredential{
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		SignCount:    req.SignCount,
		Name:         req.Name,
	}
	if err := h.service.RegisterPasskey(r.Context(), claims.AccountID, credential, requestContext(r, h.ipConfig)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Passkey registered"})
}
