package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// PasswordServiceInterface defines password reset operations
type PasswordServiceInterface interface {
	Forgot(ctx context.Context, email string, reqCtx services.RequestContext)
	Reset(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error
}

// PasswordHandler handles the forgot/reset password flow
type PasswordHandler struct {
	service  PasswordServiceInterface
	limiter  RateLimiter
	ipConfig *pkghttp.IPConfig
}

// NewPasswordHandler creates a new PasswordHandler
func NewPasswordHandler(service PasswordServiceInterface, limiter RateLimiter, ipConfig *pkghttp.IPConfig) *PasswordHandler {
	return &PasswordHandler{
		service:  service,
		limiter:  limiter,
		ipConfig: ipConfig,
	}
}

// Forgot handles POST /auth/password/forgot. The response is identical
// whether or not the email maps to an account.
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "password_forgot", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	h.service.Forgot(r.Context(), req.Email, reqCtx)
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{
		Message: "If that email is registered, a reset link is on its way",
	})
}

// Reset handles POST /auth/password/reset
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteValidationError(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	reqCtx := requestContext(r, h.ipConfig)
	if err := h.limiter.Allow(r.Context(), "password_reset", reqCtx.IPAddress); err != nil {
		writeRateLimited(w, h.limiter)
		return
	}

	if err := h.service.Reset(r.Context(), req.Rid, req.Token, req.NewPassword, reqCtx); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password updated. Please log in again."})
}
