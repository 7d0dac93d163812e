package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/masthead-news/masthead/internal/handlers"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/services"
	pkgauth "github.com/masthead-news/masthead/pkg/auth"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
	"github.com/stretchr/testify/assert"
)

func newPasswordHandler(mock *handlers.MockPasswordService, limiter handlers.RateLimiter) *handlers.PasswordHandler {
	if limiter == nil {
		limiter = handlers.AllowAllLimiter{}
	}
	return handlers.NewPasswordHandler(mock, limiter, nil)
}

func TestForgot_AlwaysReturnsOK(t *testing.T) {
	// The response must not reveal whether the email maps to an account,
	// so the handler has no error path from the service at all.
	var gotEmail string
	mock := &handlers.MockPasswordService{
		ForgotFunc: func(ctx context.Context, email string, reqCtx services.RequestContext) {
			gotEmail = email
		},
	}

	handler := newPasswordHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/forgot", handlers.ForgotPasswordRequest{
		Email: "nobody@masthead.news",
	})

	w := httptest.NewRecorder()
	handler.Forgot(w, req)

	var resp handlers.MessageResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, "nobody@masthead.news", gotEmail)
}

func TestForgot_InvalidEmail(t *testing.T) {
	handler := newPasswordHandler(&handlers.MockPasswordService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/forgot", handlers.ForgotPasswordRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Forgot(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
}

func TestForgot_RateLimited(t *testing.T) {
	called := false
	mock := &handlers.MockPasswordService{
		ForgotFunc: func(ctx context.Context, email string, reqCtx services.RequestContext) {
			called = true
		},
	}

	handler := newPasswordHandler(mock, handlers.DenyAllLimiter{})
	req := handlers.NewTestRequest(t, "POST", "/auth/password/forgot", handlers.ForgotPasswordRequest{
		Email: "editor@masthead.news",
	})

	w := httptest.NewRecorder()
	handler.Forgot(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_error")
	assert.False(t, called)
}

func TestReset_Success(t *testing.T) {
	mock := &handlers.MockPasswordService{
		ResetFunc: func(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error {
			assert.Equal(t, "6b46e962-3f0f-44c9-9a9e-17e8a74e7a11", rid)
			assert.Equal(t, "reset_token_123", token)
			return nil
		},
	}

	handler := newPasswordHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset", handlers.ResetPasswordRequest{
		Rid:         "6b46e962-3f0f-44c9-9a9e-17e8a74e7a11",
		Token:       "reset_token_123",
		NewPassword: "Sufficiently-Strong-Passw0rd",
	})

	w := httptest.NewRecorder()
	handler.Reset(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
}

func TestReset_InvalidToken(t *testing.T) {
	mock := &handlers.MockPasswordService{
		ResetFunc: func(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error {
			return models.ErrResetInvalid
		},
	}

	handler := newPasswordHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset", handlers.ResetPasswordRequest{
		Rid:         "6b46e962-3f0f-44c9-9a9e-17e8a74e7a11",
		Token:       "stale",
		NewPassword: "Sufficiently-Strong-Passw0rd",
	})

	w := httptest.NewRecorder()
	handler.Reset(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")

	var resp pkghttp.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Invalid or expired reset token", resp.Message)
}

func TestReset_WeakPassword(t *testing.T) {
	mock := &handlers.MockPasswordService{
		ResetFunc: func(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error {
			return &pkgauth.PasswordValidationError{Errors: []string{"must be at least 12 characters"}}
		},
	}

	handler := newPasswordHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset", handlers.ResetPasswordRequest{
		Rid:         "6b46e962-3f0f-44c9-9a9e-17e8a74e7a11",
		Token:       "reset_token_123",
		NewPassword: "short",
	})

	w := httptest.NewRecorder()
	handler.Reset(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
}
