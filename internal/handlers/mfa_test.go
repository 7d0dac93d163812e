package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/handlers"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
	"github.com/stretchr/testify/assert"
)

func newMFAHandler(mock *handlers.MockMFAService, limiter handlers.RateLimiter) *handlers.MFAHandler {
	if limiter == nil {
		limiter = handlers.AllowAllLimiter{}
	}
	return handlers.NewMFAHandler(mock, limiter, nil, auth.CookieConfig{}, 5*time.Minute)
}

func assertMessage(t *testing.T, w *httptest.ResponseRecorder, message string) {
	t.Helper()
	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, message, resp.Message)
}

func TestVerifyTOTP_Success(t *testing.T) {
	mock := &handlers.MockMFAService{
		VerifyTOTPFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			assert.Equal(t, "ticket_abc", ticket)
			assert.Equal(t, "123456", code)
			return testTokens, nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/totp/verify", handlers.VerifyCodeRequest{Code: "123456"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyTOTP(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "/", resp.Redirect)

	// Ticket cookie swapped for session cookies
	ticket := handlers.ResponseCookie(w, auth.CookieMFATicket)
	if assert.NotNil(t, ticket) {
		assert.Empty(t, ticket.Value)
	}
	access := handlers.ResponseCookie(w, auth.CookieAccessToken)
	if assert.NotNil(t, access) {
		assert.Equal(t, "access_token_123", access.Value)
	}
}

func TestVerifyTOTP_MissingTicketCookie(t *testing.T) {
	handler := newMFAHandler(&handlers.MockMFAService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/totp/verify", handlers.VerifyCodeRequest{Code: "123456"})

	w := httptest.NewRecorder()
	handler.VerifyTOTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid MFA ticket")
}

func TestVerifyTOTP_TicketErrorsReportTicketNotCode(t *testing.T) {
	// A method-mismatched or consumed ticket must read as a ticket problem,
	// never as a wrong code.
	for _, ticketErr := range []error{models.ErrTicketInvalid, models.ErrTicketConsumed} {
		t.Run(ticketErr.Error(), func(t *testing.T) {
			mock := &handlers.MockMFAService{
				VerifyTOTPFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
					return nil, ticketErr
				},
			}

			handler := newMFAHandler(mock, nil)
			req := handlers.NewTestRequest(t, "POST", "/auth/mfa/totp/verify", handlers.VerifyCodeRequest{Code: "123456"})
			req = handlers.WithTicketCookie(req, "ticket_abc")

			w := httptest.NewRecorder()
			handler.VerifyTOTP(w, req)

			handlers.AssertErrorResponse(t, w, 401, "auth_error")
			assertMessage(t, w, "Invalid MFA ticket")
		})
	}
}

func TestVerifyTOTP_WrongCode(t *testing.T) {
	mock := &handlers.MockMFAService{
		VerifyTOTPFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			return nil, models.ErrCodeInvalid
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/totp/verify", handlers.VerifyCodeRequest{Code: "654321"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyTOTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid or expired code")
}

func TestVerifyTOTP_MalformedCodeRejectedBeforeService(t *testing.T) {
	called := false
	mock := &handlers.MockMFAService{
		VerifyTOTPFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			called = true
			return testTokens, nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/totp/verify", handlers.VerifyCodeRequest{Code: "12ab56"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyTOTP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
	assert.False(t, called)
}

func TestRequestEmailCode_ReplacesTicketCookie(t *testing.T) {
	mock := &handlers.MockMFAService{
		RequestEmailCodeFunc: func(ctx context.Context, ticket string, reqCtx services.RequestContext) (string, error) {
			assert.Equal(t, "ticket_old", ticket)
			return "ticket_new", nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/email/request", nil)
	req = handlers.WithTicketCookie(req, "ticket_old")

	w := httptest.NewRecorder()
	handler.RequestEmailCode(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.MFARequired)
	assert.Equal(t, "email", resp.Method)

	ticket := handlers.ResponseCookie(w, auth.CookieMFATicket)
	if assert.NotNil(t, ticket) {
		assert.Equal(t, "ticket_new", ticket.Value)
	}
}

func TestRequestEmailCode_RateLimited(t *testing.T) {
	handler := newMFAHandler(&handlers.MockMFAService{}, handlers.DenyAllLimiter{})
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/email/request", nil)
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.RequestEmailCode(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_error")
}

func TestVerifyEmail_Success(t *testing.T) {
	mock := &handlers.MockMFAService{
		VerifyEmailFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			return testTokens, nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/email/verify", handlers.VerifyCodeRequest{Code: "123456"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyEmail(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotNil(t, handlers.ResponseCookie(w, auth.CookieAccessToken))
}

func TestVerifyPasskey_Success(t *testing.T) {
	assertion := json.RawMessage(`{"id":"cred-1","response":{}}`)
	mock := &handlers.MockMFAService{
		VerifyPasskeyFunc: func(ctx context.Context, ticket string, got json.RawMessage, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			assert.JSONEq(t, string(assertion), string(got))
			return testTokens, nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/passkey/verify", handlers.VerifyPasskeyRequest{Assertion: assertion})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyPasskey(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.NotNil(t, handlers.ResponseCookie(w, auth.CookieAccessToken))
}

func TestVerifyPasskey_BadAssertion(t *testing.T) {
	mock := &handlers.MockMFAService{
		VerifyPasskeyFunc: func(ctx context.Context, ticket string, got json.RawMessage, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			return nil, models.ErrCodeInvalid
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/passkey/verify", handlers.VerifyPasskeyRequest{Assertion: json.RawMessage(`{}`)})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.VerifyPasskey(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid or expired code")
}

func TestSetupTOTP_RequiresAuthentication(t *testing.T) {
	handler := newMFAHandler(&handlers.MockMFAService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/totp", nil)

	w := httptest.NewRecorder()
	handler.SetupTOTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestSetupTOTP_ReturnsQRCode(t *testing.T) {
	mock := &handlers.MockMFAService{
		SetupTOTPFunc: func(ctx context.Context, accountID string, reqCtx services.RequestContext) (*services.TOTPSetupResult, error) {
			assert.Equal(t, "acct-1", accountID)
			return &services.TOTPSetupResult{QRCodeDataURL: "data:image/png;base64,abc"}, nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/totp", nil)
	req = handlers.WithAccountContext(req, "acct-1", "editor@masthead.news", "standard")

	w := httptest.NewRecorder()
	handler.SetupTOTP(w, req)

	var resp handlers.TOTPSetupResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "data:image/png;base64,abc", resp.QRCode)
}

func TestConfirmTOTP_WrongCode(t *testing.T) {
	mock := &handlers.MockMFAService{
		ConfirmTOTPFunc: func(ctx context.Context, accountID, code string, reqCtx services.RequestContext) error {
			return models.ErrCodeInvalid
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/totp/verify", handlers.ConfirmTOTPRequest{Code: "123456"})
	req = handlers.WithAccountContext(req, "acct-1", "editor@masthead.news", "standard")

	w := httptest.NewRecorder()
	handler.ConfirmTOTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid or expired code")
}

func TestConfirmTOTP_Success(t *testing.T) {
	mock := &handlers.MockMFAService{
		ConfirmTOTPFunc: func(ctx context.Context, accountID, code string, reqCtx services.RequestContext) error {
			return nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/totp/verify", handlers.ConfirmTOTPRequest{Code: "123456"})
	req = handlers.WithAccountContext(req, "acct-1", "editor@masthead.news", "standard")

	w := httptest.NewRecorder()
	handler.ConfirmTOTP(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
}

func TestRegisterPasskey_Success(t *testing.T) {
	mock := &handlers.MockMFAService{
		RegisterPasskeyFunc: func(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx services.RequestContext) error {
			assert.Equal(t, "acct-1", accountID)
			assert.Equal(t, []byte("cred-1"), credential.CredentialID)
			assert.Equal(t, "YubiKey", credential.Name)
			return nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/passkey", handlers.RegisterPasskeyRequest{
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte("pubkey"),
		Name:         "YubiKey",
	})
	req = handlers.WithAccountContext(req, "acct-1", "editor@masthead.news", "standard")

	w := httptest.NewRecorder()
	handler.RegisterPasskey(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
}

func TestRegisterPasskey_RequiresAuthentication(t *testing.T) {
	handler := newMFAHandler(&handlers.MockMFAService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/passkey", handlers.RegisterPasskeyRequest{
		CredentialID: []byte("cred-1"),
		PublicKey:    []byte("pubkey"),
	})

	w := httptest.NewRecorder()
	handler.RegisterPasskey(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestRegisterPasskey_MissingCredentialRejected(t *testing.T) {
	called := false
	mock := &handlers.MockMFAService{
		RegisterPasskeyFunc: func(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx services.RequestContext) error {
			called = true
			return nil
		},
	}

	handler := newMFAHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/passkey", handlers.RegisterPasskeyRequest{
		Name: "YubiKey",
	})
	req = handlers.WithAccountContext(req, "acct-1", "editor@masthead.news", "standard")

	w := httptest.NewRecorder()
	handler.RegisterPasskey(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
	assert.False(t, called)
}
