package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/handlers"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/services"
	"github.com/stretchr/testify/assert"
)

func newRecoveryHandler(mock *handlers.MockRecoveryService, limiter handlers.RateLimiter) *handlers.RecoveryHandler {
	if limiter == nil {
		limiter = handlers.AllowAllLimiter{}
	}
	return handlers.NewRecoveryHandler(mock, limiter, nil, auth.CookieConfig{})
}

func TestRecoveryConsume_Success(t *testing.T) {
	mock := &handlers.MockRecoveryService{
		ConsumeFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			assert.Equal(t, "ticket_abc", ticket)
			assert.Equal(t, "ABCD2345EFGH", code)
			return testTokens, nil
		},
	}

	handler := newRecoveryHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/consume", handlers.RecoveryConsumeRequest{Code: "ABCD2345EFGH"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.Consume(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "/", resp.Redirect)

	ticket := handlers.ResponseCookie(w, auth.CookieMFATicket)
	if assert.NotNil(t, ticket) {
		assert.Empty(t, ticket.Value)
	}
	assert.NotNil(t, handlers.ResponseCookie(w, auth.CookieAccessToken))
}

func TestRecoveryConsume_MissingTicket(t *testing.T) {
	handler := newRecoveryHandler(&handlers.MockRecoveryService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/consume", handlers.RecoveryConsumeRequest{Code: "ABCD2345EFGH"})

	w := httptest.NewRecorder()
	handler.Consume(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid MFA ticket")
}

func TestRecoveryConsume_SpentCode(t *testing.T) {
	mock := &handlers.MockRecoveryService{
		ConsumeFunc: func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
			return nil, models.ErrCodeInvalid
		},
	}

	handler := newRecoveryHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/consume", handlers.RecoveryConsumeRequest{Code: "ABCD2345EFGH"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.Consume(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
	assertMessage(t, w, "Invalid or expired code")
}

func TestRecoveryConsume_RateLimited(t *testing.T) {
	handler := newRecoveryHandler(&handlers.MockRecoveryService{}, handlers.DenyAllLimiter{})
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/consume", handlers.RecoveryConsumeRequest{Code: "ABCD2345EFGH"})
	req = handlers.WithTicketCookie(req, "ticket_abc")

	w := httptest.NewRecorder()
	handler.Consume(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_error")
}

func TestRecoveryGenerate_Success(t *testing.T) {
	codes := []string{"AAAA2345BBBB", "CCCC2345DDDD"}
	mock := &handlers.MockRecoveryService{
		GenerateFunc: func(ctx context.Context, accountID string, reqCtx services.RequestContext) ([]string, error) {
			assert.Equal(t, "acct-1", accountID)
			return codes, nil
		},
	}

	handler := newRecoveryHandler(mock, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/generate", nil)
	req = handlers.WithAccountContext(req, "acct-1", "owner@masthead.news", "owner")

	w := httptest.NewRecorder()
	handler.Generate(w, req)

	var resp handlers.RecoveryCodesResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, codes, resp.Codes)
}

func TestRecoveryGenerate_RateLimited(t *testing.T) {
	called := false
	mock := &handlers.MockRecoveryService{
		GenerateFunc: func(ctx context.Context, accountID string, reqCtx services.RequestContext) ([]string, error) {
			called = true
			return nil, nil
		},
	}

	handler := newRecoveryHandler(mock, handlers.DenyAllLimiter{})
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/generate", nil)
	req = handlers.WithAccountContext(req, "acct-1", "owner@masthead.news", "owner")

	w := httptest.NewRecorder()
	handler.Generate(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_error")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.False(t, called)
}

func TestRecoveryGenerate_RequiresAuthentication(t *testing.T) {
	handler := newRecoveryHandler(&handlers.MockRecoveryService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/generate", nil)

	w := httptest.NewRecorder()
	handler.Generate(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestRecoveryGenerate_MFANotEnabled(t *testing.T) {
	handler := newRecoveryHandler(&handlers.MockRecoveryService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/recovery/generate", nil)
	req = handlers.WithAccountContext(req, "acct-1", "owner@masthead.news", "owner")

	w := httptest.NewRecorder()
	handler.Generate(w, req)

	handlers.AssertErrorResponse(t, w, 403, "eligibility_error")
}
