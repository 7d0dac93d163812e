package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/services"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithTicketCookie attaches a pending-MFA ticket cookie to the request
func WithTicketCookie(req *http.Request, ticket string) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.CookieMFATicket, Value: ticket})
	return req
}

// WithAccountContext adds session claims to the request context for testing
// authenticated endpoints
func WithAccountContext(req *http.Request, accountID, email, role string) *http.Request {
	claims := &models.SessionClaims{
		Type:      "access",
		AccountID: accountID,
		Email:     email,
		Role:      role,
	}
	ctx := context.WithValue(req.Context(), auth.AccountContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// ResponseCookie returns the last Set-Cookie with the given name, or nil.
func ResponseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

// AllowAllLimiter is a RateLimiter that never blocks
type AllowAllLimiter struct{}

func (AllowAllLimiter) Allow(ctx context.Context, route, identifier string) error {
	return nil
}

func (AllowAllLimiter) Window() time.Duration {
	return time.Minute
}

// DenyAllLimiter is a RateLimiter that always reports the window exhausted
type DenyAllLimiter struct{}

func (DenyAllLimiter) Allow(ctx context.Context, route, identifier string) error {
	return models.ErrRateLimited
}

func (DenyAllLimiter) Window() time.Duration {
	return time.Minute
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password, lane string, reqCtx services.RequestContext) (*services.LoginResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, lane string, reqCtx services.RequestContext) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, lane, reqCtx)
	}
	return nil, models.ErrUnauthorized
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	RefreshFunc func(ctx context.Context, refreshToken string) (*services.SessionTokens, error)
}

func (m *MockSessionService) Refresh(ctx context.Context, refreshToken string) (*services.SessionTokens, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	RequestEmailCodeFunc func(ctx context.Context, ticket string, reqCtx services.RequestContext) (string, error)
	VerifyEmailFunc      func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
	VerifyTOTPFunc       func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
	VerifyPasskeyFunc    func(ctx context.Context, ticket string, assertion json.RawMessage, reqCtx services.RequestContext) (*services.SessionTokens, error)
	SetupTOTPFunc        func(ctx context.Context, accountID string, reqCtx services.RequestContext) (*services.TOTPSetupResult, error)
	ConfirmTOTPFunc      func(ctx context.Context, accountID, code string, reqCtx services.RequestContext) error
	RegisterPasskeyFunc  func(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx services.RequestContext) error
}

func (m *MockMFAService) RequestEmailCode(ctx context.Context, ticket string, reqCtx services.RequestContext) (string, error) {
	if m.RequestEmailCodeFunc != nil {
		return m.RequestEmailCodeFunc(ctx, ticket, reqCtx)
	}
	return "", models.ErrTicketInvalid
}

func (m *MockMFAService) VerifyEmail(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, ticket, code, reqCtx)
	}
	return nil, models.ErrTicketInvalid
}

func (m *MockMFAService) VerifyTOTP(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
	if m.VerifyTOTPFunc != nil {
		return m.VerifyTOTPFunc(ctx, ticket, code, reqCtx)
	}
	return nil, models.ErrTicketInvalid
}

func (m *MockMFAService) VerifyPasskey(ctx context.Context, ticket string, assertion json.RawMessage, reqCtx services.RequestContext) (*services.SessionTokens, error) {
	if m.VerifyPasskeyFunc != nil {
		return m.VerifyPasskeyFunc(ctx, ticket, assertion, reqCtx)
	}
	return nil, models.ErrTicketInvalid
}

func (m *MockMFAService) SetupTOTP(ctx context.Context, accountID string, reqCtx services.RequestContext) (*services.TOTPSetupResult, error) {
	if m.SetupTOTPFunc != nil {
		return m.SetupTOTPFunc(ctx, accountID, reqCtx)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMFAService) ConfirmTOTP(ctx context.Context, accountID, code string, reqCtx services.RequestContext) error {
	if m.ConfirmTOTPFunc != nil {
		return m.ConfirmTOTPFunc(ctx, accountID, code, reqCtx)
	}
	return models.ErrCodeInvalid
}

func (m *MockMFAService) RegisterPasskey(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx services.RequestContext) error {
	if m.RegisterPasskeyFunc != nil {
		return m.RegisterPasskeyFunc(ctx, accountID, credential, reqCtx)
	}
	return nil
}

// MockRecoveryService implements RecoveryServiceInterface for testing
type MockRecoveryService struct {
	GenerateFunc func(ctx context.Context, accountID string, reqCtx services.RequestContext) ([]string, error)
	ConsumeFunc  func(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error)
}

func (m *MockRecoveryService) Generate(ctx context.Context, accountID string, reqCtx services.RequestContext) ([]string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, accountID, reqCtx)
	}
	return nil, models.ErrMFANotEnabled
}

func (m *MockRecoveryService) Consume(ctx context.Context, ticket, code string, reqCtx services.RequestContext) (*services.SessionTokens, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, ticket, code, reqCtx)
	}
	return nil, models.ErrCodeInvalid
}

// MockPasswordService implements PasswordServiceInterface for testing
type MockPasswordService struct {
	ForgotFunc func(ctx context.Context, email string, reqCtx services.RequestContext)
	ResetFunc  func(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error
}

func (m *MockPasswordService) Forgot(ctx context.Context, email string, reqCtx services.RequestContext) {
	if m.ForgotFunc != nil {
		m.ForgotFunc(ctx, email, reqCtx)
	}
}

func (m *MockPasswordService) Reset(ctx context.Context, rid, token, newPassword string, reqCtx services.RequestContext) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, rid, token, newPassword, reqCtx)
	}
	return models.ErrResetInvalid
}
