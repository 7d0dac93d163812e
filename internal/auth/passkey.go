package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/masthead-news/masthead/internal/models"
)

// PasskeyVerifier checks a WebAuthn assertion against an account's
// registered credentials. The ceremony itself (challenge generation,
// authenticator data parsing, signature verification) lives behind this
// interface so the login flow only sees pass/fail.
type PasskeyVerifier interface {
	// VerifyAssertion returns nil when the assertion is valid for one of
	// the given credentials, models.ErrCodeInvalid when it is not.
	VerifyAssertion(ctx context.Context, credentials []models.PasskeyCredential, assertion json.RawMessage) error
}

// ExternalPasskeyVerifier delegates assertion verification to the platform
// WebAuthn service over HTTP. A non-200 response, a transport failure, or a
// missing endpoint all read as an invalid assertion; this path must never
// fail open.
type ExternalPasskeyVerifier struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewExternalPasskeyVerifier creates a verifier against the given endpoint.
// With an empty endpoint every assertion is rejected, which keeps accounts
// with registered passkeys on their fallback factors instead of locked out.
func NewExternalPasskeyVerifier(endpoint string, logger *slog.Logger) *ExternalPasskeyVerifier {
	return &ExternalPasskeyVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type assertionRequest struct {
	Credentials []models.PasskeyCredential `json:"credentials"`
	Assertion   json.RawMessage            `json:"assertion"`
}

func (v *ExternalPasskeyVerifier) VerifyAssertion(ctx context.Context, credentials []models.PasskeyCredential, assertion json.RawMessage) error {
	if v.endpoint == "" {
		v.logger.Warn("passkey assertion rejected, no verifier endpoint configured")
		return models.ErrCodeInvalid
	}

	body, err := json.Marshal(assertionRequest{Credentials: credentials, Assertion: assertion})
	if err != nil {
		return models.ErrCodeInvalid
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ErrCodeInvalid
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("passkey verifier unreachable", slog.Any("error", err))
		return models.ErrCodeInvalid
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return models.ErrCodeInvalid
	}
	return nil
}
