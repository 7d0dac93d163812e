package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/masthead-news/masthead/internal/models"
)

// TokenKeyFetcher retrieves an account's TokenKey for composite-key lookup.
type TokenKeyFetcher interface {
	GetTokenKey(ctx context.Context, id string) (string, error)
}

// TokenManager handles session token generation and validation. Tokens are
// signed with a composite key (global secret + per-account TokenKey), so
// rotating an account's TokenKey invalidates every outstanding session for
// that account without a revocation table.
type TokenManager struct {
	secret        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	accountRepo   TokenKeyFetcher
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, accountRepo TokenKeyFetcher) *TokenManager {
	return &TokenManager{
		secret:        secret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		accountRepo:   accountRepo,
	}
}

// signingKey returns the composite key (global secret + account TokenKey).
func (tm *TokenManager) signingKey(ctx context.Context, accountID string) ([]byte, error) {
	tokenKey, err := tm.accountRepo.GetTokenKey(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing key: %w", err)
	}
	return []byte(tm.secret + tokenKey), nil
}

// GenerateAccessToken creates a short-lived access token
func (tm *TokenManager) GenerateAccessToken(ctx context.Context, account *models.Account) (string, error) {
	return tm.generate(ctx, account, "access", tm.accessExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token
func (tm *TokenManager) GenerateRefreshToken(ctx context.Context, account *models.Account) (string, error) {
	return tm.generate(ctx, account, "refresh", tm.refreshExpiry)
}

func (tm *TokenManager) generate(ctx context.Context, account *models.Account, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &models.SessionClaims{
		Type:      tokenType,
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signingKey := []byte(tm.secret + account.TokenKey)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// AccessTokenExpiry exposes the configured access token lifetime for cookies.
func (tm *TokenManager) AccessTokenExpiry() time.Duration { return tm.accessExpiry }

// RefreshTokenExpiry exposes the configured refresh token lifetime for cookies.
func (tm *TokenManager) RefreshTokenExpiry() time.Duration { return tm.refreshExpiry }

// ValidateToken verifies a session token and returns its claims. The
// composite key is looked up from the embedded account ID; a rotated
// TokenKey fails the signature check and the token is rejected.
func (tm *TokenManager) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		parsed, ok := token.Claims.(*models.SessionClaims)
		if !ok || parsed.AccountID == "" {
			return nil, fmt.Errorf("missing account id claim")
		}
		return tm.signingKey(ctx, parsed.AccountID)
	})
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "access" && claims.Type != "refresh" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
