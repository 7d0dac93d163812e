package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/masthead-news/masthead/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing session claims in context
	AccountContextKey contextKey = "account"
)

// SessionMiddleware validates the session token and injects its claims
// into the request context. The token is read from the access_token
// cookie, falling back to a Bearer Authorization header for API clients.
func SessionMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractSessionToken(r)
			if tokenString == "" {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(r.Context(), tokenString)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			// Refresh tokens are only accepted by /auth/refresh
			if claims.Type == "refresh" {
				http.Error(w, "refresh tokens cannot be used for API access", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. The role is re-read from
// the database so a demotion takes effect before the session expires.
func RequireRole(accountRepo AccountFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetAccountFromContext(r)
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			account, err := accountRepo.GetByID(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					http.Error(w, "account not found", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if account.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetAccountFromContext extracts session claims from the request context
func GetAccountFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(AccountContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// AccountFetcher loads accounts for role checks
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

func extractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieAccessToken); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
