package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
)

// SessionTokens is a freshly signed access/refresh pair.
type SessionTokens struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration

	// Redirect is the landing path for the lane the login requested.
	// Issue leaves it empty; the login and MFA tails fill it in.
	Redirect string
}

// SessionService is the single place sessions come from. Login and every
// MFA handler converge here after their own checks pass; nothing else in
// the codebase signs a session token.
type SessionService struct {
	accountRepo AccountRepository
	tm          *auth.TokenManager
	logger      *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(accountRepo AccountRepository, tm *auth.TokenManager, logger *slog.Logger) *SessionService {
	return &SessionService{
		accountRepo: accountRepo,
		tm:          tm,
		logger:      logger,
	}
}

// Issue signs a new session for the account and stamps last_login_at.
// A failed timestamp update is logged, not returned; the tokens are already
// valid and the login has already been authorized.
func (s *SessionService) Issue(ctx context.Context, account *models.Account) (*SessionTokens, error) {
	accessToken, err := s.tm.GenerateAccessToken(ctx, account)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(ctx, account)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID, time.Now()); err != nil {
		s.logger.Warn("failed to update last login",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	return &SessionTokens{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  s.tm.AccessTokenExpiry(),
		RefreshExpiry: s.tm.RefreshTokenExpiry(),
	}, nil
}

// Refresh exchanges a still-valid refresh token for a new session pair.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	claims, err := s.tm.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != "refresh" {
		return nil, models.ErrUnauthorized
	}

	account, err := s.accountRepo.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load account for refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if account.Status != models.StatusActive {
		return nil, models.ErrAccountDisabled
	}

	return s.Issue(ctx, account)
}
