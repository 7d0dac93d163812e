package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	pkgauth "github.com/masthead-news/masthead/pkg/auth"
	pkglogger "github.com/masthead-news/masthead/pkg/logger"
)

// PasswordResetService handles the forgot/reset flow. Completing a reset
// rotates the account's token key, which kills every outstanding session
// signed before the change.
type PasswordResetService struct {
	accountRepo AccountRepository
	resetRepo   PasswordResetRepository
	email       EmailService
	audit       *AuditService
	tokenExpiry time.Duration
	logger      *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(accountRepo AccountRepository, resetRepo PasswordResetRepository, email EmailService, audit *AuditService, tokenExpiry time.Duration, logger *slog.Logger) *PasswordResetService {
	return &PasswordResetService{
		accountRepo: accountRepo,
		resetRepo:   resetRepo,
		email:       email,
		audit:       audit,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// Forgot starts a reset for the email if an active account exists. It never
// reports whether one does; the handler answers 200 either way and any
// failure here is logged, not surfaced.
func (s *PasswordResetService) Forgot(ctx context.Context, email string, reqCtx RequestContext) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up account for reset", slog.Any("error", err))
		}
		return
	}
	if account.Status != models.StatusActive {
		return
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return
	}

	record := &models.PasswordResetRecord{
		AccountID: account.ID,
		TokenHash: auth.HashCode(token),
		ExpiresAt: time.Now().Add(s.tokenExpiry),
	}
	if err := s.resetRepo.Create(ctx, record); err != nil {
		s.logger.Error("failed to store reset record", slog.Any("error", err))
		return
	}

	if err := s.email.SendPasswordResetLink(ctx, account.Email, record.ID, token); err != nil {
		// Already logged by the email service
		return
	}

	s.logger.Info("password reset requested",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	s.audit.Record(ctx, AuditEntry{
		EventType: models.AuditEventPasswordReset,
		ActorID:   account.ID,
		Action:    "reset_requested",
		Success:   true,
		IPAddress: reqCtx.IPAddress,
		UserAgent: reqCtx.UserAgent,
	})
}

// Reset redeems a token against its reset record and sets the new
// password. Password validation runs before the token is consumed, so a
// rejected password leaves the link redeemable for another try.
func (s *PasswordResetService) Reset(ctx context.Context, resetID, token, newPassword string, reqCtx RequestContext) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}
	if _, err := uuid.Parse(resetID); err != nil {
		return models.ErrResetInvalid
	}

	record, err := s.resetRepo.Consume(ctx, resetID, auth.HashCode(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.Record(ctx, AuditEntry{
				EventType:     models.AuditEventPasswordReset,
				Action:        "reset_completed",
				Success:       false,
				FailureReason: "token_invalid",
				IPAddress:     reqCtx.IPAddress,
				UserAgent:     reqCtx.UserAgent,
			})
			return models.ErrResetInvalid
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Fresh token key: every session signed with the old one dies here.
	tokenKey, err := pkgauth.GenerateTokenKey()
	if err != nil {
		s.logger.Error("failed to generate token key", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// UpdatePassword also burns any other outstanding reset links for the
	// account in the same transaction.
	if err := s.accountRepo.UpdatePassword(ctx, record.AccountID, passwordHash, tokenKey); err != nil {
		s.logger.Error("failed to update password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, AuditEntry{
		EventType: models.AuditEventPasswordReset,
		ActorID:   record.AccountID,
		Action:    "reset_completed",
		Success:   true,
		IPAddress: reqCtx.IPAddress,
		UserAgent: reqCtx.UserAgent,
	})

	return nil
}
