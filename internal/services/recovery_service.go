package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
)

// RecoveryCodeCount is how many codes one generation batch produces.
const RecoveryCodeCount = 10

// RecoveryService manages single-use recovery codes: the break-glass factor
// for accounts whose authenticator or passkey is gone.
type RecoveryService struct {
	mfa     *MFAService
	mfaRepo MFAConfigRepository
	audit   *AuditService
	logger  *slog.Logger
}

// NewRecoveryService creates a new RecoveryService
func NewRecoveryService(mfa *MFAService, mfaRepo MFAConfigRepository, audit *AuditService, logger *slog.Logger) *RecoveryService {
	return &RecoveryService{
		mfa:     mfa,
		mfaRepo: mfaRepo,
		audit:   audit,
		logger:  logger,
	}
}

// Generate mints a fresh batch of recovery codes for the account. The
// plaintext codes exist only in the return value; storage keeps bcrypt
// hashes, and any previously issued batch is invalidated wholesale.
func (s *RecoveryService) Generate(ctx context.Context, accountID string, reqCtx RequestContext) ([]string, error) {
	config, err := s.mfaRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !config.Enabled {
		return nil, models.ErrMFANotEnabled
	}

	codes, err := auth.GenerateRecoveryCodes(RecoveryCodeCount)
	if err != nil {
		s.logger.Error("failed to generate recovery codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashes := make([]string, len(codes))
	for i, code := range codes {
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("failed to hash recovery code", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		hashes[i] = string(hash)
	}

	if err := s.mfaRepo.ReplaceRecoveryCodes(ctx, accountID, hashes); err != nil {
		s.logger.Error("failed to store recovery codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, AuditEntry{
		EventType: models.AuditEventMFASetup,
		ActorID:   accountID,
		Action:    "recovery_codes_generated",
		Success:   true,
		IPAddress: reqCtx.IPAddress,
		UserAgent: reqCtx.UserAgent,
	})

	return codes, nil
}

// Consume redeems one recovery code against any valid unconsumed ticket.
// Recovery deliberately ignores the ticket's method binding: it exists for
// exactly the situation where the bound factor is unavailable.
func (s *RecoveryService) Consume(ctx context.Context, ticketString, code string, reqCtx RequestContext) (*SessionTokens, error) {
	claims, err := s.mfa.tickets.Verify(ctx, ticketString)
	if err != nil {
		return nil, err
	}

	code = strings.ToUpper(strings.TrimSpace(code))

	config, err := s.mfaRepo.GetByAccountID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	matched := ""
	for _, hash := range config.RecoveryCodeHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			matched = hash
			break
		}
	}
	if matched == "" {
		s.auditConsumeFailure(ctx, claims, "code_invalid", reqCtx)
		return nil, models.ErrCodeInvalid
	}

	// The array-level remove is the double-spend gate: a second request
	// carrying the same code loses the race and sees it as invalid.
	if err := s.mfaRepo.RemoveRecoveryCode(ctx, claims.Subject, matched); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditConsumeFailure(ctx, claims, "code_invalid", reqCtx)
			return nil, models.ErrCodeInvalid
		}
		s.logger.Error("failed to remove recovery code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The shared success tail records the MFA_VERIFY audit event.
	return s.mfa.succeed(ctx, claims, reqCtx)
}

func (s *RecoveryService) auditConsumeFailure(ctx context.Context, claims *models.TicketClaims, reason string, reqCtx RequestContext) {
	s.audit.Record(ctx, AuditEntry{
		EventType:     models.AuditEventMFAVerify,
		ActorID:       claims.Subject,
		Action:        "recovery_code_consume",
		Success:       false,
		FailureReason: reason,
		IPAddress:     reqCtx.IPAddress,
		UserAgent:     reqCtx.UserAgent,
		Metadata:      models.AuditMetadata{"lane": claims.Lane},
	})
}
