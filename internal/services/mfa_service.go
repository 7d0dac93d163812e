package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/store"
)

// MFAService drives the second stage of login. Every verify path does the
// same dance: check the ticket, check that the ticket was minted for THIS
// method, check the factor, then converge on the shared success tail that
// consumes the ticket and issues the session. A ticket minted for one
// method presented to another handler fails as an invalid ticket before the
// factor is even looked at.
type MFAService struct {
	accountRepo     AccountRepository
	mfaRepo         MFAConfigRepository
	tickets         *auth.TicketManager
	totp            *auth.TOTPManager
	passkeyVerifier auth.PasskeyVerifier
	sessions        *SessionService
	email           EmailService
	store           store.EphemeralStore
	audit           *AuditService
	logger          *slog.Logger
}

// NewMFAService creates a new MFAService
func NewMFAService(
	accountRepo AccountRepository,
	mfaRepo MFAConfigRepository,
	tickets *auth.TicketManager,
	totp *auth.TOTPManager,
	passkeyVerifier auth.PasskeyVerifier,
	sessions *SessionService,
	email EmailService,
	st store.EphemeralStore,
	audit *AuditService,
	logger *slog.Logger,
) *MFAService {
	return &MFAService{
		accountRepo:     accountRepo,
		mfaRepo:         mfaRepo,
		tickets:         tickets,
		totp:            totp,
		passkeyVerifier: passkeyVerifier,
		sessions:        sessions,
		email:           email,
		store:           st,
		audit:           audit,
		logger:          logger,
	}
}

// RequestEmailCode rotates the presented ticket to the email method, mints
// a fresh one-time code bound to the new ticket, and mails it. Any valid
// unconsumed ticket may rotate here; falling back to email is always
// allowed.
func (s *MFAService) RequestEmailCode(ctx context.Context, ticketString string, reqCtx RequestContext) (string, error) {
	newTicket, oldClaims, err := s.tickets.Rotate(ctx, ticketString, models.MFAMethodEmail)
	if err != nil {
		return "", err
	}

	newClaims, err := s.tickets.Verify(ctx, newTicket)
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, AuditEntry{
		EventType: models.AuditEventMFAVerify,
		ActorID:   newClaims.Subject,
		Action:    "ticket_rotated",
		Success:   true,
		IPAddress: reqCtx.IPAddress,
		UserAgent: reqCtx.UserAgent,
		Metadata: models.AuditMetadata{
			"method_from": oldClaims.Method,
			"method_to":   newClaims.Method,
			"lane":        newClaims.Lane,
		},
	})

	account, err := s.accountRepo.GetByID(ctx, newClaims.Subject)
	if err != nil {
		s.logger.Error("failed to load account for email code", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	code, err := auth.GenerateOTPCode()
	if err != nil {
		s.logger.Error("failed to generate otp code", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	// The code is bound to the new ticket's JTI, so a code mailed for one
	// ticket is useless with any other.
	ttl := time.Until(newClaims.ExpiresAt.Time)
	if err := s.store.Set(ctx, emailCodeKey(newClaims.ID), auth.HashCode(code), ttl); err != nil {
		s.logger.Error("failed to store otp code", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.email.SendLoginCode(ctx, account.Email, code); err != nil {
		return "", models.ErrInternalServer
	}

	return newTicket, nil
}

// VerifyEmail checks an emailed one-time code against an email-method ticket.
func (s *MFAService) VerifyEmail(ctx context.Context, ticketString, code string, reqCtx RequestContext) (*SessionTokens, error) {
	claims, err := s.verifyTicketForMethod(ctx, ticketString, models.MFAMethodEmail, reqCtx)
	if err != nil {
		return nil, err
	}

	storedHash, err := s.store.Get(ctx, emailCodeKey(claims.ID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No code was ever requested for this ticket, or it aged out.
			s.auditVerify(ctx, claims, false, "code_invalid", reqCtx)
			return nil, models.ErrCodeInvalid
		}
		s.logger.Error("failed to load otp code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !auth.ConstantTimeEqual(storedHash, auth.HashCode(code)) {
		s.auditVerify(ctx, claims, false, "code_invalid", reqCtx)
		return nil, models.ErrCodeInvalid
	}

	// Drop the code before the success tail; the ticket consume below is
	// the atomic single-use gate.
	if err := s.store.Delete(ctx, emailCodeKey(claims.ID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to delete spent otp code", slog.Any("error", err))
	}

	return s.succeed(ctx, claims, reqCtx)
}

// VerifyTOTP checks an authenticator code against a totp-method ticket.
func (s *MFAService) VerifyTOTP(ctx context.Context, ticketString, code string, reqCtx RequestContext) (*SessionTokens, error) {
	claims, err := s.verifyTicketForMethod(ctx, ticketString, models.MFAMethodTOTP, reqCtx)
	if err != nil {
		return nil, err
	}

	config, err := s.mfaRepo.GetByAccountID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !config.HasTOTP() {
		s.auditVerify(ctx, claims, false, "totp_not_enrolled", reqCtx)
		return nil, models.ErrTicketInvalid
	}

	secret, err := s.totp.DecryptSecret(config.TOTPSecretEncrypted, config.TOTPSecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt totp secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	valid, err := s.totp.ValidateTOTP(secret, code)
	if err != nil {
		s.logger.Error("failed to validate totp code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !valid {
		s.auditVerify(ctx, claims, false, "code_invalid", reqCtx)
		return nil, models.ErrCodeInvalid
	}

	return s.succeed(ctx, claims, reqCtx)
}

// VerifyPasskey checks a WebAuthn assertion against a passkey-method ticket.
func (s *MFAService) VerifyPasskey(ctx context.Context, ticketString string, assertion json.RawMessage, reqCtx RequestContext) (*SessionTokens, error) {
	claims, err := s.verifyTicketForMethod(ctx, ticketString, models.MFAMethodPasskey, reqCtx)
	if err != nil {
		return nil, err
	}

	config, err := s.mfaRepo.GetByAccountID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !config.HasPasskey() {
		s.auditVerify(ctx, claims, false, "passkey_not_enrolled", reqCtx)
		return nil, models.ErrTicketInvalid
	}

	if err := s.passkeyVerifier.VerifyAssertion(ctx, config.Passkeys, assertion); err != nil {
		if errors.Is(err, models.ErrCodeInvalid) {
			s.auditVerify(ctx, claims, false, "assertion_invalid", reqCtx)
			return nil, models.ErrCodeInvalid
		}
		s.logger.Error("failed to verify passkey assertion", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.succeed(ctx, claims, reqCtx)
}

// verifyTicketForMethod runs the shared ticket checks for a method handler.
// A method mismatch is reported as an invalid ticket, exactly like a bad
// signature, so callers cannot use one factor's ticket against another.
func (s *MFAService) verifyTicketForMethod(ctx context.Context, ticketString, method string, reqCtx RequestContext) (*models.TicketClaims, error) {
	claims, err := s.tickets.Verify(ctx, ticketString)
	if err != nil {
		return nil, err
	}

	if claims.Method != method {
		s.auditVerify(ctx, claims, false, "method_mismatch", reqCtx)
		return nil, models.ErrTicketInvalid
	}

	return claims, nil
}

// succeed is the single success tail shared by every method handler:
// consume the ticket, re-check the account, and issue the session.
func (s *MFAService) succeed(ctx context.Context, claims *models.TicketClaims, reqCtx RequestContext) (*SessionTokens, error) {
	if err := s.tickets.Consume(ctx, claims); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load account after mfa", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The account may have been disabled or demoted between password and
	// second factor.
	if account.Status != models.StatusActive {
		s.auditVerify(ctx, claims, false, "account_disabled", reqCtx)
		return nil, models.ErrAccountDisabled
	}
	if !account.EligibleForLane(claims.Lane) {
		s.auditVerify(ctx, claims, false, "lane_forbidden", reqCtx)
		return nil, models.ErrLaneForbidden
	}

	tokens, err := s.sessions.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	tokens.Redirect = models.LaneRedirect(claims.Lane)

	s.auditVerify(ctx, claims, true, "", reqCtx)
	return tokens, nil
}

func (s *MFAService) auditVerify(ctx context.Context, claims *models.TicketClaims, success bool, reason string, reqCtx RequestContext) {
	s.audit.Record(ctx, AuditEntry{
		EventType:     models.AuditEventMFAVerify,
		ActorID:       claims.Subject,
		Action:        "mfa_verify",
		Success:       success,
		FailureReason: reason,
		IPAddress:     reqCtx.IPAddress,
		UserAgent:     reqCtx.UserAgent,
		Metadata: models.AuditMetadata{
			"method": claims.Method,
			"lane":   claims.Lane,
		},
	})
}

func emailCodeKey(jti string) string {
	return "mfa:otp:" + jti
}
