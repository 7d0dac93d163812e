package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/masthead-news/masthead/internal/models"
)

// TOTPSetupResult carries the enrollment material back to the client.
// The plaintext secret only exists in this response; storage holds the
// AES-GCM ciphertext.
type TOTPSetupResult struct {
	QRCodeDataURL string
}

// SetupTOTP provisions a new TOTP secret for an authenticated account and
// returns the QR code to scan. The enrollment is pending until ConfirmTOTP
// proves the authenticator produces matching codes.
func (s *MFAService) SetupTOTP(ctx context.Context, accountID string, reqCtx RequestContext) (*TOTPSetupResult, error) {
	if s.totp == nil {
		return nil, models.ErrInternalServer
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load account for totp setup", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	encrypted, nonce, qrDataURL, err := s.totp.GenerateSecretWithQR(account.Email)
	if err != nil {
		s.logger.Error("failed to generate totp secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	config, err := s.mfaRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	config.TOTPSecretEncrypted = encrypted
	config.TOTPSecretNonce = nonce
	if err := s.mfaRepo.Upsert(ctx, config); err != nil {
		s.logger.Error("failed to store totp secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditSetup(ctx, accountID, "totp_setup_started", true, "", reqCtx)

	return &TOTPSetupResult{QRCodeDataURL: qrDataURL}, nil
}

// ConfirmTOTP proves the enrolled authenticator works and flips MFA on.
func (s *MFAService) ConfirmTOTP(ctx context.Context, accountID, code string, reqCtx RequestContext) error {
	config, err := s.mfaRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !config.HasTOTP() {
		return models.ErrMFANotEnabled
	}

	secret, err := s.totp.DecryptSecret(config.TOTPSecretEncrypted, config.TOTPSecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt totp secret", slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateTOTP(secret, code)
	if err != nil {
		s.logger.Error("failed to validate totp code", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		s.auditSetup(ctx, accountID, "totp_setup_confirmed", false, "code_invalid", reqCtx)
		return models.ErrCodeInvalid
	}

	now := time.Now()
	config.Enabled = true
	if config.EnrolledAt == nil {
		config.EnrolledAt = &now
	}
	if err := s.mfaRepo.Upsert(ctx, config); err != nil {
		s.logger.Error("failed to enable mfa", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditSetup(ctx, accountID, "totp_setup_confirmed", true, "", reqCtx)
	return nil
}

// RegisterPasskey stores a verified passkey credential descriptor and
// enables MFA. The WebAuthn registration ceremony happens upstream; by the
// time this runs the credential has already been attested.
func (s *MFAService) RegisterPasskey(ctx context.Context, accountID string, credential models.PasskeyCredential, reqCtx RequestContext) error {
	config, err := s.mfaRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return models.ErrInternalServer
	}

	credential.CreatedAt = time.Now()
	config.Passkeys = append(config.Passkeys, credential)

	now := time.Now()
	config.Enabled = true
	if config.EnrolledAt == nil {
		config.EnrolledAt = &now
	}
	if err := s.mfaRepo.Upsert(ctx, config); err != nil {
		s.logger.Error("failed to store passkey", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditSetup(ctx, accountID, "passkey_registered", true, "", reqCtx)
	return nil
}

func (s *MFAService) auditSetup(ctx context.Context, accountID, action string, success bool, reason string, reqCtx RequestContext) {
	s.audit.Record(ctx, AuditEntry{
		EventType:     models.AuditEventMFASetup,
		ActorID:       accountID,
		Action:        action,
		Success:       success,
		FailureReason: reason,
		IPAddress:     reqCtx.IPAddress,
		UserAgent:     reqCtx.UserAgent,
	})
}
