package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	pkgauth "github.com/masthead-news/masthead/pkg/auth"
)

// LoginResult is the outcome of a successful credential check. Either a
// session was issued directly (MFA disabled) or a pending-MFA ticket was
// minted and the client owes a second factor.
type LoginResult struct {
	MFARequired      bool
	Ticket           string
	Method           string
	AvailableMethods []string
	Tokens           *SessionTokens
	Account          *models.Account
}

// RequestContext carries per-request attribution for audit records.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// AuthService owns the password stage of login: credential verification,
// account state checks, lane eligibility, and the branch into MFA.
type AuthService struct {
	accountRepo AccountRepository
	mfaRepo     MFAConfigRepository
	tickets     *auth.TicketManager
	sessions    *SessionService
	audit       *AuditService
	logger      *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(accountRepo AccountRepository, mfaRepo MFAConfigRepository, tickets *auth.TicketManager, sessions *SessionService, audit *AuditService, logger *slog.Logger) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		mfaRepo:     mfaRepo,
		tickets:     tickets,
		sessions:    sessions,
		audit:       audit,
		logger:      logger,
	}
}

// Login verifies the credential pair and either issues a session or mints a
// pending-MFA ticket. Unknown email and wrong password produce the same
// ErrUnauthorized; only account state and lane checks, which run after the
// password is proven, return anything more specific.
func (s *AuthService) Login(ctx context.Context, email, password, lane string, reqCtx RequestContext) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.ErrUnauthorized
	}
	if lane == "" {
		lane = models.LaneStandard
	}
	if lane != models.LaneStandard && lane != models.LaneOwner {
		return nil, models.ErrBadRequest
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn comparable time so a missing account is not
			// distinguishable from a wrong password.
			pkgauth.CompareDummy(password)
			s.auditLogin(ctx, "", lane, false, "invalid_credentials", reqCtx)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		s.auditLogin(ctx, account.ID, lane, false, "invalid_credentials", reqCtx)
		return nil, models.ErrUnauthorized
	}

	if account.Status != models.StatusActive {
		s.auditLogin(ctx, account.ID, lane, false, "account_disabled", reqCtx)
		return nil, models.ErrAccountDisabled
	}

	if !account.EligibleForLane(lane) {
		s.auditLogin(ctx, account.ID, lane, false, "lane_forbidden", reqCtx)
		return nil, models.ErrLaneForbidden
	}

	mfaConfig, err := s.mfaRepo.GetByAccountID(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to load mfa config", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !mfaConfig.Enabled {
		tokens, err := s.sessions.Issue(ctx, account)
		if err != nil {
			return nil, err
		}
		tokens.Redirect = models.LaneRedirect(lane)
		s.auditLogin(ctx, account.ID, lane, true, "", reqCtx)
		return &LoginResult{Tokens: tokens, Account: account}, nil
	}

	method := mfaConfig.PreferredMethod()
	ticket, err := s.tickets.Issue(account.ID, method, lane)
	if err != nil {
		s.logger.Error("failed to issue mfa ticket", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogin(ctx, account.ID, lane, true, "", reqCtx)

	return &LoginResult{
		MFARequired:      true,
		Ticket:           ticket,
		Method:           method,
		AvailableMethods: availableMethods(mfaConfig),
		Account:          account,
	}, nil
}

func availableMethods(config *models.MFAConfig) []string {
	methods := make([]string, 0, 3)
	if config.HasPasskey() {
		methods = append(methods, models.MFAMethodPasskey)
	}
	if config.HasTOTP() {
		methods = append(methods, models.MFAMethodTOTP)
	}
	// Email fallback is always offered
	methods = append(methods, models.MFAMethodEmail)
	return methods
}

func (s *AuthService) auditLogin(ctx context.Context, accountID, lane string, success bool, reason string, reqCtx RequestContext) {
	s.audit.Record(ctx, AuditEntry{
		EventType:     models.AuditEventLogin,
		ActorID:       accountID,
		Action:        "password_login",
		Success:       success,
		FailureReason: reason,
		IPAddress:     reqCtx.IPAddress,
		UserAgent:     reqCtx.UserAgent,
		Metadata:      models.AuditMetadata{"lane": lane},
	})
}
