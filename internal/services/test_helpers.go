package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/masthead-news/masthead/internal/models"
	pkglogger "github.com/masthead-news/masthead/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc          func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdatePasswordFunc  func(ctx context.Context, id, passwordHash, tokenKey string) error
	UpdateLastLoginFunc func(ctx context.Context, id string, at time.Time) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// GetTokenKey resolves through GetByID so tests only stub one lookup.
func (m *MockAccountRepository) GetTokenKey(ctx context.Context, id string) (string, error) {
	account, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return account.TokenKey, nil
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash, tokenKey string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, tokenKey)
	}
	return nil
}

func (m *MockAccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, at)
	}
	return nil
}

// MockMFAConfigRepository implements MFAConfigRepository for testing
type MockMFAConfigRepository struct {
	mu sync.Mutex

	GetByAccountIDFunc       func(ctx context.Context, accountID string) (*models.MFAConfig, error)
	UpsertFunc               func(ctx context.Context, config *models.MFAConfig) error
	ReplaceRecoveryCodesFunc func(ctx context.Context, accountID string, hashes []string) error
	RemoveRecoveryCodeFunc   func(ctx context.Context, accountID, hash string) error

	RemovedHashes []string
}

func (m *MockMFAConfigRepository) GetByAccountID(ctx context.Context, accountID string) (*models.MFAConfig, error) {
	if m.GetByAccountIDFunc != nil {
		return m.GetByAccountIDFunc(ctx, accountID)
	}
	return &models.MFAConfig{AccountID: accountID}, nil
}

func (m *MockMFAConfigRepository) Upsert(ctx context.Context, config *models.MFAConfig) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, config)
	}
	return nil
}

func (m *MockMFAConfigRepository) ReplaceRecoveryCodes(ctx context.Context, accountID string, hashes []string) error {
	if m.ReplaceRecoveryCodesFunc != nil {
		return m.ReplaceRecoveryCodesFunc(ctx, accountID, hashes)
	}
	return nil
}

func (m *MockMFAConfigRepository) RemoveRecoveryCode(ctx context.Context, accountID, hash string) error {
	if m.RemoveRecoveryCodeFunc != nil {
		return m.RemoveRecoveryCodeFunc(ctx, accountID, hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemovedHashes = append(m.RemovedHashes, hash)
	return nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc        func(ctx context.Context, record *models.PasswordResetRecord) error
	ConsumeFunc       func(ctx context.Context, id, tokenHash string) (*models.PasswordResetRecord, error)
	DeleteExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, record *models.PasswordResetRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

func (m *MockPasswordResetRepository) Consume(ctx context.Context, id, tokenHash string) (*models.PasswordResetRecord, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, id, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockAuditEventRepository records persisted audit events
type MockAuditEventRepository struct {
	mu     sync.Mutex
	Events []*models.AuditEvent

	CreateFunc func(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
}

func (m *MockAuditEventRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return event, nil
}

func (m *MockAuditEventRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEvent
	for i := len(m.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Events[i].ActorID != nil && *m.Events[i].ActorID == actorID {
			out = append(out, m.Events[i])
		}
	}
	return out, nil
}

// LastEvent returns the most recent recorded event, or nil
func (m *MockAuditEventRepository) LastEvent() *models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return nil
	}
	return m.Events[len(m.Events)-1]
}

// MockEmailService records sent mail instead of calling SES
type MockEmailService struct {
	mu sync.Mutex

	SendLoginCodeFunc         func(ctx context.Context, email, code string) error
	SendPasswordResetLinkFunc func(ctx context.Context, email, resetID, token string) error

	SentCodes  []SentCode
	SentResets []SentReset
}

type SentCode struct {
	Email string
	Code  string
}

type SentReset struct {
	Email   string
	ResetID string
	Token   string
}

func (m *MockEmailService) SendLoginCode(ctx context.Context, email, code string) error {
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, email, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentCodes = append(m.SentCodes, SentCode{Email: email, Code: code})
	return nil
}

func (m *MockEmailService) SendPasswordResetLink(ctx context.Context, email, resetID, token string) error {
	if m.SendPasswordResetLinkFunc != nil {
		return m.SendPasswordResetLinkFunc(ctx, email, resetID, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentResets = append(m.SentResets, SentReset{Email: email, ResetID: resetID, Token: token})
	return nil
}

// StubPasskeyVerifier returns a fixed result for every assertion
type StubPasskeyVerifier struct {
	Err error
}

func (v *StubPasskeyVerifier) VerifyAssertion(ctx context.Context, credentials []models.PasskeyCredential, assertion json.RawMessage) error {
	return v.Err
}

// discardLogger returns a slog.Logger that drops everything
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuditService wires an AuditService over the mock repository
func newTestAuditService(repo *MockAuditEventRepository) *AuditService {
	logger := discardLogger()
	return NewAuditService(repo, pkglogger.NewAuditLogger(logger), logger)
}
