package services

import (
	"context"
	"time"

	"github.com/masthead-news/masthead/internal/models"
)

// AccountRepository defines the account persistence operations services need
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash, tokenKey string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// MFAConfigRepository defines MFA configuration persistence
type MFAConfigRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.MFAConfig, error)
	Upsert(ctx context.Context, config *models.MFAConfig) error
	ReplaceRecoveryCodes(ctx context.Context, accountID string, hashes []string) error
	RemoveRecoveryCode(ctx context.Context, accountID, hash string) error
}

// PasswordResetRepository defines password reset grant persistence
type PasswordResetRepository interface {
	Create(ctx context.Context, record *models.PasswordResetRecord) error
	Consume(ctx context.Context, id, tokenHash string) (*models.PasswordResetRecord, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
