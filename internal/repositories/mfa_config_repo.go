package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masthead-news/masthead/internal/database"
	"github.com/masthead-news/masthead/internal/models"
)

type MFAConfigRepository struct {
	pool *pgxpool.Pool
}

func NewMFAConfigRepository(db *database.DB) *MFAConfigRepository {
	return &MFAConfigRepository{pool: db.Pool}
}

func scanMFAConfigRow(scanner rowScanner) (*models.MFAConfig, error) {
	var config models.MFAConfig
	var passkeysJSON []byte
	var enrolledAt *time.Time

	err := scanner.Scan(
		&config.AccountID, &config.Enabled,
		&config.TOTPSecretEncrypted, &config.TOTPSecretNonce,
		&passkeysJSON, &config.RecoveryCodeHashes,
		&enrolledAt, &config.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(passkeysJSON) > 0 {
		if err := json.Unmarshal(passkeysJSON, &config.Passkeys); err != nil {
			return nil, fmt.Errorf("failed to decode passkeys: %w", err)
		}
	}
	config.EnrolledAt = enrolledAt

	return &config, nil
}

const mfaConfigColumns = `account_id, enabled, totp_secret_encrypted, totp_secret_nonce, passkeys, recovery_code_hashes, enrolled_at, updated_at`

// GetByAccountID returns the account's MFA configuration. A missing row
// means MFA was never set up and comes back as an empty disabled config so
// callers never branch on ErrNotFound.
func (r *MFAConfigRepository) GetByAccountID(ctx context.Context, accountID string) (*models.MFAConfig, error) {
	query := `SELECT ` + mfaConfigColumns + ` FROM mfa_configs WHERE account_id = $1`

	config, err := scanMFAConfigRow(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.MFAConfig{AccountID: accountID}, nil
		}
		return nil, err
	}

	return config, nil
}

// Upsert writes the full configuration, creating the row on first enrollment.
func (r *MFAConfigRepository) Upsert(ctx context.Context, config *models.MFAConfig) error {
	passkeysJSON, err := json.Marshal(config.Passkeys)
	if err != nil {
		return fmt.Errorf("failed to encode passkeys: %w", err)
	}
	if config.Passkeys == nil {
		passkeysJSON = []byte("[]")
	}

	config.UpdatedAt = time.Now()

	query := `
		INSERT INTO mfa_configs (account_id, enabled, totp_secret_encrypted, totp_secret_nonce, passkeys, recovery_code_hashes, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			totp_secret_encrypted = EXCLUDED.totp_secret_encrypted,
			totp_secret_nonce = EXCLUDED.totp_secret_nonce,
			passkeys = EXCLUDED.passkeys,
			recovery_code_hashes = EXCLUDED.recovery_code_hashes,
			enrolled_at = EXCLUDED.enrolled_at,
			updated_at = EXCLUDED.updated_at
	`

	hashes := config.RecoveryCodeHashes
	if hashes == nil {
		hashes = []string{}
	}

	_, err = r.pool.Exec(ctx, query,
		config.AccountID, config.Enabled,
		config.TOTPSecretEncrypted, config.TOTPSecretNonce,
		passkeysJSON, hashes,
		config.EnrolledAt, config.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ReplaceRecoveryCodes swaps the stored hash set atomically. Generating a
// new batch always invalidates every previous code.
func (r *MFAConfigRepository) ReplaceRecoveryCodes(ctx context.Context, accountID string, hashes []string) error {
	query := `
		UPDATE mfa_configs SET recovery_code_hashes = $1, updated_at = $2
		WHERE account_id = $3
	`

	if hashes == nil {
		hashes = []string{}
	}

	result, err := r.pool.Exec(ctx, query, hashes, time.Now(), accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RemoveRecoveryCode deletes one consumed hash from the array in a single
// statement so two requests burning the same code cannot both keep it.
func (r *MFAConfigRepository) RemoveRecoveryCode(ctx context.Context, accountID, hash string) error {
	query := `
		UPDATE mfa_configs
		SET recovery_code_hashes = array_remove(recovery_code_hashes, $1), updated_at = $2
		WHERE account_id = $3 AND $1 = ANY(recovery_code_hashes)
	`

	result, err := r.pool.Exec(ctx, query, hash, time.Now(), accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
