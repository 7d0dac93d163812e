package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masthead-news/masthead/internal/database"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/pkg/auth"
)

type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var passwordHash *string
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.Email, &passwordHash,
		&account.Role, &account.Status, &account.TokenKey,
		&lastLoginAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		account.PasswordHash = *passwordHash
	}
	account.LastLoginAt = lastLoginAt

	return &account, nil
}

const accountColumns = `id, email, password_hash, role, status, token_key, last_login_at, created_at, updated_at`

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

// GetTokenKey returns only the per-account signing key component.
// Token validation calls this on every request, so it skips the full row.
func (r *AccountRepository) GetTokenKey(ctx context.Context, id string) (string, error) {
	query := `SELECT token_key FROM accounts WHERE id = $1`

	var tokenKey string
	if err := r.pool.QueryRow(ctx, query, id).Scan(&tokenKey); err != nil {
		return "", database.MapPostgresError(err)
	}
	return tokenKey, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	account.TokenKey = tokenKey

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = models.RoleStandard
	}
	if account.Status == "" {
		account.Status = models.StatusActive
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, role, status, token_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + accountColumns

	var passwordHash *string
	if account.PasswordHash != "" {
		passwordHash = &account.PasswordHash
	}

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Email, passwordHash,
		account.Role, account.Status, account.TokenKey,
		account.CreatedAt, account.UpdatedAt,
	))
}

// UpdatePassword sets a new password hash and rotates the token key in one
// statement so every session signed with the old key dies with the change.
// UpdatePassword sets a new password hash and rotates the token key, and in
// the same transaction burns every outstanding password reset grant for the
// account so older emailed links stop working the moment one completes.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash, tokenKey string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE accounts SET password_hash = $1, token_key = $2, updated_at = $3
			WHERE id = $4
		`

		result, err := tx.Exec(ctx, query, passwordHash, tokenKey, time.Now(), id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		_, err = tx.Exec(ctx,
			`UPDATE password_resets SET used = TRUE WHERE account_id = $1 AND used = FALSE`, id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $1, updated_at = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
