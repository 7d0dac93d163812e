package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masthead-news/masthead/internal/database"
	"github.com/masthead-news/masthead/internal/models"
)

type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func (r *PasswordResetRepository) Create(ctx context.Context, record *models.PasswordResetRecord) error {
	record.ID = uuid.New().String()
	record.CreatedAt = time.Now()

	query := `
		INSERT INTO password_resets (id, account_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.AccountID, record.TokenHash,
		record.ExpiresAt, record.Used, record.CreatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Consume marks the record used, returning it only when the token hash
// matched and it was still live. The used=false guard in the UPDATE makes
// two concurrent redemptions race to a single winner.
func (r *PasswordResetRepository) Consume(ctx context.Context, id, tokenHash string) (*models.PasswordResetRecord, error) {
	query := `
		UPDATE password_resets SET used = TRUE
		WHERE id = $1 AND token_hash = $2 AND used = FALSE AND expires_at > now()
		RETURNING id, account_id, token_hash, expires_at, used, created_at
	`

	var record models.PasswordResetRecord
	err := r.pool.QueryRow(ctx, query, id, tokenHash).Scan(
		&record.ID, &record.AccountID, &record.TokenHash,
		&record.ExpiresAt, &record.Used, &record.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

// DeleteExpired purges records past their expiry, returning how many rows
// were removed. The background cleanup loop calls this on an interval.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_resets WHERE expires_at < now()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
