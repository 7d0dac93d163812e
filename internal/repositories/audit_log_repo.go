package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masthead-news/masthead/internal/database"
	"github.com/masthead-news/masthead/internal/models"
)

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func scanAuditEventRow(row rowScanner) (*models.AuditEvent, error) {
	var event models.AuditEvent

	err := row.Scan(
		&event.ID, &event.EventType, &event.ActorID, &event.Action,
		&event.Success, &event.FailureReason, &event.IPAddress,
		&event.UserAgent, &event.Metadata, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

func scanAuditEventRows(rows pgx.Rows) ([]*models.AuditEvent, error) {
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)

	for rows.Next() {
		event, err := scanAuditEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}

	return events, nil
}

// Create persists a new audit event
func (r *AuditLogRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	query := `
		INSERT INTO audit_logs (
			id, event_type, actor_id, action, success,
			failure_reason, ip_address, user_agent, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, event_type, actor_id, action, success,
		          failure_reason, ip_address, user_agent, metadata, created_at
	`

	created, err := scanAuditEventRow(r.pool.QueryRow(
		ctx, query,
		uuid.New(), event.EventType, event.ActorID, event.Action,
		event.Success, event.FailureReason, event.IPAddress,
		event.UserAgent, event.Metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit event: %w", err)
	}

	return created, nil
}

// ListByActor returns the newest events for one account
func (r *AuditLogRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, event_type, actor_id, action, success,
		       failure_reason, ip_address, user_agent, metadata, created_at
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditEventRows(rows)
}
