package services

import (
	"context"
	"log/slog"

	"github.com/masthead-news/masthead/internal/models"
	pkglogger "github.com/masthead-news/masthead/pkg/logger"
)

// AuditEventRepository persists audit events
type AuditEventRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)
}

// AuditEntry is the service-level shape of one auditable decision.
type AuditEntry struct {
	EventType     string
	ActorID       string
	Action        string
	Success       bool
	FailureReason string
	IPAddress     string
	UserAgent     string
	Metadata      models.AuditMetadata
}

// AuditService dual-writes audit events: a structured log line for live
// tailing plus a database row for retention and review.
type AuditService struct {
	repo        AuditEventRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditEventRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record writes the entry to both sinks. A database failure is logged but
// never propagated: an audit insert must not turn a successful login into a
// 500, and the slog line already captured the event.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	metadata := make(map[string]string, len(entry.Metadata))
	for k, v := range entry.Metadata {
		if str, ok := v.(string); ok {
			metadata[k] = str
		}
	}
	s.auditLogger.Log(pkglogger.AuditLine{
		EventType:     entry.EventType,
		ActorID:       entry.ActorID,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		Success:       entry.Success,
		FailureReason: entry.FailureReason,
		Metadata:      metadata,
	})

	event := &models.AuditEvent{
		EventType: entry.EventType,
		Action:    entry.Action,
		Success:   entry.Success,
		Metadata:  entry.Metadata,
	}
	if entry.ActorID != "" {
		event.ActorID = &entry.ActorID
	}
	if entry.FailureReason != "" {
		event.FailureReason = &entry.FailureReason
	}
	if entry.IPAddress != "" {
		event.IPAddress = &entry.IPAddress
	}
	if entry.UserAgent != "" {
		event.UserAgent = &entry.UserAgent
	}

	if _, err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("failed to persist audit event",
			slog.String("event_type", entry.EventType),
			slog.Any("error", err))
	}
}

// Trail returns the newest recorded events for one account.
func (s *AuditService) Trail(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByActor(ctx, actorID, limit)
}
