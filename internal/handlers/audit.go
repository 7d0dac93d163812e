package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/masthead-news/masthead/internal/auth"
	"github.com/masthead-news/masthead/internal/models"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// AuditServiceInterface exposes the audit trail for review
type AuditServiceInterface interface {
	Trail(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)
}

// AuditHandler serves the per-account audit trail
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditEventResponse is one audit trail entry
type AuditEventResponse struct {
	ID            string               `json:"id"`
	EventType     string               `json:"event_type"`
	Action        string               `json:"action"`
	Success       bool                 `json:"success"`
	FailureReason *string              `json:"failure_reason,omitempty"`
	IPAddress     *string              `json:"ip_address,omitempty"`
	UserAgent     *string              `json:"user_agent,omitempty"`
	Metadata      models.AuditMetadata `json:"metadata,omitempty"`
	CreatedAt     string               `json:"created_at"`
}

// Trail handles GET /auth/audit/{id}. Mounted behind session auth plus an
// owner role check.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteAuthError(w, "Authentication required")
		return
	}

	actorID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(actorID); err != nil {
		pkghttp.WriteValidationError(w, "Invalid account id")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := h.service.Trail(r.Context(), actorID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]AuditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, AuditEventResponse{
			ID:            ev.ID.String(),
			EventType:     ev.EventType,
			Action:        ev.Action,
			Success:       ev.Success,
			FailureReason: ev.FailureReason,
			IPAddress:     ev.IPAddress,
			UserAgent:     ev.UserAgent,
			Metadata:      ev.Metadata,
			CreatedAt:     ev.CreatedAt.Format(time.RFC3339),
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, out)
}
