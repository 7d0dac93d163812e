package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/masthead-news/masthead/internal/handlers"
	"github.com/masthead-news/masthead/internal/models"
)

type stubAuditService struct {
	TrailFunc func(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)
}

func (s *stubAuditService) Trail(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	return s.TrailFunc(ctx, actorID, limit)
}

func auditTrailRequest(t *testing.T, actorID string) *httptest.ResponseRecorder {
	t.Helper()
	reason := "invalid_password"
	service := &stubAuditService{
		TrailFunc: func(ctx context.Context, gotActor string, limit int) ([]*models.AuditEvent, error) {
			assert.Equal(t, actorID, gotActor)
			return []*models.AuditEvent{{
				ID:            uuid.New(),
				EventType:     models.AuditEventLogin,
				Action:        "login",
				Success:       false,
				FailureReason: &reason,
				CreatedAt:     time.Now(),
			}}, nil
		},
	}

	router := chi.NewRouter()
	router.Get("/auth/audit/{id}", handlers.NewAuditHandler(service).Trail)

	req := handlers.NewTestRequest(t, "GET", "/auth/audit/"+actorID, nil)
	req = handlers.WithAccountContext(req, "owner-1", "owner@masthead.news", "owner")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuditTrail_Success(t *testing.T) {
	w := auditTrailRequest(t, uuid.New().String())

	var resp []handlers.AuditEventResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	if assert.Len(t, resp, 1) {
		assert.Equal(t, models.AuditEventLogin, resp[0].EventType)
		assert.False(t, resp[0].Success)
	}
}

func TestAuditTrail_InvalidID(t *testing.T) {
	w := auditTrailRequest(t, "not-a-uuid")
	handlers.AssertErrorResponse(t, w, 400, "validation_error")
}

func TestAuditTrail_RequiresAuthentication(t *testing.T) {
	service := &stubAuditService{
		TrailFunc: func(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	router := chi.NewRouter()
	router.Get("/auth/audit/{id}", handlers.NewAuditHandler(service).Trail)

	req := handlers.NewTestRequest(t, "GET", "/auth/audit/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}
