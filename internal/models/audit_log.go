package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for audit logging
const (
	AuditEventLogin         = "LOGIN"
	AuditEventMFAVerify     = "MFA_VERIFY"
	AuditEventMFASetup      = "MFA_SETUP"
	AuditEventPasswordReset = "PASSWORD_RESET"
)

type AuditEvent struct {
	ID            uuid.UUID
	EventType     string
	ActorID       *string
	Action        string
	Success       bool
	FailureReason *string
	IPAddress     *string
	UserAgent     *string
	Metadata      AuditMetadata
	CreatedAt     time.Time
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}
