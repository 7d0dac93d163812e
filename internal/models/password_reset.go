package models

import (
	"time"
)

// PasswordResetRecord is a single-use reset grant. Only the SHA-256 hash of
// the emailed token is stored; completing the reset flips Used and revokes
// every active session for the account.
type PasswordResetRecord struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired reports whether the record can no longer be redeemed.
func (r *PasswordResetRecord) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
