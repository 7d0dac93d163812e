package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes carried in the "purpose" claim.
const (
	TokenPurposeSession = "session"
	TokenPurposeMFA     = "mfa"
)

// LaneRedirect maps a login lane to its post-auth landing path.
func LaneRedirect(lane string) string {
	if lane == LaneOwner {
		return "/owner"
	}
	return "/"
}

// SessionClaims are the claims carried by access and refresh tokens.
type SessionClaims struct {
	Type      string `json:"type"` // "access" or "refresh"
	AccountID string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TicketClaims are the claims carried by a pending-MFA ticket. Method is
// immutable for the lifetime of the ticket; switching factors mints a brand
// new ticket through an explicit rotation.
type TicketClaims struct {
	Purpose string `json:"purpose"` // always "mfa"
	Method  string `json:"method"`  // "passkey", "totp", "email"
	Lane    string `json:"lane"`    // lane requested at login
	jwt.RegisteredClaims
}
