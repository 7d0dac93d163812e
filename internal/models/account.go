package models

import (
	"time"
)

// Account roles
const (
	RoleStandard = "standard"
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
)

// Account statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Login lanes: the privilege tier requested at login. The owner lane is
// reserved for admin/owner roles and forces MFA when enabled.
const (
	LaneStandard = "standard"
	LaneOwner    = "owner"
)

type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string // "standard", "admin", "owner"
	Status       string // "active", "disabled"
	TokenKey     string // Per-account secret for composite token signing
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// EligibleForLane reports whether the account's role may request the lane.
func (a *Account) EligibleForLane(lane string) bool {
	if lane != LaneOwner {
		return true
	}
	return a.Role == RoleAdmin || a.Role == RoleOwner
}
