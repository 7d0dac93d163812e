package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled = errors.New("account is disabled")
	ErrLaneForbidden   = errors.New("account not eligible for requested lane")

	// MFA flow errors
	ErrTicketInvalid  = errors.New("invalid or expired mfa ticket")
	ErrTicketConsumed = errors.New("mfa ticket already consumed")
	ErrCodeInvalid    = errors.New("invalid or expired code")
	ErrMFANotEnabled  = errors.New("mfa is not enabled for account")

	// Rate limiting
	ErrRateLimited = errors.New("rate limit exceeded")

	// Password reset
	ErrResetInvalid = errors.New("invalid or expired reset token")
)
