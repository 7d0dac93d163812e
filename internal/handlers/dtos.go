package handlers

import "encoding/json"

// Request DTOs

// LoginRequest is the request body for password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Lane     string `json:"lane" validate:"omitempty,oneof=standard owner"`
}

// VerifyCodeRequest carries a 6-digit code for the totp and email handlers
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyPasskeyRequest carries an opaque WebAuthn assertion
type VerifyPasskeyRequest struct {
	Assertion json.RawMessage `json:"assertion" validate:"required"`
}

// RecoveryConsumeRequest carries one recovery code
type RecoveryConsumeRequest struct {
	Code string `json:"code" validate:"required,min=8,max=32"`
}

// ForgotPasswordRequest starts a password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes a password reset
type ResetPasswordRequest struct {
	Rid         string `json:"rid" validate:"required"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ConfirmTOTPRequest proves a freshly enrolled authenticator works
type ConfirmTOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// RegisterPasskeyRequest stores an attested passkey credential. The
// registration ceremony itself runs upstream; this carries its outcome.
type RegisterPasskeyRequest struct {
	CredentialID []byte `json:"credential_id" validate:"required"`
	PublicKey    []byte `json:"public_key" validate:"required"`
	SignCount    uint32 `json:"sign_count"`
	Name         string `json:"name" validate:"omitempty,max=64"`
}

// Response DTOs

// LoginResponse is returned by /auth/login. When MFARequired is true the
// pending-MFA ticket rides in a cookie and Method names the factor the
// ticket is bound to.
type LoginResponse struct {
	MFARequired      bool     `json:"mfa_required"`
	Method           string   `json:"method,omitempty"`
	AvailableMethods []string `json:"available_methods,omitempty"`
	Redirect         string   `json:"redirect,omitempty"`
}

// SessionResponse is returned when a session is issued; the tokens
// themselves travel in HttpOnly cookies.
type SessionResponse struct {
	Redirect string `json:"redirect"`
}

// MessageResponse is a generic acknowledgment body
type MessageResponse struct {
	Message string `json:"message"`
}

// TOTPSetupResponse returns enrollment material
type TOTPSetupResponse struct {
	QRCode string `json:"qr_code"`
}

// RecoveryCodesResponse returns a freshly generated batch. This is the only
// time the plaintext codes exist outside the client.
type RecoveryCodesResponse struct {
	Codes []string `json:"codes"`
}
