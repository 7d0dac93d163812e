package models

import (
	"time"
)

// MFA methods a pending ticket can be scoped to.
const (
	MFAMethodPasskey = "passkey"
	MFAMethodTOTP    = "totp"
	MFAMethodEmail   = "email"
)

// PasskeyCredential is the stored descriptor for a registered passkey.
// The cryptographic exchange happens in an external WebAuthn capability;
// this subsystem only tracks which credentials exist for method selection.
type PasskeyCredential struct {
	CredentialID []byte     `json:"credential_id"`
	PublicKey    []byte     `json:"public_key"`
	SignCount    uint32     `json:"sign_count"`
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// MFAConfig holds an account's second-factor configuration.
// Recovery codes are stored as bcrypt hashes only, never plaintext.
type MFAConfig struct {
	AccountID           string
	Enabled             bool
	TOTPSecretEncrypted []byte
	TOTPSecretNonce     []byte
	Passkeys            []PasskeyCredential
	RecoveryCodeHashes  []string
	EnrolledAt          *time.Time
	UpdatedAt           time.Time
}

// HasPasskey reports whether any passkey credential is registered.
func (c *MFAConfig) HasPasskey() bool {
	return len(c.Passkeys) > 0
}

// HasTOTP reports whether a TOTP secret is configured.
func (c *MFAConfig) HasTOTP() bool {
	return len(c.TOTPSecretEncrypted) > 0
}

// PreferredMethod picks the ticket method for first issuance: passkey if any
// credential is registered, else totp if a secret exists, else email. For the
// email fallback no code is sent until the client explicitly requests one.
func (c *MFAConfig) PreferredMethod() string {
	switch {
	case c.HasPasskey():
		return MFAMethodPasskey
	case c.HasTOTP():
		return MFAMethodTOTP
	default:
		return MFAMethodEmail
	}
}

// ValidMFAMethod reports whether m is a known ticket method.
func ValidMFAMethod(m string) bool {
	return m == MFAMethodPasskey || m == MFAMethodTOTP || m == MFAMethodEmail
}
