package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Charset for recovery codes: A-Z 2-9 excluding ambiguous 0/O, 1/I/L.
const recoveryCodeCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// RecoveryCodeLength is long enough to resist online and offline guessing
// (31^12 ≈ 7.9e17 combinations).
const RecoveryCodeLength = 12

// GenerateOTPCode returns a uniformly random zero-padded 6-digit code.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode returns the hex SHA-256 of a short-lived single-use code or token.
// Long-lived secrets (passwords, recovery codes) use slow hashes instead.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two hex digests without leaking a prefix match.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateRecoveryCodes generates count independent random recovery codes.
func GenerateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, count)
	max := big.NewInt(int64(len(recoveryCodeCharset)))

	for i := 0; i < count; i++ {
		code := make([]byte, RecoveryCodeLength)
		for j := range code {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, fmt.Errorf("failed to generate recovery code: %w", err)
			}
			code[j] = recoveryCodeCharset[n.Int64()]
		}
		codes[i] = string(code)
	}

	return codes, nil
}

// GenerateResetToken returns an opaque URL-safe token for password reset
// links. Only its SHA-256 hash is persisted.
func GenerateResetToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
